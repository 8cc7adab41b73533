package main

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robertof/go-rapt-exporter/api"
	"github.com/robertof/go-rapt-exporter/ble"
	"github.com/robertof/go-rapt-exporter/collector"
	"github.com/robertof/go-rapt-exporter/device"
	"github.com/robertof/go-rapt-exporter/metrics"
	"github.com/robertof/go-rapt-exporter/notify"
	"github.com/robertof/go-rapt-exporter/storage"
	"github.com/robertof/go-rapt-exporter/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
  zerolog.DurationFieldUnit = time.Second
  zerolog.TimeFieldFormat = time.RFC3339Nano

  log.Logger = log.Output(zerolog.ConsoleWriter{
    Out: os.Stderr,
    TimeFormat: "15:04:05.000",
  })

  cfg := ParseArgs()

  if cfg.Trace || os.Getenv("TRACE") != "" {
      zerolog.SetGlobalLevel(zerolog.TraceLevel)
  } else if cfg.Debug || os.Getenv("DEBUG") != "" {
      zerolog.SetGlobalLevel(zerolog.DebugLevel)
  } else {
      zerolog.SetGlobalLevel(zerolog.InfoLevel)
  }

  if cfg.DiscoverDevices {
    doDeviceDiscovery(cfg)
    return
  }

  log.Info().
    Str("BindAddr", cfg.BindAddress).
    Str("Database", cfg.DatabasePath).
    Array("Devices", utils.ToZeroLogArray(cfg.Devices)).
    Bool("Scan", cfg.EnableScanner).
    Int("BluetoothDeviceID", cfg.BluetoothDeviceId).
    Msg("Starting with the specified configuration")

  store, err := storage.OpenBolt(cfg.DatabasePath)

  if err != nil {
    log.Fatal().Err(err).Str("Path", cfg.DatabasePath).Msg("Failed to open session database")
  }

  defer store.Close()

  coordinator := collector.NewCoordinator(cfg.Alerts, store, initNotifier(cfg))
  coordinator.SaveInterval = cfg.SaveInterval

  if err := coordinator.Load(); err != nil {
    log.Fatal().Err(err).Msg("Failed to load sessions")
  }

  registry := prometheus.NewRegistry()
  metrics.RegisterCollector(coordinator, registry)

  if cfg.EnableMetamonitoring {
    registry.MustRegister(
      collectors.NewGoCollector(),
      collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
    )
    collector.RegisterMetrics(registry)
    ble.RegisterMetrics(registry)
  }

  ctx := ble.WrapContextWithSigHandler(context.WithCancel(context.Background()))
  eg, ctx := errgroup.WithContext(ctx)

  if cfg.EnableScanner {
    bleHandle := initBle(cfg)
    defer bleHandle.Stop()

    scanner := collector.NewScanner(bleHandle, cfg.Devices, coordinator)

    eg.Go(func() error {
      return scanner.Start(ctx, collector.ScanOptions{
        BackoffFactor: cfg.Backoff,
        DuplicateWindow: cfg.DuplicateWindow,
      })
    })
  }

  server := api.NewServer(coordinator, registry, api.Options{
    AllowedOrigins: cfg.AllowedOrigins(),
  })

  eg.Go(func() error {
    log.Info().
      Str("ListenAddress", cfg.BindAddress).
      Msg("Starting HTTP server")

    return server.ListenAndServe(ctx, cfg.BindAddress)
  })

  err = eg.Wait()

  if err := coordinator.Flush(); err != nil {
    log.Error().Err(err).Msg("Failed to save the current session")
  }

  if err != nil {
    log.Error().Err(err).Msg("Exporter stopped with an error")
    return
  }

  log.Info().Msg("Exporter stopped")
}

func initNotifier(cfg config) notify.Notifier {
  notifiers := notify.Multi{notify.LogNotifier{}}

  if cfg.MQTT.Broker == "" {
    return notifiers
  }

  mqttNotifier, err := notify.DialMQTT(cfg.MQTT)

  if err != nil {
    log.Fatal().Err(err).Str("Broker", cfg.MQTT.Broker).Msg("Failed to connect to MQTT broker")
  }

  return append(notifiers, mqttNotifier)
}

func initBle(cfg config) *ble.Handle {
  var bleFlags ble.Flags
  deviceAddresses := make([]net.HardwareAddr, len(cfg.Devices))

  for i, dev := range cfg.Devices {
    deviceAddresses[i] = dev.Addr()

    if dev.Flags().Has(device.FlagRequiresBleActiveScan) {
      bleFlags |= ble.FlagScanTypeActive
    }
  }

  if len(deviceAddresses) > 0 {
    bleFlags |= ble.FlagEnableDeviceAllowList
  } else {
    // any pill may show up, scan actively to get its metadata frames too.
    bleFlags |= ble.FlagScanTypeActive
  }

  bleHandle, err := ble.Init(cfg.BluetoothDeviceId, bleFlags)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  if len(deviceAddresses) > 0 {
    if err := bleHandle.SetAllowListedAddresses(deviceAddresses); err != nil {
      log.Error().Err(err).Msg("Failed to set device allow list")
    }
  }

  return bleHandle
}
