package main

import (
	"context"
	"encoding/binary"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"

	"github.com/robertof/go-rapt-exporter/ble"
	"github.com/robertof/go-rapt-exporter/device"
	"github.com/robertof/go-rapt-exporter/device/rapt"
)

type discoveredPill struct {
  name string
  rssi int
  frames map[string]bool
  last device.Reading
  firmware string
  deviceType string
}

func doDeviceDiscovery(cfg config) {
  log.Info().
    Dur("Duration", cfg.DiscoveryDuration).
    Msg("Starting in device discovery mode - looking for RAPT Pills...")

  handle, err := ble.Init(cfg.BluetoothDeviceId, ble.FlagScanTypeActive)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  defer handle.Stop()

  ctx := ble.WrapContextWithSigHandler(
    context.WithTimeout(
      context.Background(),
      cfg.DiscoveryDuration,
    ),
  )

  pills := make(map[string]*discoveredPill)

  err = handle.ScanAll(ctx, func(a ble.Advertisement) {
    data := a.ManufacturerData()

    if len(data) < 2 || a.Addr() == nil {
      return
    }

    vendorID := binary.LittleEndian.Uint16(data)
    kind := rapt.Classify(vendorID, data)

    if kind == rapt.FrameUnknown {
      return
    }

    addr := a.Addr().String()
    pill, ok := pills[addr]

    if !ok {
      pill = &discoveredPill{frames: make(map[string]bool)}
      pills[addr] = pill
    }

    if pill.name == "" {
      pill.name = a.LocalName()
    }

    pill.rssi = a.RSSI()
    pill.frames[kind.String()] = true

    reading, err := rapt.DecodeAndValidate(vendorID, data)

    log.Debug().
      Str("Addr", addr).
      Stringer("Kind", kind).
      Hex("ManufacturerData", data).
      Stringer("Reading", reading).
      Err(err).
      Msg("Received RAPT advertisement")

    switch {
    case err != nil:
    case reading.FirmwareVersion != nil:
      pill.firmware = *reading.FirmwareVersion
    case reading.DeviceType != nil:
      pill.deviceType = *reading.DeviceType
    default:
      pill.last = reading
    }
  })

  if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
    log.Fatal().Err(err).Msg("Failed to initiate scan")
  }

  log.Info().Int("Found", len(pills)).Msg("Finished device discovery")

  for addr, pill := range pills {
    frames := maps.Keys(pill.frames)
    sort.Strings(frames)

    log.Info().
      Str("Addr", addr).
      Str("Name", pill.name).
      Int("RSSI", pill.rssi).
      Str("Firmware", pill.firmware).
      Str("DeviceType", pill.deviceType).
      Strs("Frames", frames).
      Stringer("LastReading", pill.last).
      Msgf("Found RAPT Pill, use -rapt addr=%s to track it", addr)
  }
}
