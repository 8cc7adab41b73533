package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robertof/go-rapt-exporter/brewing"
	"github.com/robertof/go-rapt-exporter/collector"
	"github.com/robertof/go-rapt-exporter/device"
	"github.com/robertof/go-rapt-exporter/device/rapt"
	"github.com/robertof/go-rapt-exporter/notify"
	"gopkg.in/yaml.v3"
)

type config struct {
  Debug, Trace bool `yaml:"-"`
  ConfigFile string `yaml:"-"`
  BindAddress string `yaml:"bind"`
  DatabasePath string `yaml:"database"`
  CORSOrigins string `yaml:"cors_origins"`
  EnableMetamonitoring bool `yaml:"metamonitoring"`
  EnableScanner bool `yaml:"scan"`
  DiscoverDevices bool `yaml:"-"`
  DiscoveryDuration time.Duration `yaml:"-"`
  BluetoothDeviceId int `yaml:"bluetooth_device"`
  Backoff time.Duration `yaml:"backoff"`
  DuplicateWindow time.Duration `yaml:"duplicate_window"`
  SaveInterval time.Duration `yaml:"save_interval"`
  Alerts brewing.Config `yaml:"alerts"`
  MQTT notify.MQTTConfig `yaml:"mqtt"`
  Devices []device.Device `yaml:"-"`
}

type boundDeviceList struct {
  device.Factory
  name string
  list *[]device.Device
}

var deviceFactories = map[string]device.Factory {
  "rapt": &rapt.Factory{},
}

func (d *boundDeviceList) String() string {
  return ""
}

func (d *boundDeviceList) Set(v string) error {
  ds := device.NewDeviceSpec(v)

  device, err := d.FromSpec(ds)
  if err != nil {
    return fmt.Errorf("failed to create device: %w", err)
  }

  *d.list = append(*d.list, device)

  return nil
}

func (c config) AllowedOrigins() []string {
  var out []string

  for _, origin := range strings.Split(c.CORSOrigins, ",") {
    if origin = strings.TrimSpace(origin); origin != "" {
      out = append(out, origin)
    }
  }

  return out
}

// loadFile overlays the YAML file on top of cfg. Flags set on the command line
// take precedence over the file.
func loadFile(cfg *config, fs *flag.FlagSet) error {
  data, err := os.ReadFile(cfg.ConfigFile)

  if err != nil {
    return fmt.Errorf("read config file: %w", err)
  }

  explicit := make(map[string]string)

  fs.Visit(func(f *flag.Flag) {
    if _, isDevice := deviceFactories[f.Name]; !isDevice {
      explicit[f.Name] = f.Value.String()
    }
  })

  if err := yaml.Unmarshal(data, cfg); err != nil {
    return fmt.Errorf("unmarshal config: %w", err)
  }

  for name, value := range explicit {
    if err := fs.Set(name, value); err != nil {
      return fmt.Errorf("re-applying flag -%s: %w", name, err)
    }
  }

  return nil
}

func parseArgs(fs *flag.FlagSet, args []string) (config, error) {
  var cfg config

  cfg.Alerts = brewing.DefaultConfig()

  fs.StringVar(&cfg.ConfigFile, "config", "", "Optional YAML file with the configuration. Flags take precedence")
  fs.StringVar(&cfg.BindAddress, "bind", "localhost:9102", "Where the exporter and API will bind to")
  fs.StringVar(&cfg.DatabasePath, "db", "rapt.db", "Path of the session database")
  fs.StringVar(&cfg.CORSOrigins, "cors-origins", "", "Comma separated list of origins allowed to call the API")
  fs.IntVar(&cfg.BluetoothDeviceId, "bluetooth-device", 0, "Bluetooth (HCI) device ID")
  fs.BoolVar(&cfg.EnableScanner, "scan", true, "Scan for advertisements. Disable to only accept frames pushed to the API")
  fs.BoolVar(&cfg.DiscoverDevices, "discover", false, "Discover RAPT Pills in range and quit")
  fs.DurationVar(&cfg.DiscoveryDuration, "discover-duration", 10 * time.Second, "How long to scan for with -discover")
  fs.BoolVar(&cfg.EnableMetamonitoring, "metamonitoring", true, "Enable metamonitoring metrics")
  fs.DurationVar(&cfg.Backoff, "backoff", collector.DefaultBackoffFactor,
    "Exponential backoff factor for restarting failed scans")
  fs.DurationVar(&cfg.DuplicateWindow, "duplicate-window", collector.DefaultDuplicateWindow,
    "Advertisements repeating the previous payload of a pill within this window are dropped")
  fs.DurationVar(&cfg.SaveInterval, "save-interval", collector.DefaultSaveInterval,
    "Minimum time between two saves of the current session caused by readings alone")

  fs.Float64Var(&cfg.Alerts.TemperatureLow, "temp-low", brewing.DefaultTemperatureLow, "Alert below this temperature (°C)")
  fs.Float64Var(&cfg.Alerts.TemperatureHigh, "temp-high", brewing.DefaultTemperatureHigh, "Alert above this temperature (°C)")
  fs.IntVar(&cfg.Alerts.LowBattery, "low-battery", brewing.DefaultLowBattery, "Alert below this battery percentage")
  fs.DurationVar(&cfg.Alerts.StuckWindow, "stuck-window", brewing.DefaultStuckWindow,
    "Gravity must not move over this window for fermentation to be considered stuck")
  fs.Float64Var(&cfg.Alerts.StuckRate, "stuck-rate", brewing.DefaultStuckRate,
    "Fermentation rate (SG/hour) below which fermentation may be stuck")
  fs.Float64Var(&cfg.Alerts.StuckGravityDelta, "stuck-gravity-delta", brewing.DefaultStuckGravityDelta,
    "Maximum gravity change over the stuck window for fermentation to be considered stuck")
  fs.Float64Var(&cfg.Alerts.CompletionTolerance, "completion-tolerance", brewing.DefaultCompletionTolerance,
    "Fermentation is complete once gravity is within this distance of the target")
  fs.DurationVar(&cfg.Alerts.AlertDedupWindow, "alert-dedup-window", brewing.DefaultAlertDedupWindow,
    "Minimum time between two alerts of the same type")

  fs.StringVar(&cfg.MQTT.Broker, "mqtt-broker", "", "MQTT broker alerts are published to, e.g. tcp://localhost:1883")
  fs.StringVar(&cfg.MQTT.ClientID, "mqtt-client-id", notify.DefaultMQTTClientID, "MQTT client ID")
  fs.StringVar(&cfg.MQTT.Username, "mqtt-username", "", "MQTT username")
  fs.StringVar(&cfg.MQTT.Password, "mqtt-password", "", "MQTT password")
  fs.StringVar(&cfg.MQTT.TopicPrefix, "mqtt-topic-prefix", notify.DefaultMQTTTopicPrefix, "Prefix of the alert topics")

  fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logs")
  fs.BoolVar(&cfg.Trace, "trace", false, "Enable trace logs")

  for deviceName, deviceFactory := range deviceFactories {
    boundList := boundDeviceList{
      name:    deviceName,
      Factory: deviceFactory,
      list:    &cfg.Devices,
    }

    help := "Device spec for this device in the form of `key=value,key=value`. " +
      "Repeat for multiple devices. Without any, every RAPT Pill in range is tracked."

    if docs, ok := deviceFactory.(device.FactoryDocs); ok {
      help += "\n" + docs.Help()
    }

    fs.Var(&boundList, deviceName, help)
  }

  if err := fs.Parse(args); err != nil {
    return cfg, err
  }

  if cfg.ConfigFile != "" {
    if err := loadFile(&cfg, fs); err != nil {
      return cfg, err
    }
  }

  if err := cfg.Alerts.Validate(); err != nil {
    return cfg, fmt.Errorf("invalid alert configuration: %w", err)
  }

  if !cfg.EnableScanner && len(cfg.Devices) > 0 {
    return cfg, fmt.Errorf("devices were configured but scanning is disabled")
  }

  return cfg, nil
}

func ParseArgs() config {
  cfg, err := parseArgs(flag.CommandLine, os.Args[1:])

  if err != nil {
    fmt.Fprintf(os.Stderr, "Error: %v\n", err)
    flag.Usage()
    os.Exit(1)
  }

  return cfg
}
