package brewing

import (
  "fmt"
  "time"
)

const (
  DefaultTemperatureLow = 10.0
  DefaultTemperatureHigh = 30.0
  DefaultLowBattery = 20
  DefaultStuckWindow = 48 * time.Hour
  DefaultStuckRate = 0.001
  DefaultStuckGravityDelta = 0.005
  DefaultAlertDedupWindow = time.Hour
  DefaultCompletionTolerance = 0.002
)

// Config holds the alerting thresholds. The zero value is not useful, start
// from DefaultConfig.
type Config struct {
  TemperatureLow float64 `yaml:"temperature_low"`
  TemperatureHigh float64 `yaml:"temperature_high"`
  LowBattery int `yaml:"low_battery"`

  // Fermentation is stuck when the rate (SG/hour) is below StuckRate and the
  // gravity did not move by more than StuckGravityDelta over StuckWindow.
  StuckWindow time.Duration `yaml:"stuck_window"`
  StuckRate float64 `yaml:"stuck_rate"`
  StuckGravityDelta float64 `yaml:"stuck_gravity_delta"`

  AlertDedupWindow time.Duration `yaml:"alert_dedup_window"`
  CompletionTolerance float64 `yaml:"completion_tolerance"`
}

func DefaultConfig() Config {
  return Config{
    TemperatureLow: DefaultTemperatureLow,
    TemperatureHigh: DefaultTemperatureHigh,
    LowBattery: DefaultLowBattery,
    StuckWindow: DefaultStuckWindow,
    StuckRate: DefaultStuckRate,
    StuckGravityDelta: DefaultStuckGravityDelta,
    AlertDedupWindow: DefaultAlertDedupWindow,
    CompletionTolerance: DefaultCompletionTolerance,
  }
}

func (c Config) Validate() error {
  if c.TemperatureLow >= c.TemperatureHigh {
    return fmt.Errorf("low temperature threshold (%v) must be below the high one (%v)",
      c.TemperatureLow, c.TemperatureHigh)
  }

  if c.LowBattery < 0 || c.LowBattery > 100 {
    return fmt.Errorf("low battery threshold must be a percentage, got %d", c.LowBattery)
  }

  if c.StuckWindow <= 0 {
    return fmt.Errorf("stuck fermentation window must be positive, got %v", c.StuckWindow)
  }

  if c.AlertDedupWindow < 0 {
    return fmt.Errorf("alert dedup window must not be negative, got %v", c.AlertDedupWindow)
  }

  return nil
}
