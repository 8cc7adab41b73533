package rapt

import (
  "github.com/robertof/go-rapt-exporter/device"
  "github.com/rs/zerolog/log"
)

const (
  MinTemperature = -50.0
  MaxTemperature = 100.0
  MinGravity = 0.5
  MaxGravity = 2.0
  MinBattery = 0
  MaxBattery = 100
)

// Validate drops every physical quantity outside of its plausible range. Each
// field is checked on its own, so a single corrupted field never takes the rest
// of the reading down with it.
func Validate(r device.Reading) device.Reading {
  // written this way so NaN fails the check as well.
  if r.Temperature != nil && !(*r.Temperature >= MinTemperature && *r.Temperature <= MaxTemperature) {
    log.Debug().Float64("Temperature", *r.Temperature).Msg("rapt: dropping implausible temperature")
    r.Temperature = nil
  }

  if r.SpecificGravity != nil && !(*r.SpecificGravity >= MinGravity && *r.SpecificGravity <= MaxGravity) {
    log.Debug().Float64("Gravity", *r.SpecificGravity).Msg("rapt: dropping implausible gravity")
    r.SpecificGravity = nil
  }

  if r.Battery != nil && (*r.Battery < MinBattery || *r.Battery > MaxBattery) {
    log.Debug().Int("Battery", *r.Battery).Msg("rapt: dropping implausible battery level")
    r.Battery = nil
  }

  return r
}
