package brewing

import (
  "math"
  "time"

  "github.com/robertof/go-rapt-exporter/device"
  "github.com/robertof/go-rapt-exporter/utils"
)

const (
  // hydrometers are calibrated at 20°C.
  CalibrationTemperature = 20.0
  TemperatureCorrectionFactor = 0.00130
  // larger corrections are treated as sensor glitches and ignored.
  MaxTemperatureCorrection = 0.020

  abvFactor = 131.25
  maxAlcoholPercentage = 20.0

  // number of readings the fermentation rate is computed over.
  rateWindow = 24
)

// CorrectGravity applies the temperature correction to a gravity reading.
func CorrectGravity(gravity, temperature float64) float64 {
  correction := (temperature - CalibrationTemperature) * TemperatureCorrectionFactor

  if math.Abs(correction) > MaxTemperatureCorrection {
    return gravity
  }

  return gravity + correction
}

// ApplyReading appends a validated reading to the session and recomputes the
// derived values. Metadata readings only update the device information.
func ApplyReading(s *Session, r device.Reading, signalStrength int, ts time.Time) error {
  if !s.Active() {
    return ErrSessionNotActive
  }

  if r.IsMetadata() {
    if r.FirmwareVersion != nil {
      s.FirmwareVersion = r.FirmwareVersion
    }

    if r.DeviceType != nil {
      s.DeviceType = r.DeviceType
    }

    return nil
  }

  r.SignalStrength = utils.Ptr(signalStrength)

  s.History = append(s.History, DataPoint{Timestamp: ts, Reading: r})

  if excess := len(s.History) - MaxHistory; excess > 0 {
    s.History = append(s.History[:0:0], s.History[excess:]...)
  }

  if r.SpecificGravity != nil {
    s.CurrentGravity = r.SpecificGravity

    if s.OriginalGravity == nil {
      s.OriginalGravity = r.SpecificGravity
    }
  }

  if r.Temperature != nil {
    s.CurrentTemperature = r.Temperature
  }

  if r.Battery != nil {
    s.CurrentBattery = r.Battery

    if *r.Battery > 0 {
      s.BatteryCalibrated = true
    }
  }

  s.CurrentSignalStrength = r.SignalStrength

  Recompute(s)

  return nil
}

// Recompute updates the derived values of the session. Every step is skipped,
// keeping its previous value, when its inputs are missing.
func Recompute(s *Session) {
  if s.CurrentGravity != nil && s.CurrentTemperature != nil {
    s.CorrectedGravity = utils.Ptr(CorrectGravity(*s.CurrentGravity, *s.CurrentTemperature))
  }

  if s.OriginalGravity != nil && s.CorrectedGravity != nil {
    og, sg := *s.OriginalGravity, *s.CorrectedGravity

    s.AlcoholPercentage = utils.Ptr(alcoholPercentage(og, sg))

    if attenuation, ok := apparentAttenuation(og, sg); ok {
      s.Attenuation = utils.Ptr(attenuation)
    }
  }

  if rate, ok := fermentationRate(s.History); ok {
    s.FermentationRate = utils.Ptr(rate)
  }
}

func alcoholPercentage(og, sg float64) float64 {
  if sg >= og {
    return 0
  }

  factor := 1.0

  switch {
  case og > 1.060:
    factor = 1.05
  case og > 1.050:
    factor = 1.02
  }

  return clamp((og - sg) * abvFactor * factor, 0, maxAlcoholPercentage)
}

func apparentAttenuation(og, sg float64) (float64, bool) {
  divisor := og - 1.0

  if math.Abs(divisor) < 1e-9 {
    return 0, false
  }

  return clamp((og - sg) / divisor * 100, 0, 100), true
}

// fermentationRate returns the change of corrected gravity in SG/hour over the
// most recent readings carrying both gravity and temperature.
func fermentationRate(history []DataPoint) (float64, bool) {
  points := make([]DataPoint, 0, rateWindow)

  for i := len(history) - 1; i >= 0 && len(points) < rateWindow; i-- {
    if history[i].SpecificGravity != nil && history[i].Temperature != nil {
      points = append(points, history[i])
    }
  }

  if len(points) < 2 {
    return 0, false
  }

  // points is newest first.
  last, first := points[0], points[len(points)-1]
  hours := last.Timestamp.Sub(first.Timestamp).Hours()

  if hours <= 0 {
    return 0, false
  }

  delta := CorrectGravity(*last.SpecificGravity, *last.Temperature) -
    CorrectGravity(*first.SpecificGravity, *first.Temperature)

  return delta / hours, true
}

func clamp(v, lo, hi float64) float64 {
  return math.Max(lo, math.Min(hi, v))
}
