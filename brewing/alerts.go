package brewing

import (
  "fmt"
  "math"
  "time"

  "github.com/robertof/go-rapt-exporter/device"
)

type AlertType string

const (
  AlertStuckFermentation AlertType = "stuck_fermentation"
  AlertTemperatureHigh AlertType = "temperature_high"
  AlertTemperatureLow AlertType = "temperature_low"
  AlertFermentationComplete AlertType = "fermentation_complete"
  AlertLowBattery AlertType = "low_battery"
)

type Alert struct {
  Type AlertType `json:"type"`
  Message string `json:"message"`
  Timestamp time.Time `json:"timestamp"`
  Acknowledged bool `json:"acknowledged"`
}

func (a Alert) String() string {
  return fmt.Sprintf("alert[%v: %s]", a.Type, a.Message)
}

// EvaluateAlerts returns the alerts that hold for the session after r has been
// applied and that were not raised recently. It does not modify the session:
// callers record the result with Session.RecordAlerts and deliver it.
//
// Stuck fermentation is raised at most once per session, every other alert at
// most once per cfg.AlertDedupWindow.
func EvaluateAlerts(cfg Config, s *Session, r device.Reading, now time.Time) []Alert {
  var out []Alert

  raise := func(t AlertType, format string, args ...any) {
    out = append(out, Alert{
      Type: t,
      Message: fmt.Sprintf(format, args...),
      Timestamp: now,
    })
  }

  if isStuck(cfg, s, now) && !s.hasAlert(AlertStuckFermentation) {
    raise(AlertStuckFermentation, "Fermentation appears to be stuck: no gravity change in %v",
      cfg.StuckWindow)
  }

  if t := s.CurrentTemperature; t != nil {
    if *t > cfg.TemperatureHigh && !s.hasRecentAlert(AlertTemperatureHigh, now, cfg.AlertDedupWindow) {
      raise(AlertTemperatureHigh, "Temperature too high: %.1f°C (limit %.1f°C)", *t, cfg.TemperatureHigh)
    } else if *t < cfg.TemperatureLow && !s.hasRecentAlert(AlertTemperatureLow, now, cfg.AlertDedupWindow) {
      raise(AlertTemperatureLow, "Temperature too low: %.1f°C (limit %.1f°C)", *t, cfg.TemperatureLow)
    }
  }

  if s.TargetGravity != nil && s.CurrentGravity != nil &&
      *s.CurrentGravity <= *s.TargetGravity + cfg.CompletionTolerance &&
      !s.hasRecentAlert(AlertFermentationComplete, now, cfg.AlertDedupWindow) {
    raise(AlertFermentationComplete, "Fermentation appears to be complete: gravity %.3f, target %.3f",
      *s.CurrentGravity, *s.TargetGravity)
  }

  if r.Battery != nil && s.BatteryCalibrated && *r.Battery < cfg.LowBattery &&
      !s.hasRecentAlert(AlertLowBattery, now, cfg.AlertDedupWindow) {
    raise(AlertLowBattery, "Low battery: %d%%", *r.Battery)
  }

  return out
}

// isStuck requires the history to span the whole window, so that a freshly
// started session is never reported as stuck.
func isStuck(cfg Config, s *Session, now time.Time) bool {
  if s.FermentationRate == nil || math.Abs(*s.FermentationRate) >= cfg.StuckRate {
    return false
  }

  if s.CurrentGravity == nil || len(s.History) == 0 {
    return false
  }

  cutoff := now.Add(-cfg.StuckWindow)

  if s.History[0].Timestamp.After(cutoff) {
    return false
  }

  current := *s.CurrentGravity

  for i := len(s.History) - 1; i >= 0; i-- {
    p := s.History[i]

    if p.Timestamp.Before(cutoff) {
      break
    }

    if p.SpecificGravity != nil && math.Abs(*p.SpecificGravity - current) > cfg.StuckGravityDelta {
      return false
    }
  }

  return true
}

func (s *Session) hasAlert(t AlertType) bool {
  for _, a := range s.Alerts {
    if a.Type == t {
      return true
    }
  }

  return false
}

func (s *Session) hasRecentAlert(t AlertType, now time.Time, window time.Duration) bool {
  for i := len(s.Alerts) - 1; i >= 0; i-- {
    a := s.Alerts[i]

    if a.Type == t && now.Sub(a.Timestamp) < window {
      return true
    }
  }

  return false
}
