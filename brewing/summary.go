package brewing

import "time"

// Summary is a session together with the values derived from it at a point in
// time.
type Summary struct {
  *Session

  Activity Activity `json:"activity"`
  Stability Stability `json:"stability"`
  Trend Trend `json:"trend,omitempty"`
  // SG/day.
  RatePerDay *float64 `json:"rate_per_day,omitempty"`
  DurationHours float64 `json:"duration_hours"`
  ActiveAlertCount int `json:"active_alert_count"`
  LastReadingAt *time.Time `json:"last_reading_at,omitempty"`
}

func Summarize(s *Session, now time.Time) Summary {
  sum := Summary{
    Session: s,
    Activity: FermentationActivity(s),
    Stability: DeviceStability(s),
    Trend: FermentationTrend(s),
    RatePerDay: RatePerDay(s),
    DurationHours: s.Duration(now).Hours(),
    ActiveAlertCount: len(s.ActiveAlerts()),
  }

  if last := s.LastReadingTime(); !last.IsZero() {
    sum.LastReadingAt = &last
  }

  return sum
}
