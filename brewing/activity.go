package brewing

import (
  "math"
  "time"

  "github.com/robertof/go-rapt-exporter/utils"
)

type Activity string

const (
  ActivityUnknown Activity = "Unknown"
  ActivityInactive Activity = "Inactive"
  ActivitySlow Activity = "Slow"
  ActivityModerate Activity = "Moderate"
  ActivityActive Activity = "Active"
  ActivityVigorous Activity = "Vigorous"
)

type Stability string

const (
  StabilityUnknown Stability = "Unknown"
  StabilityVeryStable Stability = "Very Stable"
  StabilityStable Stability = "Stable"
  StabilitySlightlyUnstable Stability = "Slightly Unstable"
  StabilityUnstable Stability = "Unstable"
)

type Trend string

const (
  TrendUnknown Trend = ""
  TrendDecreasing Trend = "decreasing"
  TrendStable Trend = "stable"
  TrendIncreasing Trend = "increasing"
)

const (
  activityWindow = time.Hour
  stabilityWindow = 5

  // gravity points are thousandths of SG.
  pointsPerSG = 1000.0

  trendThreshold = 0.001
)

// FermentationActivity classifies how lively the fermentation is, preferring
// the gravity velocity reported by the device over the computed rate.
func FermentationActivity(s *Session) Activity {
  window := trailingWindow(s.History, activityWindow)

  var velocities []float64
  qualifying := 0

  for _, p := range window {
    if p.GravityVelocityValid && p.GravityVelocity != nil {
      velocities = append(velocities, *p.GravityVelocity)
    }

    if p.SpecificGravity != nil && p.Temperature != nil {
      qualifying++
    }
  }

  var pointsPerDay float64

  switch {
  case len(velocities) >= 2:
    pointsPerDay = mean(velocities)
  case qualifying >= 2 && s.FermentationRate != nil:
    pointsPerDay = *s.FermentationRate * 24 * pointsPerSG
  default:
    return ActivityUnknown
  }

  switch v := math.Abs(pointsPerDay); {
  case v > 19:
    if accelVariation(window) > 0.2 {
      return ActivityVigorous
    }

    return ActivityActive
  case v > 10:
    return ActivityActive
  case v > 2:
    return ActivityModerate
  case v > 1:
    return ActivitySlow
  default:
    return ActivityInactive
  }
}

// DeviceStability classifies how much the pill moved over the last readings.
func DeviceStability(s *Session) Stability {
  magnitudes := accelMagnitudes(utils.Last(s.History, stabilityWindow))

  if len(magnitudes) < 2 {
    return StabilityUnknown
  }

  switch sd := stdev(magnitudes); {
  case sd < 0.05:
    return StabilityVeryStable
  case sd < 0.15:
    return StabilityStable
  case sd < 0.35:
    return StabilitySlightlyUnstable
  default:
    return StabilityUnstable
  }
}

func FermentationTrend(s *Session) Trend {
  if s.FermentationRate == nil {
    return TrendUnknown
  }

  switch rate := *s.FermentationRate; {
  case rate < -trendThreshold:
    return TrendDecreasing
  case rate > trendThreshold:
    return TrendIncreasing
  default:
    return TrendStable
  }
}

// RatePerDay is the fermentation rate in SG/day.
func RatePerDay(s *Session) *float64 {
  if s.FermentationRate == nil {
    return nil
  }

  v := *s.FermentationRate * 24

  return &v
}

// trailingWindow returns the points within d of the most recent one.
func trailingWindow(history []DataPoint, d time.Duration) []DataPoint {
  if len(history) == 0 {
    return nil
  }

  cutoff := history[len(history)-1].Timestamp.Add(-d)
  i := len(history) - 1

  for i > 0 && !history[i-1].Timestamp.Before(cutoff) {
    i--
  }

  return history[i:]
}

func accelMagnitudes(points []DataPoint) []float64 {
  var out []float64

  for _, p := range points {
    if m, ok := p.AccelMagnitude(); ok {
      out = append(out, m)
    }
  }

  return out
}

func accelVariation(points []DataPoint) float64 {
  magnitudes := accelMagnitudes(points)

  if len(magnitudes) < 2 {
    return 0
  }

  return stdev(magnitudes)
}

func mean(values []float64) float64 {
  sum := 0.0

  for _, v := range values {
    sum += v
  }

  return sum / float64(len(values))
}

// stdev is the sample standard deviation. len(values) must be >= 2.
func stdev(values []float64) float64 {
  m := mean(values)
  sum := 0.0

  for _, v := range values {
    sum += (v - m) * (v - m)
  }

  return math.Sqrt(sum / float64(len(values) - 1))
}
