package metrics

import (
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-rapt-exporter/brewing"
)

var sessionLabels = []string{"session", "name"}

var (
  descTemperature = prometheus.NewDesc(
    "rapt_temperature_celsius",
    "Temperature reported by the hydrometer in Celsius.",
    sessionLabels,
    nil,
  )

  descGravity = prometheus.NewDesc(
    "rapt_specific_gravity",
    "Specific gravity reported by the hydrometer.",
    sessionLabels,
    nil,
  )

  descCorrectedGravity = prometheus.NewDesc(
    "rapt_corrected_specific_gravity",
    "Specific gravity corrected to the 20°C calibration temperature.",
    sessionLabels,
    nil,
  )

  descOriginalGravity = prometheus.NewDesc(
    "rapt_original_gravity",
    "Original gravity of the brew.",
    sessionLabels,
    nil,
  )

  descAlcohol = prometheus.NewDesc(
    "rapt_alcohol_by_volume_percent",
    "Estimated alcohol by volume.",
    sessionLabels,
    nil,
  )

  descAttenuation = prometheus.NewDesc(
    "rapt_apparent_attenuation_percent",
    "Apparent attenuation.",
    sessionLabels,
    nil,
  )

  descRate = prometheus.NewDesc(
    "rapt_fermentation_rate_sg_per_day",
    "Change of corrected gravity per day, negative while fermenting.",
    sessionLabels,
    nil,
  )

  descBattery = prometheus.NewDesc(
    "rapt_battery_ratio",
    "Battery percentage reported by the hydrometer.",
    sessionLabels,
    nil,
  )

  descSignal = prometheus.NewDesc(
    "rapt_signal_strength_dbm",
    "RSSI of the last advertisement.",
    sessionLabels,
    nil,
  )

  descActiveAlerts = prometheus.NewDesc(
    "rapt_active_alerts",
    "Number of alerts which were not acknowledged yet.",
    sessionLabels,
    nil,
  )

  descDuration = prometheus.NewDesc(
    "rapt_session_duration_seconds",
    "Time since the session was started.",
    sessionLabels,
    nil,
  )

  descInfo = prometheus.NewDesc(
    "rapt_session_info",
    "Labels describing the fermentation and the device. Always 1.",
    append(sessionLabels, "stage", "activity", "stability", "trend", "firmware", "device_type"),
    nil,
  )

  descSessions = prometheus.NewDesc(
    "rapt_sessions",
    "Number of known sessions by state.",
    []string{"state"},
    nil,
  )
)

// Source lists sessions. Sessions must be copies the collector is free to read.
type Source interface {
  Sessions() []*brewing.Session
  Current() (*brewing.Session, bool)
}

type collector struct {
  source Source
  now func() time.Time
}

// Describe cannot rely on prometheus.DescribeByCollect: without a current
// session only a subset of the metrics is collected.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
  for _, desc := range []*prometheus.Desc{
    descTemperature,
    descGravity,
    descCorrectedGravity,
    descOriginalGravity,
    descAlcohol,
    descAttenuation,
    descRate,
    descBattery,
    descSignal,
    descActiveAlerts,
    descDuration,
    descInfo,
    descSessions,
  } {
    ch <- desc
  }
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
  counts := map[brewing.State]int{
    brewing.StateActive: 0,
    brewing.StateCompleted: 0,
  }

  for _, s := range c.source.Sessions() {
    counts[s.State] += 1
  }

  for state, n := range counts {
    ch <- prometheus.MustNewConstMetric(descSessions, prometheus.GaugeValue, float64(n), string(state))
  }

  s, ok := c.source.Current()

  if !ok {
    return
  }

  sum := brewing.Summarize(s, c.now())
  labels := []string{s.ID, s.Name}

  gauge := func(desc *prometheus.Desc, v *float64, scale float64) {
    if v == nil {
      return
    }

    m := prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, *v * scale, labels...)

    if ts := s.LastReadingTime(); !ts.IsZero() {
      m = prometheus.NewMetricWithTimestamp(ts, m)
    }

    ch <- m
  }

  gauge(descTemperature, s.CurrentTemperature, 1)
  gauge(descGravity, s.CurrentGravity, 1)
  gauge(descCorrectedGravity, s.CorrectedGravity, 1)
  gauge(descOriginalGravity, s.OriginalGravity, 1)
  gauge(descAlcohol, s.AlcoholPercentage, 1)
  gauge(descAttenuation, s.Attenuation, 1)
  gauge(descRate, sum.RatePerDay, 1)
  gauge(descBattery, intPtrToFloat(s.CurrentBattery), 0.01)
  gauge(descSignal, intPtrToFloat(s.CurrentSignalStrength), 1)

  ch <- prometheus.MustNewConstMetric(descActiveAlerts, prometheus.GaugeValue,
    float64(sum.ActiveAlertCount), labels...)
  ch <- prometheus.MustNewConstMetric(descDuration, prometheus.GaugeValue,
    sum.DurationHours * 3600, labels...)
  ch <- prometheus.MustNewConstMetric(descInfo, prometheus.GaugeValue, 1,
    s.ID,
    s.Name,
    string(s.Stage),
    string(sum.Activity),
    string(sum.Stability),
    string(sum.Trend),
    stringOrEmpty(s.FirmwareVersion),
    stringOrEmpty(s.DeviceType),
  )
}

func intPtrToFloat(v *int) *float64 {
  if v == nil {
    return nil
  }

  f := float64(*v)

  return &f
}

func stringOrEmpty(v *string) string {
  if v == nil {
    return ""
  }

  return *v
}

func RegisterCollector(source Source, reg prometheus.Registerer) {
  reg.MustRegister(&collector{source: source, now: time.Now})
}
