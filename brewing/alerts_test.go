package brewing_test

import (
  "testing"
  "time"

  "github.com/robertof/go-rapt-exporter/brewing"
  "github.com/robertof/go-rapt-exporter/device"
  "github.com/robertof/go-rapt-exporter/utils"
)

// step applies r and records whatever alerts it raised, like the collector does.
func step(t *testing.T, s *brewing.Session, r device.Reading, ts time.Time) []brewing.Alert {
  t.Helper()

  apply(t, s, r, ts)
  alerts := brewing.EvaluateAlerts(brewing.DefaultConfig(), s, r, ts)
  s.RecordAlerts(alerts)

  return alerts
}

func alertTypes(alerts []brewing.Alert) []brewing.AlertType {
  var out []brewing.AlertType

  for _, a := range alerts {
    out = append(out, a.Type)
  }

  return out
}

func TestEvaluateAlerts_LowBatteryAfterCalibration(t *testing.T) {
  s := newSession(utils.Ptr(1.050))

  for i, battery := range []int{0, 0, 45, 18} {
    r := reading(1.045, 20)
    r.Battery = utils.Ptr(battery)

    got := alertTypes(step(t, s, r, epoch.Add(time.Duration(i) * time.Minute)))

    if i < 3 && len(got) != 0 {
      t.Fatalf("reading %d (battery %d): got alerts %v, wanted none", i, battery, got)
    }

    if i == 3 && (len(got) != 1 || got[0] != brewing.AlertLowBattery) {
      t.Fatalf("reading %d (battery %d): got alerts %v, wanted [low_battery]", i, battery, got)
    }
  }

  if len(s.Alerts) != 1 {
    t.Fatalf("session alerts: got %v, wanted exactly one", s.Alerts)
  }
}

func TestEvaluateAlerts_StuckFermentationOnce(t *testing.T) {
  s := newSession(utils.Ptr(1.050))
  var raisedAt []int

  for h := 0; h <= 60; h++ {
    alerts := step(t, s, reading(1.010, 20), epoch.Add(time.Duration(h) * time.Hour))

    for _, a := range alerts {
      if a.Type == brewing.AlertStuckFermentation {
        raisedAt = append(raisedAt, h)
      }
    }
  }

  if len(raisedAt) != 1 || raisedAt[0] != 48 {
    t.Fatalf("stuck fermentation raised at hours %v, wanted [48]", raisedAt)
  }
}

func TestEvaluateAlerts_StuckNeedsFullWindow(t *testing.T) {
  s := newSession(utils.Ptr(1.050))

  for h := 0; h < 48; h++ {
    for _, a := range step(t, s, reading(1.010, 20), epoch.Add(time.Duration(h) * time.Hour)) {
      if a.Type == brewing.AlertStuckFermentation {
        t.Fatalf("stuck fermentation raised after %dh of history", h)
      }
    }
  }
}

func TestEvaluateAlerts_StuckNotRaisedWhileGravityMoves(t *testing.T) {
  s := newSession(utils.Ptr(1.050))

  // 0.00015 per hour stays under the rate threshold, but adds up to 0.0072
  // over the window.
  for h := 0; h <= 60; h++ {
    g := 1.020 - float64(h) * 0.00015

    for _, a := range step(t, s, reading(g, 20), epoch.Add(time.Duration(h) * time.Hour)) {
      if a.Type == brewing.AlertStuckFermentation {
        t.Fatalf("stuck fermentation raised at hour %d while gravity keeps dropping", h)
      }
    }
  }
}

func TestEvaluateAlerts_TemperatureDedup(t *testing.T) {
  cases := []struct {
    name string
    temperature float64
    want brewing.AlertType
  }{
    {"high", 35, brewing.AlertTemperatureHigh},
    {"low", 5, brewing.AlertTemperatureLow},
  }

  for _, c := range cases {
    t.Run(c.name, func(t *testing.T) {
      s := newSession(utils.Ptr(1.050))
      schedule := []struct {
        at time.Duration
        raised bool
      }{
        {0, true},
        {30 * time.Minute, false},
        {61 * time.Minute, true},
        {90 * time.Minute, false},
      }

      for _, e := range schedule {
        got := alertTypes(step(t, s, reading(1.045, c.temperature), epoch.Add(e.at)))

        if e.raised && (len(got) != 1 || got[0] != c.want) {
          t.Fatalf("after %v: got alerts %v, wanted [%v]", e.at, got, c.want)
        }

        if !e.raised && len(got) != 0 {
          t.Fatalf("after %v: got alerts %v, wanted none", e.at, got)
        }
      }
    })
  }
}

func TestEvaluateAlerts_FermentationComplete(t *testing.T) {
  s := brewing.NewSession("test", brewing.SessionParams{
    Name: "Test IPA",
    OriginalGravity: utils.Ptr(1.050),
    TargetGravity: utils.Ptr(1.010),
  }, epoch)

  if got := step(t, s, reading(1.020, 20), epoch); len(got) != 0 {
    t.Fatalf("gravity 1.020: got alerts %v, wanted none", got)
  }

  got := alertTypes(step(t, s, reading(1.011, 20), epoch.Add(time.Hour)))

  if len(got) != 1 || got[0] != brewing.AlertFermentationComplete {
    t.Fatalf("gravity 1.011: got alerts %v, wanted [fermentation_complete]", got)
  }
}

func TestEvaluateAlerts_DoesNotModifySession(t *testing.T) {
  s := newSession(utils.Ptr(1.050))
  r := reading(1.045, 35)
  apply(t, s, r, epoch)

  if got := brewing.EvaluateAlerts(brewing.DefaultConfig(), s, r, epoch); len(got) != 1 {
    t.Fatalf("EvaluateAlerts: got %v, wanted one alert", got)
  }

  if len(s.Alerts) != 0 {
    t.Fatalf("EvaluateAlerts recorded alerts on its own: %v", s.Alerts)
  }

  s.RecordAlerts(brewing.EvaluateAlerts(brewing.DefaultConfig(), s, r, epoch))

  if err := s.AcknowledgeAlert(0); err != nil {
    t.Fatalf("AcknowledgeAlert(0) got error: %v", err)
  }

  if active := s.ActiveAlerts(); len(active) != 0 {
    t.Fatalf("ActiveAlerts after acknowledging: got %v", active)
  }

  if err := s.AcknowledgeAlert(1); err == nil {
    t.Fatalf("AcknowledgeAlert(1) succeeded with a single alert")
  }
}
