package notify

import (
  "errors"

  "github.com/robertof/go-rapt-exporter/brewing"
  "github.com/robertof/go-rapt-exporter/utils"
  "github.com/rs/zerolog/log"
)

// Notifier delivers freshly raised alerts. It is called outside of any
// session lock with a copy of the session.
type Notifier interface {
  Notify(s *brewing.Session, a brewing.Alert) error
}

type LogNotifier struct{}

func (LogNotifier) Notify(s *brewing.Session, a brewing.Alert) error {
  e := log.Warn().
    Str("Session", s.ID).
    Str("SessionName", s.Name).
    Str("AlertType", string(a.Type)).
    Time("RaisedAt", a.Timestamp)

  utils.OptionalFloat(e, "Gravity", s.CurrentGravity)
  utils.OptionalFloat(e, "Temperature", s.CurrentTemperature)
  utils.OptionalInt(e, "Battery", s.CurrentBattery)

  e.Msg(a.Message)

  return nil
}

// Multi fans an alert out to every notifier, collecting all errors.
type Multi []Notifier

func (m Multi) Notify(s *brewing.Session, a brewing.Alert) error {
  var errs []error

  for _, n := range m {
    if err := n.Notify(s, a); err != nil {
      errs = append(errs, err)
    }
  }

  return errors.Join(errs...)
}
