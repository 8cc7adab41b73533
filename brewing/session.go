package brewing

import (
  "errors"
  "fmt"
  "time"

  "github.com/robertof/go-rapt-exporter/device"
)

// MaxHistory bounds the number of data points kept per session. Older points
// are evicted first.
const MaxHistory = 10000

var (
  ErrSessionNotActive = errors.New("session is not active")
  ErrSessionNotFound = errors.New("session not found")
  ErrAlertNotFound = errors.New("alert not found")
)

type State string

const (
  StateActive State = "active"
  StateCompleted State = "completed"
)

type Stage string

const (
  StagePrimary Stage = "primary"
  StageSecondary Stage = "secondary"
  StageConditioning Stage = "conditioning"
  StagePackaging Stage = "packaging"
)

func ParseStage(s string) (Stage, error) {
  switch st := Stage(s); st {
  case StagePrimary, StageSecondary, StageConditioning, StagePackaging:
    return st, nil
  }

  return "", fmt.Errorf("unknown fermentation stage %q", s)
}

// DataPoint is a reading as it was received at a certain point in time.
type DataPoint struct {
  Timestamp time.Time `json:"timestamp"`
  device.Reading
}

// Session is a single brew being tracked. All fields are plain values so that
// it can be stored as-is.
type Session struct {
  ID string `json:"id"`
  Name string `json:"name"`
  Recipe string `json:"recipe,omitempty"`
  Notes string `json:"notes,omitempty"`
  State State `json:"state"`
  Stage Stage `json:"stage"`
  StartedAt time.Time `json:"started_at"`
  CompletedAt *time.Time `json:"completed_at,omitempty"`

  OriginalGravity *float64 `json:"original_gravity,omitempty"`
  TargetGravity *float64 `json:"target_gravity,omitempty"`
  TargetTemperature *float64 `json:"target_temperature,omitempty"`

  CurrentGravity *float64 `json:"current_gravity,omitempty"`
  CurrentTemperature *float64 `json:"current_temperature,omitempty"`
  CurrentBattery *int `json:"current_battery,omitempty"`
  CurrentSignalStrength *int `json:"current_signal_strength,omitempty"`

  CorrectedGravity *float64 `json:"corrected_gravity,omitempty"`
  AlcoholPercentage *float64 `json:"alcohol_percentage,omitempty"`
  Attenuation *float64 `json:"attenuation,omitempty"`
  // SG/hour, negative while fermenting.
  FermentationRate *float64 `json:"fermentation_rate,omitempty"`

  FirmwareVersion *string `json:"firmware_version,omitempty"`
  DeviceType *string `json:"device_type,omitempty"`

  History []DataPoint `json:"history"`
  Alerts []Alert `json:"alerts"`

  // set on the first nonzero battery reading. the pill reports 0 until its
  // first measurement, which would otherwise raise a low battery alert.
  BatteryCalibrated bool `json:"battery_calibrated"`
}

type SessionParams struct {
  Name string `json:"name"`
  Recipe string `json:"recipe,omitempty"`
  OriginalGravity *float64 `json:"original_gravity,omitempty"`
  TargetGravity *float64 `json:"target_gravity,omitempty"`
  TargetTemperature *float64 `json:"target_temperature,omitempty"`
}

func NewSession(id string, params SessionParams, now time.Time) *Session {
  return &Session{
    ID: id,
    Name: params.Name,
    Recipe: params.Recipe,
    State: StateActive,
    Stage: StagePrimary,
    StartedAt: now,
    OriginalGravity: params.OriginalGravity,
    TargetGravity: params.TargetGravity,
    TargetTemperature: params.TargetTemperature,
  }
}

func (s *Session) Active() bool {
  return s.State == StateActive
}

// Stop freezes the session. Stopping twice is a no-op.
func (s *Session) Stop(now time.Time) {
  if !s.Active() {
    return
  }

  s.State = StateCompleted
  s.CompletedAt = &now
}

func (s *Session) Duration(now time.Time) time.Duration {
  if s.CompletedAt != nil {
    return s.CompletedAt.Sub(s.StartedAt)
  }

  return now.Sub(s.StartedAt)
}

// LastReadingTime is zero when no reading has been received yet.
func (s *Session) LastReadingTime() time.Time {
  if len(s.History) == 0 {
    return time.Time{}
  }

  return s.History[len(s.History)-1].Timestamp
}

func (s *Session) ActiveAlerts() []Alert {
  var out []Alert

  for _, a := range s.Alerts {
    if !a.Acknowledged {
      out = append(out, a)
    }
  }

  return out
}

func (s *Session) AcknowledgeAlert(index int) error {
  if index < 0 || index >= len(s.Alerts) {
    return fmt.Errorf("%w: index %d", ErrAlertNotFound, index)
  }

  s.Alerts[index].Acknowledged = true

  return nil
}

// RecordAlerts appends alerts returned by EvaluateAlerts.
func (s *Session) RecordAlerts(alerts []Alert) {
  s.Alerts = append(s.Alerts, alerts...)
}

// Clone returns a deep enough copy for readers outside of the owning
// goroutine: slices are copied, readings are shared since they are immutable.
func (s *Session) Clone() *Session {
  c := *s
  c.History = append([]DataPoint(nil), s.History...)
  c.Alerts = append([]Alert(nil), s.Alerts...)

  return &c
}

func (s *Session) String() string {
  return fmt.Sprintf("session[id=%q, name=%q, state=%v]", s.ID, s.Name, s.State)
}
