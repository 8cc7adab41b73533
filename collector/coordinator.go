package collector

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robertof/go-rapt-exporter/brewing"
	"github.com/robertof/go-rapt-exporter/collector/model"
	"github.com/robertof/go-rapt-exporter/device"
	"github.com/robertof/go-rapt-exporter/device/rapt"
	"github.com/robertof/go-rapt-exporter/notify"
	"github.com/robertof/go-rapt-exporter/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
)

var ErrNoCurrentSession = errors.New("no current session")

// DefaultSaveInterval bounds how often readings alone cause the current
// session to be written to the store.
const DefaultSaveInterval = time.Minute

type pendingAlert struct {
  session *brewing.Session
  alert brewing.Alert
}

// Coordinator owns every brewing session and is their single writer. Readings
// coming from any transport are applied to the current session one at a time,
// in the order they are handed over.
type Coordinator struct {
  // Clock returns the time used for lifecycle changes. Defaults to time.Now.
  Clock func() time.Time
  // SaveInterval is the minimum time, in reading timestamps, between two saves
  // caused by readings. Sessions raising alerts and lifecycle changes are
  // always saved. Zero saves on every reading.
  SaveInterval time.Duration

  cfg brewing.Config
  store storage.Store
  notifier notify.Notifier

  mu sync.Mutex
  sessions map[string]*brewing.Session
  current string
  // reading timestamp of the last save, per session.
  lastSaved map[string]time.Time
}

func NewCoordinator(cfg brewing.Config, store storage.Store, notifier notify.Notifier) *Coordinator {
  if notifier == nil {
    notifier = notify.Multi{}
  }

  return &Coordinator{
    Clock: time.Now,
    cfg: cfg,
    store: store,
    notifier: notifier,
    sessions: make(map[string]*brewing.Session),
    lastSaved: make(map[string]time.Time),
  }
}

// Load restores the sessions saved in the store. A current session which is no
// longer active is not restored as current.
func (c *Coordinator) Load() error {
  sessions, err := c.store.LoadSessions()

  if err != nil {
    return fmt.Errorf("failed to load sessions: %w", err)
  }

  current, err := c.store.Current()

  if err != nil {
    return fmt.Errorf("failed to load current session: %w", err)
  }

  c.mu.Lock()
  defer c.mu.Unlock()

  for _, s := range sessions {
    c.sessions[s.ID] = s
  }

  if s, ok := c.sessions[current]; ok && s.Active() {
    c.current = current
  }

  log.Info().
    Int("Sessions", len(c.sessions)).
    Str("Current", c.current).
    Msg("Restored brewing sessions")

  return nil
}

// StartSession creates a session and makes it current. The previously current
// session, if any, is stopped. It stays current and active when stopping it
// cannot be persisted.
func (c *Coordinator) StartSession(params brewing.SessionParams) (string, error) {
  if params.Name == "" {
    return "", fmt.Errorf("session name is required")
  }

  c.mu.Lock()
  defer c.mu.Unlock()

  now := c.Clock()

  if prev, ok := c.sessions[c.current]; ok {
    stopped := prev.Clone()
    stopped.Stop(now)

    if err := c.store.SaveSession(stopped); err != nil {
      return "", fmt.Errorf("failed to persist %v: %w", stopped, err)
    }

    c.sessions[stopped.ID] = stopped
    c.current = ""
  }

  s := brewing.NewSession(uuid.NewString(), params, now)

  if err := c.store.SaveSession(s); err != nil {
    return "", fmt.Errorf("failed to persist %v: %w", s, err)
  }

  if err := c.store.SetCurrent(s.ID); err != nil {
    return "", fmt.Errorf("failed to persist current session: %w", err)
  }

  c.sessions[s.ID] = s
  c.current = s.ID

  log.Info().Stringer("Session", s).Msg("Started brewing session")

  return s.ID, nil
}

func (c *Coordinator) StopSession(id string) error {
  c.mu.Lock()
  defer c.mu.Unlock()

  s, err := c.get(id)

  if err != nil {
    return err
  }

  s.Stop(c.Clock())

  if err := c.store.SaveSession(s); err != nil {
    return fmt.Errorf("failed to persist %v: %w", s, err)
  }

  if c.current == id {
    c.current = ""

    if err := c.store.SetCurrent(""); err != nil {
      return fmt.Errorf("failed to persist current session: %w", err)
    }
  }

  log.Info().Stringer("Session", s).Msg("Stopped brewing session")

  return nil
}

func (c *Coordinator) DeleteSession(id string) error {
  c.mu.Lock()
  defer c.mu.Unlock()

  s, err := c.get(id)

  if err != nil {
    return err
  }

  if err := c.store.DeleteSession(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
    return fmt.Errorf("failed to delete %v: %w", s, err)
  }

  delete(c.sessions, id)
  delete(c.lastSaved, id)

  if c.current == id {
    c.current = ""
  }

  log.Info().Stringer("Session", s).Msg("Deleted brewing session")

  return nil
}

func (c *Coordinator) AcknowledgeAlert(id string, index int) error {
  return c.update(id, func(s *brewing.Session) error {
    return s.AcknowledgeAlert(index)
  })
}

func (c *Coordinator) SetStage(id string, stage brewing.Stage) error {
  if _, err := brewing.ParseStage(string(stage)); err != nil {
    return err
  }

  return c.update(id, func(s *brewing.Session) error {
    if !s.Active() {
      return brewing.ErrSessionNotActive
    }

    s.Stage = stage

    return nil
  })
}

func (c *Coordinator) SetNotes(id string, notes string) error {
  return c.update(id, func(s *brewing.Session) error {
    s.Notes = notes
    return nil
  })
}

// Sessions returns a copy of every session, most recently started first.
func (c *Coordinator) Sessions() []*brewing.Session {
  c.mu.Lock()
  defer c.mu.Unlock()

  out := maps.Values(c.sessions)

  for i, s := range out {
    out[i] = s.Clone()
  }

  slices.SortFunc(out, func(a, b *brewing.Session) int {
    return b.StartedAt.Compare(a.StartedAt)
  })

  return out
}

func (c *Coordinator) Session(id string) (*brewing.Session, error) {
  c.mu.Lock()
  defer c.mu.Unlock()

  s, err := c.get(id)

  if err != nil {
    return nil, err
  }

  return s.Clone(), nil
}

// Current returns a copy of the session readings are applied to.
func (c *Coordinator) Current() (*brewing.Session, bool) {
  c.mu.Lock()
  defer c.mu.Unlock()

  s, ok := c.sessions[c.current]

  if !ok {
    return nil, false
  }

  return s.Clone(), true
}

// HandleFrame decodes a raw payload and applies the resulting reading to the
// current session.
func (c *Coordinator) HandleFrame(f model.Frame) (device.Reading, error) {
  countFrame(f.VendorID, f.Payload)

  reading, err := rapt.DecodeAndValidate(f.VendorID, f.Payload)

  if err != nil {
    decodeErrorsCounter.Inc()
    return reading, err
  }

  if !reading.IsMetadata() {
    reading.SignalStrength = &f.RSSI
  }

  return reading, c.HandleReading(reading, f.ReceivedAt)
}

// HandleReading applies an already validated reading to the current session,
// evaluates alerts, persists the session and delivers any new alert.
func (c *Coordinator) HandleReading(r device.Reading, ts time.Time) error {
  if ts.IsZero() {
    ts = c.Clock()
  }

  pending, err := c.apply(r, ts)

  if err != nil {
    droppedReadingsCounter.Inc()
    return err
  }

  for _, p := range pending {
    alertsCounter.WithLabelValues(string(p.alert.Type)).Inc()

    if err := c.notifier.Notify(p.session, p.alert); err != nil {
      log.Error().
        Err(err).
        Stringer("Session", p.session).
        Stringer("Alert", p.alert).
        Msg("Failed to deliver alert")
    }
  }

  return nil
}

func (c *Coordinator) apply(r device.Reading, ts time.Time) ([]pendingAlert, error) {
  c.mu.Lock()
  defer c.mu.Unlock()

  s, ok := c.sessions[c.current]

  if !ok {
    return nil, ErrNoCurrentSession
  }

  signalStrength := 0

  if r.SignalStrength != nil {
    signalStrength = *r.SignalStrength
  }

  if err := brewing.ApplyReading(s, r, signalStrength, ts); err != nil {
    return nil, fmt.Errorf("failed to apply reading to %v: %w", s, err)
  }

  var alerts []brewing.Alert

  if !r.IsMetadata() {
    alerts = brewing.EvaluateAlerts(c.cfg, s, r, ts)
    s.RecordAlerts(alerts)
  }

  log.Debug().
    Stringer("Session", s).
    Stringer("Reading", r).
    Int("NewAlerts", len(alerts)).
    Msg("Applied reading to session")

  if len(alerts) > 0 || ts.Sub(c.lastSaved[s.ID]) >= c.SaveInterval {
    c.save(s, ts)
  }

  if len(alerts) == 0 {
    return nil, nil
  }

  snapshot := s.Clone()
  pending := make([]pendingAlert, len(alerts))

  for i, a := range alerts {
    pending[i] = pendingAlert{session: snapshot, alert: a}
  }

  return pending, nil
}

// Flush writes the current session to the store, including readings not yet
// saved because of SaveInterval.
func (c *Coordinator) Flush() error {
  c.mu.Lock()
  defer c.mu.Unlock()

  s, ok := c.sessions[c.current]

  if !ok {
    return nil
  }

  if err := c.store.SaveSession(s); err != nil {
    return fmt.Errorf("failed to persist %v: %w", s, err)
  }

  return nil
}

// save persists a session after a reading. The in-memory session is still
// authoritative on failure, the save is retried on the next reading.
func (c *Coordinator) save(s *brewing.Session, ts time.Time) {
  if err := c.store.SaveSession(s); err != nil {
    log.Error().Err(err).Stringer("Session", s).Msg("Failed to persist session")
    return
  }

  c.lastSaved[s.ID] = ts
}

func (c *Coordinator) update(id string, fn func(*brewing.Session) error) error {
  c.mu.Lock()
  defer c.mu.Unlock()

  s, err := c.get(id)

  if err != nil {
    return err
  }

  if err := fn(s); err != nil {
    return err
  }

  if err := c.store.SaveSession(s); err != nil {
    return fmt.Errorf("failed to persist %v: %w", s, err)
  }

  return nil
}

func (c *Coordinator) get(id string) (*brewing.Session, error) {
  s, ok := c.sessions[id]

  if !ok {
    return nil, fmt.Errorf("%w: %q", brewing.ErrSessionNotFound, id)
  }

  return s, nil
}
