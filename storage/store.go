package storage

import (
  "errors"

  "github.com/robertof/go-rapt-exporter/brewing"
)

var ErrNotFound = errors.New("not found")

// Store persists sessions across restarts. Implementations must be safe for
// use by a single writer; the collector serializes all calls.
type Store interface {
  SaveSession(s *brewing.Session) error
  // DeleteSession fails with ErrNotFound if the session was never saved.
  DeleteSession(id string) error
  LoadSessions() ([]*brewing.Session, error)
  // SetCurrent marks the session readings are routed to. An empty id clears it.
  SetCurrent(id string) error
  // Current returns an empty id if no session is current.
  Current() (string, error)
  Close() error
}
