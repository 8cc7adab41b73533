package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robertof/go-rapt-exporter/ble"
	"github.com/robertof/go-rapt-exporter/brewing"
	"github.com/robertof/go-rapt-exporter/collector/model"
	"github.com/robertof/go-rapt-exporter/device"
	"github.com/robertof/go-rapt-exporter/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

const (
  DefaultBackoffFactor = 500 * time.Millisecond
  DefaultMaxBackoff = time.Minute
  DefaultDuplicateWindow = time.Minute

  resultBufferSize = 32
)

type ScanOptions struct {
  // Delay before restarting a scan, doubled after every consecutive failure.
  BackoffFactor time.Duration
  MaxBackoff time.Duration
  // Repetitions of a payload are dropped until the device has been silent, or
  // sent something else, for this long.
  DuplicateWindow time.Duration
}

// AdvertisementSource is implemented by *ble.Handle.
type AdvertisementSource interface {
  ScanAll(ctx context.Context, onAdvertisement func(ble.Advertisement)) error
}

// Scanner listens for advertisements and feeds the readings of known devices
// to the coordinator. Without configured devices, every RAPT Pill in range is
// accepted.
type Scanner struct {
  // Clock timestamps received advertisements. Defaults to time.Now.
  Clock func() time.Time

  source AdvertisementSource
  coordinator *Coordinator
  acceptAny bool

  mu sync.Mutex
  devices map[string]device.Device
  duplicateWindow time.Duration
  // last payload per device and frame kind.
  lastFrames map[string]lastFrame
}

type lastFrame struct {
  payload []byte
  seenAt time.Time
}

func NewScanner(source AdvertisementSource, devices []device.Device, c *Coordinator) *Scanner {
  s := &Scanner{
    Clock: time.Now,
    source: source,
    coordinator: c,
    acceptAny: len(devices) == 0,
    devices: make(map[string]device.Device, len(devices)),
    duplicateWindow: DefaultDuplicateWindow,
    lastFrames: make(map[string]lastFrame),
  }

  for _, dev := range devices {
    s.devices[strings.ToLower(dev.Addr().String())] = dev
  }

  return s
}

// Start scans until the context is canceled, restarting the scan with an
// exponential backoff whenever it fails. Readings are applied in the order
// their advertisements were received.
func (s *Scanner) Start(ctx context.Context, opts ScanOptions) error {
  if opts.BackoffFactor <= 0 {
    opts.BackoffFactor = DefaultBackoffFactor
  }

  if opts.MaxBackoff <= 0 {
    opts.MaxBackoff = DefaultMaxBackoff
  }

  if opts.DuplicateWindow <= 0 {
    opts.DuplicateWindow = DefaultDuplicateWindow
  }

  s.mu.Lock()
  s.duplicateWindow = opts.DuplicateWindow

  log.Info().
    Array("Devices", utils.ToZeroLogArray(maps.Values(s.devices))).
    Bool("AcceptAny", s.acceptAny).
    Dur("BackoffFactor", opts.BackoffFactor).
    Dur("DuplicateWindow", opts.DuplicateWindow).
    Msg("Starting scanner")
  s.mu.Unlock()

  resultCh := make(chan model.DeviceResult, resultBufferSize)
  stop := make(chan struct{})

  var eg errgroup.Group

  eg.Go(func() error {
    s.consume(resultCh, stop)
    return nil
  })

  s.scan(ctx, opts, resultCh)

  close(stop)
  eg.Wait()

  log.Info().Msg("Scanner is shutting down")

  return nil
}

func (s *Scanner) scan(ctx context.Context, opts ScanOptions, ch chan model.DeviceResult) {
  attempt := 0

  for {
    err := s.source.ScanAll(ctx, func(a ble.Advertisement) {
      s.handleAdvertisement(ctx, a, ch)
    })

    if ctx.Err() != nil {
      return
    }

    if err != nil {
      attempt += 1

      log.Warn().
        Err(err).
        Int("Attempt", attempt).
        Msg("Scan failed - will retry")
    } else {
      attempt = 0
    }

    backoff := opts.BackoffFactor << int64(attempt)

    if backoff <= 0 || backoff > opts.MaxBackoff {
      backoff = opts.MaxBackoff
    }

    log.Trace().
      Dur("Backoff", backoff).
      Msg("Backing off before restarting scan")

    select {
    case <-ctx.Done():
      return
    case <-time.After(backoff):
    }
  }
}

// consume applies results until stop is closed, then drains whatever is left.
// The result channel is never closed as the BLE library may still invoke the
// scan callback after the scan returns.
func (s *Scanner) consume(ch chan model.DeviceResult, stop chan struct{}) {
  for {
    select {
    case r := <-ch:
      s.apply(r)
    case <-stop:
      for {
        select {
        case r := <-ch:
          s.apply(r)
        default:
          return
        }
      }
    }
  }
}

func (s *Scanner) apply(r model.DeviceResult) {
  if r.Error != nil {
    log.Debug().
      Stringer("Device", r.Device).
      Err(r.Error).
      Msg("Failed to parse advertisement from device")

    return
  }

  err := s.coordinator.HandleReading(r.Reading, r.ReceivedAt)

  switch {
  case err == nil:
    log.Trace().
      Stringer("Device", r.Device).
      Stringer("Reading", r.Reading).
      Msg("Applied reading from device")
  case utils.ErrorIsAnyOf(err, ErrNoCurrentSession, brewing.ErrSessionNotActive):
    log.Debug().
      Stringer("Device", r.Device).
      Stringer("Reading", r.Reading).
      Msg("No current session - discarding reading")
  default:
    log.Warn().
      Stringer("Device", r.Device).
      Err(err).
      Msg("Failed to apply reading from device")
  }
}
