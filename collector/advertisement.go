package collector

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"strings"
	"time"

	"github.com/robertof/go-rapt-exporter/ble"
	"github.com/robertof/go-rapt-exporter/collector/model"
	"github.com/robertof/go-rapt-exporter/device"
	"github.com/robertof/go-rapt-exporter/device/rapt"
	"github.com/rs/zerolog/log"
)

func (s *Scanner) handleAdvertisement(ctx context.Context, a ble.Advertisement, ch chan model.DeviceResult) {
  // the BLE lib could send an advertisement even after `Scan()` returns. do not waste
  // time enqueueing data if we're done.
  select {
  case <-ctx.Done():
    return
  default:
  }

  dev := s.deviceFor(a)

  if dev == nil {
    return
  }

  data := a.ManufacturerData()
  kind := countFrame(manufacturerVendorID(data), data)
  receivedAt := s.Clock()

  if s.isDuplicate(dev, kind, data, receivedAt) {
    duplicateFramesCounter.Inc()
    return
  }

  log.Trace().
    Stringer("Device", dev).
    Stringer("Kind", kind).
    Str("LocalName", a.LocalName()).
    Hex("ManufacturerData", data).
    Msg("handleAdvertisement: received advertisement from device")

  reading, err := dev.Backend().ParseAdvertisement(a)

  if err != nil {
    decodeErrorsCounter.Inc()
  }

  result := model.DeviceResult{
    Device: dev,
    Result: model.Result{
      Reading: reading,
      Error: err,
    },
    ReceivedAt: receivedAt,
  }

  select {
  case <-ctx.Done():
  case ch <- result:
  }
}

// isDuplicate reports whether the device repeated the previous payload of the
// same frame kind less than the duplicate window ago. Pills repeat every
// measurement until the next one, so the window slides with each repetition.
func (s *Scanner) isDuplicate(dev device.Device, kind rapt.FrameKind, data []byte, now time.Time) bool {
  key := strings.ToLower(dev.Addr().String()) + "/" + kind.String()

  s.mu.Lock()
  defer s.mu.Unlock()

  prev, seen := s.lastFrames[key]
  s.lastFrames[key] = lastFrame{payload: bytes.Clone(data), seenAt: now}

  return seen && bytes.Equal(prev.payload, data) && now.Sub(prev.seenAt) < s.duplicateWindow
}

// deviceFor returns the configured device the advertisement comes from. When
// accepting any device, RAPT Pills are added the first time they are seen.
func (s *Scanner) deviceFor(a ble.Advertisement) device.Device {
  if a.Addr() == nil {
    return nil
  }

  addr := strings.ToLower(a.Addr().String())

  s.mu.Lock()
  defer s.mu.Unlock()

  if dev, ok := s.devices[addr]; ok {
    return dev
  }

  if !s.acceptAny || !isRaptAdvertisement(a) {
    return nil
  }

  hwAddr, err := net.ParseMAC(addr)

  if err != nil {
    return nil
  }

  dev := rapt.NewDevice("", hwAddr, false)
  s.devices[addr] = dev

  log.Info().
    Stringer("Device", dev).
    Msg("Discovered new RAPT Pill")

  return dev
}

func isRaptAdvertisement(a ble.Advertisement) bool {
  data := a.ManufacturerData()

  return rapt.Classify(manufacturerVendorID(data), data) != rapt.FrameUnknown
}

// manufacturerVendorID is the little-endian company ID leading manufacturer
// data, or 0 when there is none.
func manufacturerVendorID(data []byte) uint16 {
  if len(data) < 2 {
    return 0
  }

  return binary.LittleEndian.Uint16(data)
}
