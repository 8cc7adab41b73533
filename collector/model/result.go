package model

import (
	"fmt"
	"time"

	"github.com/robertof/go-rapt-exporter/device"
)

// Frame is a raw manufacturer payload, scanned locally or pushed by a gateway.
type Frame struct {
  VendorID uint16
  Payload []byte
  RSSI int
  Addr string
  ReceivedAt time.Time
}

func (f Frame) String() string {
  return fmt.Sprintf("frame[vendor=0x%04x, addr=%q, len=%d]", f.VendorID, f.Addr, len(f.Payload))
}

type Result struct {
  Reading device.Reading
  Error error
}

func (c Result) String() string {
  if c.Error != nil {
    return fmt.Sprintf("result:error(%v)", c.Error)
  } else {
    return fmt.Sprintf("result:success(%v)", c.Reading)
  }
}

type DeviceResult struct {
	device.Device
	Result
	ReceivedAt time.Time
}
