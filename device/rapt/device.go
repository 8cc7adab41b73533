package rapt

import (
  "fmt"
  "net"

  "github.com/robertof/go-rapt-exporter/device"
)

// Device is a RAPT Pill hydrometer identified by its MAC address.
type Device struct {
  name string
  addr net.HardwareAddr
  backend device.PassiveBackend
}

func (d *Device) Name() string {
  return d.name
}

func (d *Device) Addr() net.HardwareAddr {
  return d.addr
}

// The pill answers scan requests with its firmware and device type frames, so an
// active scan gets the metadata in as well.
func (d *Device) Flags() device.Flags {
  return device.FlagRequiresBleActiveScan
}

func (d *Device) Backend() device.PassiveBackend {
  return d.backend
}

func (d *Device) String() string {
  return fmt.Sprintf("rapt[name=%q, addr=%v]", d.name, d.addr.String())
}
