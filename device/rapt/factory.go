package rapt

import (
  "fmt"
  "net"
  "strings"

  "github.com/robertof/go-rapt-exporter/device"
  "github.com/rs/zerolog/log"
)

type Factory struct{}

func (f *Factory) FromSpec(spec device.DeviceSpec) (device.Device, error) {
  addr := spec.Addr()

  hwAddr, err := net.ParseMAC(addr)
  if err != nil {
    return nil, fmt.Errorf("invalid addr: %w", err)
  }

  return NewDevice(spec.Name(), hwAddr, spec.Bool(device.DeviceSpecFieldLegacy)), nil
}

// NewDevice builds a device with a passive backend. When name is empty it is
// derived from the address.
func NewDevice(name string, addr net.HardwareAddr, legacy bool) *Device {
  d := &Device{
    name: name,
    addr: addr,
  }

  if d.name == "" {
    d.name = "rapt-" + strings.ToLower(strings.ReplaceAll(addr.String(), ":", ""))
  }

  if legacy {
    log.Debug().Stringer("Device", d).Msg("rapt: stripping manufacturer ID from payloads (legacy firmware)")
  }

  d.backend = &backendPassive{stripVendor: legacy}

  return d
}

func (f *Factory) Help() string {
  return `Supported parameters:
addr (string, required): MAC address of this RAPT Pill
name (string): Name of this RAPT Pill, defaults to one derived from the address
legacy (bool): Decode the pre-"RAPT" telemetry layout sent by early firmware.`
}
