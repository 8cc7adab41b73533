package device

import (
  "errors"
  "net"
)

var (
  // The payload is shorter than the minimum length of its frame layout.
  ErrTruncatedPayload = errors.New("truncated payload")
  // The payload tag, vendor or format version is not known.
  ErrUnsupportedFormat = errors.New("unsupported format")
  // The advertisement carries no usable manufacturer data at all.
  ErrInvalidData = errors.New("invalid data")
)

type Flags uint8

const (
  FlagRequiresBleActiveScan Flags = 1 << iota
)

func (f Flags) Has(flag Flags) bool {
  return f & flag == flag
}

type Device interface {
  Name() string
  Addr() net.HardwareAddr
  Flags() Flags
  Backend() PassiveBackend
  String() string
}

type Factory interface {
  FromSpec(spec DeviceSpec) (Device, error)
}

type FactoryDocs interface {
  Help() string
}
