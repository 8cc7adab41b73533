package device

import (
  "github.com/robertof/go-rapt-exporter/ble"
)

// PassiveBackendScanType is the BLE scan type used to discover the device.
type PassiveBackendScanType uint8

const (
  PassiveBackendScanTypePassive PassiveBackendScanType = iota
  PassiveBackendScanTypeActive
)

// PassiveBackend parses readings entirely from advertisements, without ever
// establishing a connection to the device.
type PassiveBackend interface {
  ScanType() PassiveBackendScanType
  ParseAdvertisement(a ble.Advertisement) (Reading, error)
}
