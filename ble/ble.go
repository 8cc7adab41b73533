package ble

import (
  "fmt"
  "net"

  "github.com/go-ble/ble"
  "github.com/go-ble/ble/linux"
  "github.com/go-ble/ble/linux/hci/cmd"
  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-rapt-exporter/utils"
  "github.com/rs/zerolog/log"
)

type Advertisement = ble.Advertisement

type Handle struct {
  dev *linux.Device
  flags Flags
}

func RegisterMetrics(reg prometheus.Registerer) {
  reg.MustRegister(
    advertisementsCounter,
    scansCounter,
    failedScansCounter,
  )
}

func Init(deviceId int, flags Flags) (*Handle, error) {
  var scanType scanType = scanTypePassive
  var filterPolicy filterPolicy = filterPolicyAcceptAll

  if flags.Has(FlagScanTypeActive) {
    scanType = scanTypeActive
  }

  if flags.Has(FlagEnableDeviceAllowList) {
    filterPolicy = filterPolicyAllowListedOnly
  }

  log.Debug().
    Stringer("ScanType", scanType).
    Stringer("FilterPolicy", filterPolicy).
    Stringer("Flags", flags).
    Int("DeviceID", deviceId).
    Msg("Initializing Bluetooth device")

  dev, err := linux.NewDevice(
    ble.OptDeviceID(deviceId),
    ble.OptScanParams(cmd.LESetScanParameters{
      LEScanType:           uint8(scanType),     // 0x00: passive, 0x01: active
      LEScanInterval:       0x0010,              // 0x0004 - 0x4000; N * 0.625msec
      LEScanWindow:         0x0010,              // 0x0004 - 0x4000; N * 0.625msec
      OwnAddressType:       0x00,                // 0x00: public, 0x01: random
      ScanningFilterPolicy: uint8(filterPolicy), // 0x00: accept all, 0x01: ignore non-allow-listed.
    }),
  )

  if err != nil {
    return nil, fmt.Errorf("failed to init bluetooth device: %w", err)
  }

  ble.SetDefaultDevice(dev)

  return &Handle{dev: dev, flags: flags}, nil
}

// SetAllowListedAddresses replaces the controller allow-list. Addresses are
// checked before the current list is cleared.
func (h *Handle) SetAllowListedAddresses(a []net.HardwareAddr) error {
  if !h.flags.Has(FlagEnableDeviceAllowList) {
    return fmt.Errorf("allow-list is not enabled (flags: %v)", h.flags)
  }

  for _, addr := range a {
    if len(addr) != 6 {
      return fmt.Errorf("cannot allow-list %q: not a 6 byte MAC address", addr.String())
    }
  }

  log.Debug().
    Array("DeviceAddresses", utils.ToZeroLogArray(a)).
    Msg("Allow-listing the requested Bluetooth devices")

  // clear the white list to make sure we're starting from an empty slate.
  var res cmd.LEClearWhiteListRP

  err := h.dev.HCI.Send(&cmd.LEClearWhiteList{}, &res)

  if err != nil {
    return fmt.Errorf("failed to clear allow-list: %w", err)
  }

  if res.Status != 0 {
    return fmt.Errorf("failed to clear allow-list: got status: %v", res.Status)
  }

  for _, addr := range a {
    bytes := []byte(addr)
    var res cmd.LEAddDeviceToWhiteListRP

    err := h.dev.HCI.Send(&cmd.LEAddDeviceToWhiteList{
      AddressType: 0x00, // public
      Address:     [6]byte{
        // flip due to endianness
        bytes[5],
        bytes[4],
        bytes[3],
        bytes[2],
        bytes[1],
        bytes[0],
      },
    }, &res)

    if err != nil {
      return fmt.Errorf("failed to allow-list device %q: %w", addr.String(), err)
    }

    if res.Status != 0 {
      return fmt.Errorf("failed to allow-list device %q: got status: %v", addr.String(), res.Status)
    }
  }

  return nil
}

func (h *Handle) Stop() {
  h.dev.Stop()
}
