package rapt

import (
  "bytes"
  "encoding/binary"
  "net"

  "github.com/pkg/errors"
  "github.com/robertof/go-rapt-exporter/ble"
  "github.com/robertof/go-rapt-exporter/device"
  "github.com/robertof/go-rapt-exporter/utils"
  "github.com/rs/zerolog/log"
)

type backendPassive struct {
  // early firmware sends "PT" frames which are only recognized once the
  // manufacturer ID has been removed.
  stripVendor bool
}

func (c backendPassive) ScanType() device.PassiveBackendScanType {
  return device.PassiveBackendScanTypeActive
}

func (c backendPassive) ParseAdvertisement(a ble.Advertisement) (reading device.Reading, err error) {
  manufacturerData := a.ManufacturerData()

  if len(manufacturerData) < 2 {
    return reading, errors.Wrap(device.ErrInvalidData, "rapt: missing manufacturer data")
  }

  vendorID := binary.LittleEndian.Uint16(manufacturerData)
  payload := manufacturerData

  if c.stripVendor && vendorID == VendorRAPT {
    payload = manufacturerData[2:]
  }

  reading, err = DecodeAndValidate(vendorID, payload)

  if err != nil {
    return reading, err
  }

  if reading.MacAddress != nil && a.Addr() != nil {
    checkEmbeddedMac(a.Addr().String(), *reading.MacAddress)
  }

  if !reading.IsMetadata() {
    reading.SignalStrength = utils.Ptr(a.RSSI())
  }

  return reading, nil
}

// checkEmbeddedMac compares the MAC carried inside v1 frames with the sender.
// Some firmware revisions store it reversed, so both orders are accepted. A
// mismatch is only logged: the embedded value is informational.
func checkEmbeddedMac(sender, embedded string) {
  senderAddr, err := net.ParseMAC(sender)
  if err != nil {
    return
  }

  embeddedAddr, err := net.ParseMAC(embedded)
  if err != nil {
    return
  }

  if bytes.Equal(senderAddr, embeddedAddr) || bytes.Equal(utils.Reverse(embeddedAddr), senderAddr) {
    return
  }

  log.Debug().
    Str("Sender", sender).
    Str("Embedded", embedded).
    Msg("rapt: MAC address embedded in telemetry does not match sender")
}
