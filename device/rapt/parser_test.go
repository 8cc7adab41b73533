package rapt_test

import (
  "encoding/binary"
  "errors"
  "math"
  "net"
  "reflect"
  "testing"

  ble_mod "github.com/go-ble/ble"
  "github.com/robertof/go-rapt-exporter/device"
  "github.com/robertof/go-rapt-exporter/device/rapt"
  "github.com/robertof/go-rapt-exporter/utils"
)

type metricsFrame struct {
  tempRaw uint16
  gravity float32
  accelX, accelY, accelZ int16
  battery int16
}

func (m metricsFrame) encode() []byte {
  out := make([]byte, 14)
  binary.BigEndian.PutUint16(out, m.tempRaw)
  binary.BigEndian.PutUint32(out[2:], math.Float32bits(m.gravity))
  binary.BigEndian.PutUint16(out[6:], uint16(m.accelX))
  binary.BigEndian.PutUint16(out[8:], uint16(m.accelY))
  binary.BigEndian.PutUint16(out[10:], uint16(m.accelZ))
  binary.BigEndian.PutUint16(out[12:], uint16(m.battery))
  return out
}

var testMac = []byte{0x78, 0xe3, 0x6d, 0x1a, 0x2b, 0x3c}

func encodeV1(m metricsFrame) []byte {
  out := append([]byte("RAPT"), 0x01)
  out = append(out, testMac...)
  return append(out, m.encode()...)
}

func encodeV2(m metricsFrame, velocityValid bool, velocity float32) []byte {
  out := append([]byte("RAPT"), 0x02, 0x00)

  if velocityValid {
    out = append(out, 0x01)
  } else {
    out = append(out, 0x00)
  }

  out = binary.BigEndian.AppendUint32(out, math.Float32bits(velocity))
  out = append(out, m.encode()...)
  return append(out, 0x00, 0x00)
}

func encodeLegacy(m metricsFrame) []byte {
  out := append([]byte("PT"), 0x01)
  out = append(out, testMac...)
  return append(out, m.encode()...)
}

func approxEqual(a, b, tolerance float64) bool {
  return math.Abs(a - b) <= tolerance
}

func assertFloat(t *testing.T, name string, got *float64, want, tolerance float64) {
  t.Helper()

  if got == nil {
    t.Fatalf("%s: got nil, wanted %v", name, want)
  }

  if !approxEqual(*got, want, tolerance) {
    t.Fatalf("%s: got %v, wanted %v (±%v)", name, *got, want, tolerance)
  }
}

var referenceFrame = metricsFrame{
  tempRaw: 37523, // 293.15 K * 128
  gravity: 1.0435,
  accelX: 16,
  accelY: -32,
  accelZ: 256,
  battery: 100 * 256,
}

func TestDecodeV1(t *testing.T) {
  payload := encodeV1(referenceFrame)

  if kind := rapt.Classify(rapt.VendorRAPT, payload); kind != rapt.FrameTelemetryV1 {
    t.Fatalf("Classify(%x): got %v, wanted TelemetryV1", payload, kind)
  }

  got, err := rapt.Decode(rapt.FrameTelemetryV1, payload)

  if err != nil {
    t.Fatalf("Decode(%x) got error: %v", payload, err)
  }

  assertFloat(t, "Temperature", got.Temperature, 20.0, 0.01)
  assertFloat(t, "SpecificGravity", got.SpecificGravity, 1.0435, 1e-6)
  assertFloat(t, "AccelX", got.AccelX, 1.0, 1e-9)
  assertFloat(t, "AccelY", got.AccelY, -2.0, 1e-9)
  assertFloat(t, "AccelZ", got.AccelZ, 16.0, 1e-9)

  if got.Battery == nil || *got.Battery != 100 {
    t.Fatalf("Battery: got %v, wanted 100", got.Battery)
  }

  if got.FormatVersion == nil || *got.FormatVersion != 1 {
    t.Fatalf("FormatVersion: got %v, wanted 1", got.FormatVersion)
  }

  if got.MacAddress == nil || *got.MacAddress != "78:e3:6d:1a:2b:3c" {
    t.Fatalf("MacAddress: got %v, wanted 78:e3:6d:1a:2b:3c", got.MacAddress)
  }

  if got.GravityVelocity != nil || got.GravityVelocityValid {
    t.Fatalf("v1 frame decoded a gravity velocity: %v", got)
  }

  if got.IsMetadata() {
    t.Fatalf("v1 frame decoded as metadata: %v", got)
  }
}

func TestDecodeV1_TemperatureScaling(t *testing.T) {
  frame := referenceFrame
  frame.tempRaw = 37700

  got, err := rapt.Decode(rapt.FrameTelemetryV1, encodeV1(frame))

  if err != nil {
    t.Fatalf("Decode got error: %v", err)
  }

  assertFloat(t, "Temperature", got.Temperature, 37700.0 / 128 - 273.15, 1e-9)
}

func TestDecodeV2_WithVelocity(t *testing.T) {
  payload := encodeV2(referenceFrame, true, -12.5)

  if kind := rapt.Classify(rapt.VendorRAPT, payload); kind != rapt.FrameTelemetryV2 {
    t.Fatalf("Classify(%x): got %v, wanted TelemetryV2", payload, kind)
  }

  got, err := rapt.Decode(rapt.FrameTelemetryV2, payload)

  if err != nil {
    t.Fatalf("Decode(%x) got error: %v", payload, err)
  }

  if !got.GravityVelocityValid {
    t.Fatalf("GravityVelocityValid: got false, wanted true")
  }

  assertFloat(t, "GravityVelocity", got.GravityVelocity, -12.5, 1e-9)
  assertFloat(t, "Temperature", got.Temperature, 20.0, 0.01)
  assertFloat(t, "SpecificGravity", got.SpecificGravity, 1.0435, 1e-6)

  if got.MacAddress != nil {
    t.Fatalf("v2 frame decoded a MAC address: %v", *got.MacAddress)
  }

  if got.FormatVersion == nil || *got.FormatVersion != 2 {
    t.Fatalf("FormatVersion: got %v, wanted 2", got.FormatVersion)
  }
}

func TestDecodeV2_WithoutVelocity(t *testing.T) {
  got, err := rapt.Decode(rapt.FrameTelemetryV2, encodeV2(referenceFrame, false, 99))

  if err != nil {
    t.Fatalf("Decode got error: %v", err)
  }

  if got.GravityVelocityValid || got.GravityVelocity != nil {
    t.Fatalf("GravityVelocity: got %v (valid=%v), wanted none", got.GravityVelocity, got.GravityVelocityValid)
  }
}

func TestDecodeLegacy(t *testing.T) {
  payload := encodeLegacy(referenceFrame)

  if kind := rapt.Classify(rapt.VendorRAPT, payload); kind != rapt.FrameLegacy {
    t.Fatalf("Classify(%x): got %v, wanted Legacy", payload, kind)
  }

  legacy, err := rapt.Decode(rapt.FrameLegacy, payload)

  if err != nil {
    t.Fatalf("Decode(%x) got error: %v", payload, err)
  }

  v1, err := rapt.Decode(rapt.FrameTelemetryV1, encodeV1(referenceFrame))

  if err != nil {
    t.Fatalf("Decode got error: %v", err)
  }

  if !reflect.DeepEqual(legacy, v1) {
    t.Fatalf("legacy frame: got %v, wanted %v", legacy, v1)
  }
}

func TestDecodeFirmware(t *testing.T) {
  payload := append([]byte("KEG"), []byte("  v2.4.1\x00 \n")...)

  got, err := rapt.Decode(rapt.Classify(rapt.VendorKegLand, payload), payload)

  if err != nil {
    t.Fatalf("Decode(%x) got error: %v", payload, err)
  }

  want := device.Reading{FirmwareVersion: utils.Ptr("v2.4.1")}

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("Decode(%x): got %v, wanted %v", payload, got, want)
  }
}

func TestDecodeFirmware_InvalidUTF8(t *testing.T) {
  payload := append([]byte("KEG"), 'v', '1', 0xff, 0xfe, '2', ' ')

  got, err := rapt.Decode(rapt.FrameFirmwareInfo, payload)

  if err != nil {
    t.Fatalf("Decode(%x) got error: %v", payload, err)
  }

  if got.FirmwareVersion == nil || *got.FirmwareVersion != "v1�2" {
    t.Fatalf("FirmwareVersion: got %q, wanted %q", *got.FirmwareVersion, "v1�2")
  }
}

func TestDecodeDeviceType(t *testing.T) {
  payload := append([]byte("KEGDT"), []byte("RAPT Pill ")...)

  if kind := rapt.Classify(rapt.VendorKegLand, payload); kind != rapt.FrameDeviceTypeInfo {
    t.Fatalf("Classify(%x): got %v, wanted DeviceTypeInfo", payload, kind)
  }

  got, err := rapt.Decode(rapt.FrameDeviceTypeInfo, payload)

  if err != nil {
    t.Fatalf("Decode(%x) got error: %v", payload, err)
  }

  want := device.Reading{DeviceType: utils.Ptr("RAPT Pill")}

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("Decode(%x): got %v, wanted %v", payload, got, want)
  }
}

func TestDecode_Truncated(t *testing.T) {
  frames := map[rapt.FrameKind][]byte{
    rapt.FrameTelemetryV1: encodeV1(referenceFrame),
    rapt.FrameTelemetryV2: encodeV2(referenceFrame, true, 1),
    rapt.FrameLegacy: encodeLegacy(referenceFrame),
    rapt.FrameFirmwareInfo: []byte("KEGx"),
    rapt.FrameDeviceTypeInfo: []byte("KEGDTx"),
  }

  for kind, payload := range frames {
    for n := 0; n < len(payload); n++ {
      _, err := rapt.Decode(kind, payload[:n])

      if !errors.Is(err, device.ErrTruncatedPayload) {
        t.Fatalf("Decode(%v, %x): got error %v, wanted ErrTruncatedPayload", kind, payload[:n], err)
      }
    }

    if _, err := rapt.Decode(kind, payload); err != nil {
      t.Fatalf("Decode(%v, %x) got error: %v", kind, payload, err)
    }
  }
}

func TestDecode_Unknown(t *testing.T) {
  _, err := rapt.Decode(rapt.FrameUnknown, encodeV1(referenceFrame))

  if !errors.Is(err, device.ErrUnsupportedFormat) {
    t.Fatalf("Decode(Unknown): got error %v, wanted ErrUnsupportedFormat", err)
  }
}

func TestDecodeAndValidate_NeverPanics(t *testing.T) {
  payloads := [][]byte{
    encodeV1(referenceFrame),
    encodeV2(referenceFrame, true, 3),
    encodeLegacy(referenceFrame),
    []byte("KEGDT RAPT Pill"),
    []byte("KEG 1.0"),
    {0xff, 0xff, 0xff},
  }

  for _, vendor := range []uint16{rapt.VendorRAPT, rapt.VendorKegLand, 0x004c} {
    for _, payload := range payloads {
      for n := 0; n <= len(payload); n++ {
        reading, err := rapt.DecodeAndValidate(vendor, payload[:n])

        if err != nil && !reflect.DeepEqual(reading, device.Reading{}) {
          t.Fatalf("DecodeAndValidate(0x%04x, %x) returned data alongside error %v: %v",
            vendor, payload[:n], err, reading)
        }
      }
    }
  }
}

func TestDecodeAndValidate_DropsImplausibleBattery(t *testing.T) {
  frame := referenceFrame
  frame.battery = -5 * 256

  got, err := rapt.DecodeAndValidate(rapt.VendorRAPT, encodeV1(frame))

  if err != nil {
    t.Fatalf("DecodeAndValidate got error: %v", err)
  }

  if got.Battery != nil {
    t.Fatalf("Battery: got %d, wanted nil", *got.Battery)
  }

  assertFloat(t, "Temperature", got.Temperature, 20.0, 0.01)
  assertFloat(t, "SpecificGravity", got.SpecificGravity, 1.0435, 1e-6)
}

func TestParseAdvertisement(t *testing.T) {
  manufacturerData := encodeV1(referenceFrame)

  advertisement := FakeAdvertisement{
    manufacturerData: manufacturerData,
    addr: ble_mod.NewAddr("78:E3:6D:1A:2B:3C"),
    rssi: -67,
  }

  dev := rapt.NewDevice("", net.HardwareAddr(testMac), false)
  got, err := dev.Backend().ParseAdvertisement(advertisement)

  if err != nil {
    t.Fatalf("ParseAdvertisement(%x) got error: %v", manufacturerData, err)
  }

  if got.SignalStrength == nil || *got.SignalStrength != -67 {
    t.Fatalf("SignalStrength: got %v, wanted -67", got.SignalStrength)
  }

  if dev.Name() != "rapt-78e36d1a2b3c" {
    t.Fatalf("Name(): got %q, wanted rapt-78e36d1a2b3c", dev.Name())
  }
}

func TestParseAdvertisement_LegacyStripsVendor(t *testing.T) {
  manufacturerData := encodeV1(referenceFrame)

  advertisement := FakeAdvertisement{
    manufacturerData: manufacturerData,
    addr: ble_mod.NewAddr("78:E3:6D:1A:2B:3C"),
  }

  legacy := rapt.NewDevice("pill", net.HardwareAddr(testMac), true)
  got, err := legacy.Backend().ParseAdvertisement(advertisement)

  if err != nil {
    t.Fatalf("ParseAdvertisement(%x) got error: %v", manufacturerData, err)
  }

  assertFloat(t, "SpecificGravity", got.SpecificGravity, 1.0435, 1e-6)
}

func TestParseAdvertisement_NoManufacturerData(t *testing.T) {
  dev := rapt.NewDevice("pill", net.HardwareAddr(testMac), false)
  _, err := dev.Backend().ParseAdvertisement(FakeAdvertisement{})

  if !errors.Is(err, device.ErrInvalidData) {
    t.Fatalf("ParseAdvertisement(empty): got error %v, wanted ErrInvalidData", err)
  }
}

type FakeAdvertisement struct {
  name string
  manufacturerData []byte
  addr ble_mod.Addr
  rssi int
}

func (f FakeAdvertisement) LocalName() string {
  return f.name
}

func (f FakeAdvertisement) ManufacturerData() []byte {
  return f.manufacturerData
}

func (f FakeAdvertisement) ServiceData() []ble_mod.ServiceData {
  return nil
}

func (f FakeAdvertisement) Services() []ble_mod.UUID {
  return nil
}

func (f FakeAdvertisement) OverflowService() []ble_mod.UUID {
  return nil
}

func (f FakeAdvertisement) TxPowerLevel() int {
  return 0
}

func (f FakeAdvertisement) Connectable() bool {
  return false
}

func (f FakeAdvertisement) SolicitedService() []ble_mod.UUID {
  return nil
}

func (f FakeAdvertisement) RSSI() int {
  return f.rssi
}

func (f FakeAdvertisement) Addr() ble_mod.Addr {
  return f.addr
}
