package rapt

import (
  "encoding/binary"
  "math"
  "net"
  "strings"
  "unicode"

  "github.com/pkg/errors"
  "github.com/robertof/go-rapt-exporter/device"
  "github.com/robertof/go-rapt-exporter/utils"
)

const (
  minLengthV1 = 21
  minLengthV2 = 23
  minLengthLegacy = minLengthV1
  minLengthString = 1

  // V1 and V2 share the layout of the trailing metrics block.
  metricsOffset = 7
  metricsLength = 14

  kelvinOffset = 273.15
  temperatureScale = 128.0
  batteryScale = 256.0
  accelScale = 16.0
)

var bo = binary.BigEndian

// Decode parses the payload of an already classified frame. The frame tag is
// still expected in front of the payload. It returns device.ErrTruncatedPayload
// when the payload is too short for its layout and device.ErrUnsupportedFormat
// for FrameUnknown.
func Decode(kind FrameKind, payload []byte) (device.Reading, error) {
  body, err := stripTag(kind, payload)

  if err != nil {
    return device.Reading{}, err
  }

  switch kind {
  case FrameTelemetryV1:
    return parseV1(body)
  case FrameTelemetryV2:
    return parseV2(body)
  case FrameLegacy:
    return parseLegacy(body)
  case FrameFirmwareInfo:
    return parseFirmware(body)
  case FrameDeviceTypeInfo:
    return parseDeviceType(body)
  case FrameUnknown:
    return device.Reading{}, errors.Wrap(device.ErrUnsupportedFormat, "rapt: unknown frame")
  }

  return device.Reading{}, errors.Wrapf(device.ErrUnsupportedFormat, "rapt: unhandled frame kind %v", kind)
}

// DecodeAndValidate classifies, decodes and validates one manufacturer data
// payload.
func DecodeAndValidate(vendorID uint16, payload []byte) (device.Reading, error) {
  kind := Classify(vendorID, payload)

  reading, err := Decode(kind, payload)

  if err != nil {
    return reading, errors.Wrapf(err, "vendor 0x%04x", vendorID)
  }

  return Validate(reading), nil
}

func stripTag(kind FrameKind, payload []byte) ([]byte, error) {
  tag := kind.tag()

  if tag == nil {
    return nil, errors.Wrapf(device.ErrUnsupportedFormat, "rapt: no tag for frame kind %v", kind)
  }

  if len(payload) < len(tag) {
    return nil, errors.Wrapf(device.ErrTruncatedPayload,
      "rapt: payload (%d bytes) shorter than %v tag", len(payload), kind)
  }

  return payload[len(tag):], nil
}

func requireLength(kind FrameKind, body []byte, want int) error {
  if len(body) < want {
    return errors.Wrapf(device.ErrTruncatedPayload,
      "rapt: %v body has %d bytes, want >= %d", kind, len(body), want)
  }

  return nil
}

func parseMetrics(block []byte) (reading device.Reading) {
  rawTemp := bo.Uint16(block)
  gravity := math.Float32frombits(bo.Uint32(block[2:]))
  accelX := int16(bo.Uint16(block[6:]))
  accelY := int16(bo.Uint16(block[8:]))
  accelZ := int16(bo.Uint16(block[10:]))
  rawBattery := int16(bo.Uint16(block[12:]))

  reading.Temperature = utils.Ptr(float64(rawTemp) / temperatureScale - kelvinOffset)
  reading.SpecificGravity = utils.Ptr(float64(gravity))
  reading.AccelX = utils.Ptr(float64(accelX) / accelScale)
  reading.AccelY = utils.Ptr(float64(accelY) / accelScale)
  reading.AccelZ = utils.Ptr(float64(accelZ) / accelScale)
  reading.Battery = utils.Ptr(int(math.Round(float64(rawBattery) / batteryScale)))

  return reading
}

func parseV1(body []byte) (device.Reading, error) {
  if err := requireLength(FrameTelemetryV1, body, minLengthV1); err != nil {
    return device.Reading{}, err
  }

  reading := parseMetrics(body[metricsOffset:metricsOffset + metricsLength])
  reading.FormatVersion = utils.Ptr(int(body[0]))
  reading.MacAddress = utils.Ptr(net.HardwareAddr(body[1:7]).String())

  return reading, nil
}

func parseV2(body []byte) (device.Reading, error) {
  if err := requireLength(FrameTelemetryV2, body, minLengthV2); err != nil {
    return device.Reading{}, err
  }

  reading := parseMetrics(body[metricsOffset:metricsOffset + metricsLength])
  reading.FormatVersion = utils.Ptr(int(body[0]))

  // body[1] is reserved. the velocity bytes are always there, but only meaningful
  // when the flag is set.
  if body[2] != 0 {
    velocity := math.Float32frombits(bo.Uint32(body[3:]))

    if !math.IsNaN(float64(velocity)) && !math.IsInf(float64(velocity), 0) {
      reading.GravityVelocityValid = true
      reading.GravityVelocity = utils.Ptr(float64(velocity))
    }
  }

  return reading, nil
}

func parseLegacy(body []byte) (device.Reading, error) {
  if err := requireLength(FrameLegacy, body, minLengthLegacy); err != nil {
    return device.Reading{}, err
  }

  reading := parseMetrics(body[metricsOffset:metricsOffset + metricsLength])
  reading.FormatVersion = utils.Ptr(int(body[0]))
  reading.MacAddress = utils.Ptr(net.HardwareAddr(body[1:7]).String())

  return reading, nil
}

// decodeString never fails on invalid UTF-8: bad sequences become U+FFFD.
func decodeString(body []byte) string {
  s := strings.ToValidUTF8(string(body), string(unicode.ReplacementChar))

  return strings.TrimFunc(s, func(r rune) bool {
    return unicode.IsSpace(r) || r == 0
  })
}

func parseFirmware(body []byte) (reading device.Reading, err error) {
  if err := requireLength(FrameFirmwareInfo, body, minLengthString); err != nil {
    return reading, err
  }

  reading.FirmwareVersion = utils.Ptr(decodeString(body))

  return reading, nil
}

func parseDeviceType(body []byte) (reading device.Reading, err error) {
  if err := requireLength(FrameDeviceTypeInfo, body, minLengthString); err != nil {
    return reading, err
  }

  reading.DeviceType = utils.Ptr(decodeString(body))

  return reading, nil
}
