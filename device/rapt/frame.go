package rapt

import (
  "bytes"
  "strconv"
)

const (
  // Manufacturer IDs as they appear in the advertisement. The BLE stack keeps
  // them little-endian in front of the payload, hence "RA" and "KE".
  VendorRAPT uint16 = 0x4152
  VendorKegLand uint16 = 0x454b
)

var (
  tagTelemetry = []byte("RAPT")
  tagDeviceType = []byte("KEGDT")
  tagFirmware = []byte("KEG")
  tagLegacy = []byte("PT")
)

// FrameKind is the packet family of a manufacturer data payload.
type FrameKind uint8

const (
  FrameUnknown FrameKind = iota
  FrameTelemetryV1
  FrameTelemetryV2
  FrameFirmwareInfo
  FrameDeviceTypeInfo
  FrameLegacy
)

func (k FrameKind) String() string {
  switch k {
  case FrameUnknown:
    return "Unknown"
  case FrameTelemetryV1:
    return "TelemetryV1"
  case FrameTelemetryV2:
    return "TelemetryV2"
  case FrameFirmwareInfo:
    return "FirmwareInfo"
  case FrameDeviceTypeInfo:
    return "DeviceTypeInfo"
  case FrameLegacy:
    return "Legacy"
  default:
    return "FrameKind(" + strconv.Itoa(int(k)) + ")"
  }
}

// tag returns the prefix stripped off the payload before decoding.
func (k FrameKind) tag() []byte {
  switch k {
  case FrameTelemetryV1, FrameTelemetryV2:
    return tagTelemetry
  case FrameFirmwareInfo:
    return tagFirmware
  case FrameDeviceTypeInfo:
    return tagDeviceType
  case FrameLegacy:
    return tagLegacy
  default:
    return nil
  }
}

// Classify inspects the payload prefix and returns the frame family. It never
// fails: anything it cannot recognize, including payloads shorter than every
// known tag, is FrameUnknown.
func Classify(vendorID uint16, payload []byte) FrameKind {
  switch vendorID {
  case VendorRAPT:
    if bytes.HasPrefix(payload, tagTelemetry) {
      if len(payload) <= len(tagTelemetry) {
        return FrameUnknown
      }

      switch payload[len(tagTelemetry)] {
      case 1:
        return FrameTelemetryV1
      case 2:
        return FrameTelemetryV2
      default:
        return FrameUnknown
      }
    }

    if bytes.HasPrefix(payload, tagLegacy) {
      return FrameLegacy
    }
  case VendorKegLand:
    // KEGDT shares its first three bytes with the firmware tag.
    if bytes.HasPrefix(payload, tagDeviceType) {
      return FrameDeviceTypeInfo
    }

    if bytes.HasPrefix(payload, tagFirmware) {
      return FrameFirmwareInfo
    }
  }

  return FrameUnknown
}
