package device

import (
  "fmt"
  "math"
  "strings"
)

// Reading is a single decoded advertisement. It is either a metrics reading
// (temperature, gravity, battery, accelerometer) or a metadata reading
// (firmware version, device type), never both.
type Reading struct {
  Temperature *float64 `json:"temperature_celsius,omitempty"`
  SpecificGravity *float64 `json:"specific_gravity,omitempty"`

  // points/day, only sent by v2 frames.
  GravityVelocity *float64 `json:"gravity_velocity,omitempty"`
  GravityVelocityValid bool `json:"gravity_velocity_valid,omitempty"`

  Battery *int `json:"battery_percent,omitempty"`

  AccelX *float64 `json:"accel_x,omitempty"`
  AccelY *float64 `json:"accel_y,omitempty"`
  AccelZ *float64 `json:"accel_z,omitempty"`

  // filled in from the transport, not the payload.
  SignalStrength *int `json:"signal_strength_dbm,omitempty"`

  FirmwareVersion *string `json:"firmware_version,omitempty"`
  DeviceType *string `json:"device_type,omitempty"`
  FormatVersion *int `json:"format_version,omitempty"`
  MacAddress *string `json:"mac_address,omitempty"`
}

func (r Reading) IsMetadata() bool {
  return r.FirmwareVersion != nil || r.DeviceType != nil
}

func (r Reading) HasAccelerometer() bool {
  return r.AccelX != nil && r.AccelY != nil && r.AccelZ != nil
}

// AccelMagnitude returns the length of the accelerometer vector in g.
func (r Reading) AccelMagnitude() (float64, bool) {
  if !r.HasAccelerometer() {
    return 0, false
  }

  x, y, z := *r.AccelX, *r.AccelY, *r.AccelZ

  return math.Sqrt(x*x + y*y + z*z), true
}

func (r Reading) String() string {
  var fields []string

  if r.FirmwareVersion != nil {
    fields = append(fields, fmt.Sprintf("Firmware=%q", *r.FirmwareVersion))
  }

  if r.DeviceType != nil {
    fields = append(fields, fmt.Sprintf("DeviceType=%q", *r.DeviceType))
  }

  if r.FormatVersion != nil {
    fields = append(fields, fmt.Sprintf("Version=%d", *r.FormatVersion))
  }

  if r.Temperature != nil {
    fields = append(fields, fmt.Sprintf("Temperature=%.2fC", *r.Temperature))
  }

  if r.SpecificGravity != nil {
    fields = append(fields, fmt.Sprintf("Gravity=%.4f", *r.SpecificGravity))
  }

  if r.GravityVelocityValid && r.GravityVelocity != nil {
    fields = append(fields, fmt.Sprintf("Velocity=%.2fpts/d", *r.GravityVelocity))
  }

  if r.Battery != nil {
    fields = append(fields, fmt.Sprintf("Battery=%d%%", *r.Battery))
  }

  if r.HasAccelerometer() {
    fields = append(fields, fmt.Sprintf("Accel=(%.3f,%.3f,%.3f)", *r.AccelX, *r.AccelY, *r.AccelZ))
  }

  if r.SignalStrength != nil {
    fields = append(fields, fmt.Sprintf("RSSI=%ddBm", *r.SignalStrength))
  }

  if r.MacAddress != nil {
    fields = append(fields, "Mac=" + *r.MacAddress)
  }

  return fmt.Sprintf("Reading[%v]", strings.Join(fields, ","))
}
