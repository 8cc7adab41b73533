package device

import (
  "strconv"
  "strings"

  "github.com/rs/zerolog/log"
)

// DeviceSpec is the `key=value,key=value` description of a device passed on the
// command line.
type DeviceSpec map[string]string

const (
  DeviceSpecFieldName = "name"
  DeviceSpecFieldAddress = "addr"
  DeviceSpecFieldLegacy = "legacy"
)

func NewDeviceSpec(s string) DeviceSpec {
  spec := DeviceSpec{}

  for _, entry := range strings.Split(s, ",") {
    if strings.TrimSpace(entry) == "" {
      continue
    }

    key, value, ok := strings.Cut(entry, "=")

    if !ok {
      log.Warn().Str("Entry", entry).Msg("Skipping invalid device spec entry")
      continue
    }

    spec[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
  }

  return spec
}

func (ds DeviceSpec) Name() string {
  return ds[DeviceSpecFieldName]
}

func (ds DeviceSpec) Addr() string {
  return ds[DeviceSpecFieldAddress]
}

// Bool interprets the value of key as a boolean. Missing or unparseable values
// are false.
func (ds DeviceSpec) Bool(key string) bool {
  v, ok := ds[key]

  if !ok {
    return false
  }

  switch strings.ToLower(v) {
  case "yes", "on":
    return true
  }

  b, err := strconv.ParseBool(v)

  return err == nil && b
}
