package ble

import (
  "strconv"
  "strings"
)

type Flags int

const (
  // Send scan requests, so that scan responses are reported as well.
  FlagScanTypeActive Flags = 1 << iota
  // Drop advertisements from unknown addresses in the controller. Must be
  // configured with `SetAllowListedAddresses()`.
  FlagEnableDeviceAllowList
)

var flagNames = []struct {
  flag Flags
  name string
}{
  {FlagScanTypeActive, "active scan"},
  {FlagEnableDeviceAllowList, "device allow-list"},
}

func (f Flags) Has(flag Flags) bool {
  return f & flag == flag
}

func (f Flags) String() string {
  var names []string

  for _, n := range flagNames {
    if f.Has(n.flag) {
      names = append(names, n.name)
    }
  }

  if len(names) == 0 {
    return "none"
  }

  return strings.Join(names, ", ")
}

// LE Set Scan Parameters values.
type scanType uint8

const (
  scanTypePassive scanType = 0x00
  scanTypeActive scanType = 0x01
)

func (s scanType) String() string {
  switch s {
  case scanTypeActive:
    return "Active"
  case scanTypePassive:
    return "Passive"
  default:
    return "scanType(" + strconv.Itoa(int(s)) + ")"
  }
}

type filterPolicy uint8

const (
  filterPolicyAcceptAll filterPolicy = 0x00
  filterPolicyAllowListedOnly filterPolicy = 0x01
)

func (f filterPolicy) String() string {
  switch f {
  case filterPolicyAcceptAll:
    return "Accept All"
  case filterPolicyAllowListedOnly:
    return "Allow-listed Only"
  default:
    return "filterPolicy(" + strconv.Itoa(int(f)) + ")"
  }
}
