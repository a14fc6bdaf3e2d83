// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package counter

import (
	"fmt"
	"strings"
)

// DataType is the numeric representation of a counter value. It is used both
// for raw (hardware) sample storage and for the declared result of a public counter.
type DataType int

const (
	TypeFloat32 DataType = iota
	TypeFloat64
	TypeUint32
	TypeUint64
	TypeInt32
	TypeInt64

	typeLast
)

var dataTypeNames = [...]string{
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeUint32:  "uint32",
	TypeUint64:  "uint64",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
}

// Valid reports whether t is one of the six known data types
func (t DataType) Valid() bool {
	return t >= TypeFloat32 && t < typeLast
}

// Size returns the width of the type in bytes, 0 for an invalid type
func (t DataType) Size() int {
	switch t {
	case TypeFloat32, TypeUint32, TypeInt32:
		return 4
	case TypeFloat64, TypeUint64, TypeInt64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether t is a floating point type
func (t DataType) IsFloat() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

func (t DataType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return dataTypeNames[t]
}

// ParseDataType parses the (case-insensitive) name of a data type
func ParseDataType(s string) (DataType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range dataTypeNames {
		if n == name {
			return DataType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown data type: %q", s)
}

func (t DataType) MarshalYAML() (interface{}, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid data type: %d", int(t))
	}
	return t.String(), nil
}

func (t *DataType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UsageType describes the unit of a public counter value
type UsageType int

const (
	UsageRatio UsageType = iota
	UsagePercentage
	UsageCycles
	UsageMilliseconds
	UsageBytes
	UsageItems
	UsageKilobytes
	UsageNanoseconds

	usageLast
)

var usageNames = [...]string{
	UsageRatio:        "ratio",
	UsagePercentage:   "percentage",
	UsageCycles:       "cycles",
	UsageMilliseconds: "milliseconds",
	UsageBytes:        "bytes",
	UsageItems:        "items",
	UsageKilobytes:    "kilobytes",
	UsageNanoseconds:  "nanoseconds",
}

func (u UsageType) Valid() bool {
	return u >= UsageRatio && u < usageLast
}

func (u UsageType) String() string {
	if !u.Valid() {
		return fmt.Sprintf("UsageType(%d)", int(u))
	}
	return usageNames[u]
}

// ParseUsageType parses the (case-insensitive) name of a usage type
func ParseUsageType(s string) (UsageType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range usageNames {
		if n == name {
			return UsageType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown usage type: %q", s)
}

func (u UsageType) MarshalYAML() (interface{}, error) {
	if !u.Valid() {
		return nil, fmt.Errorf("invalid usage type: %d", int(u))
	}
	return u.String(), nil
}

func (u *UsageType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseUsageType(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// CounterType is the sampling category of a public counter
type CounterType int

const (
	// CounterDynamic counters are sampled around individual workloads
	CounterDynamic CounterType = iota
	// CounterSession counters are only meaningful for a whole session
	CounterSession

	counterTypeLast
)

func (c CounterType) Valid() bool {
	return c >= CounterDynamic && c < counterTypeLast
}

func (c CounterType) String() string {
	switch c {
	case CounterDynamic:
		return "dynamic"
	case CounterSession:
		return "session"
	default:
		return fmt.Sprintf("CounterType(%d)", int(c))
	}
}

// ParseCounterType parses the (case-insensitive) name of a counter type
func ParseCounterType(s string) (CounterType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dynamic":
		return CounterDynamic, nil
	case "session":
		return CounterSession, nil
	default:
		return 0, fmt.Errorf("unknown counter type: %q", s)
	}
}

func (c CounterType) MarshalYAML() (interface{}, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid counter type: %d", int(c))
	}
	return c.String(), nil
}

func (c *CounterType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseCounterType(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
