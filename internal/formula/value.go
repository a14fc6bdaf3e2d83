// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package formula

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/sustainable-computing-io/gpucounters/internal/counter"
)

// Value is a numeric value tagged with its DataType. It is used both for raw
// hardware samples fed into a formula and for formula results.
//
// The zero Value is a float32 zero.
type Value struct {
	typ  counter.DataType
	bits uint64
}

// Samples is the ordered raw sample vector a formula indexes into with its
// plain integer tokens.
type Samples []Value

func Float32(v float32) Value {
	return Value{typ: counter.TypeFloat32, bits: uint64(math.Float32bits(v))}
}

func Float64(v float64) Value {
	return Value{typ: counter.TypeFloat64, bits: math.Float64bits(v)}
}

func Uint32(v uint32) Value {
	return Value{typ: counter.TypeUint32, bits: uint64(v)}
}

func Uint64(v uint64) Value {
	return Value{typ: counter.TypeUint64, bits: v}
}

func Int32(v int32) Value {
	return Value{typ: counter.TypeInt32, bits: uint64(int64(v))}
}

func Int64(v int64) Value {
	return Value{typ: counter.TypeInt64, bits: uint64(v)}
}

// FromBytes decodes a little-endian sample blob of the given type. The blob
// must be exactly as wide as the type.
func FromBytes(t counter.DataType, b []byte) (Value, error) {
	size := t.Size()
	if size == 0 {
		return Value{}, fmt.Errorf("invalid sample type: %s", t)
	}
	if len(b) != size {
		return Value{}, fmt.Errorf("sample of type %s needs %d bytes, got %d", t, size, len(b))
	}

	switch t {
	case counter.TypeFloat32, counter.TypeUint32:
		return Value{typ: t, bits: uint64(binary.LittleEndian.Uint32(b))}, nil
	case counter.TypeInt32:
		return Int32(int32(binary.LittleEndian.Uint32(b))), nil
	default:
		return Value{typ: t, bits: binary.LittleEndian.Uint64(b)}, nil
	}
}

// ParseValue parses the decimal text form of a value of type t
func ParseValue(t counter.DataType, s string) (Value, error) {
	var (
		v   Value
		err error
	)
	switch t {
	case counter.TypeFloat32:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		v = Float32(float32(f))
	case counter.TypeFloat64:
		var f float64
		f, err = strconv.ParseFloat(s, 64)
		v = Float64(f)
	case counter.TypeUint32:
		var u uint64
		u, err = strconv.ParseUint(s, 10, 32)
		v = Uint32(uint32(u))
	case counter.TypeUint64:
		var u uint64
		u, err = strconv.ParseUint(s, 10, 64)
		v = Uint64(u)
	case counter.TypeInt32:
		var i int64
		i, err = strconv.ParseInt(s, 10, 32)
		v = Int32(int32(i))
	case counter.TypeInt64:
		var i int64
		i, err = strconv.ParseInt(s, 10, 64)
		v = Int64(i)
	default:
		return Value{}, fmt.Errorf("invalid value type: %s", t)
	}
	if err != nil {
		return Value{}, fmt.Errorf("invalid %s value %q: %w", t, s, err)
	}
	return v, nil
}

// Type returns the type tag of the value
func (v Value) Type() counter.DataType {
	return v.typ
}

// Float64 returns the value converted to float64
func (v Value) Float64() float64 {
	return convert[float64](v)
}

// Uint64 returns the value converted to uint64 with Go conversion semantics
func (v Value) Uint64() uint64 {
	return convert[uint64](v)
}

// Int64 returns the value converted to int64 with Go conversion semantics
func (v Value) Int64() int64 {
	return convert[int64](v)
}

// Interface returns the value as its native Go type
func (v Value) Interface() any {
	switch v.typ {
	case counter.TypeFloat32:
		return math.Float32frombits(uint32(v.bits))
	case counter.TypeFloat64:
		return math.Float64frombits(v.bits)
	case counter.TypeUint32:
		return uint32(v.bits)
	case counter.TypeInt32:
		return int32(v.bits)
	case counter.TypeInt64:
		return int64(v.bits)
	default:
		return v.bits
	}
}

// Encode writes the value little-endian at its native width into dst and
// returns the number of bytes written.
func (v Value) Encode(dst []byte) (int, error) {
	size := v.typ.Size()
	if len(dst) < size {
		return 0, fmt.Errorf("buffer too small for %s: need %d bytes, have %d", v.typ, size, len(dst))
	}
	if size == 4 {
		binary.LittleEndian.PutUint32(dst, uint32(v.bits))
	} else {
		binary.LittleEndian.PutUint64(dst, v.bits)
	}
	return size, nil
}

func (v Value) String() string {
	switch v.typ {
	case counter.TypeFloat32:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(v.bits))), 'g', -1, 32)
	case counter.TypeFloat64:
		return strconv.FormatFloat(math.Float64frombits(v.bits), 'g', -1, 64)
	case counter.TypeInt32, counter.TypeInt64:
		return strconv.FormatInt(v.Int64(), 10)
	default:
		return strconv.FormatUint(v.bits, 10)
	}
}

type number interface {
	~float32 | ~float64 | ~uint32 | ~uint64 | ~int32 | ~int64
}

// convert reinterprets v according to its tag and converts it to T
func convert[T number](v Value) T {
	switch v.typ {
	case counter.TypeFloat32:
		return T(math.Float32frombits(uint32(v.bits)))
	case counter.TypeFloat64:
		return T(math.Float64frombits(v.bits))
	case counter.TypeUint32:
		return T(uint32(v.bits))
	case counter.TypeInt32:
		return T(int32(v.bits))
	case counter.TypeInt64:
		return T(int64(v.bits))
	default:
		return T(v.bits)
	}
}

// valueOf tags x, which must be the Go type matching t
func valueOf[T number](x T, t counter.DataType) Value {
	switch t {
	case counter.TypeFloat32:
		return Float32(float32(x))
	case counter.TypeFloat64:
		return Float64(float64(x))
	case counter.TypeUint32:
		return Uint32(uint32(x))
	case counter.TypeInt32:
		return Int32(int32(x))
	case counter.TypeInt64:
		return Int64(int64(x))
	default:
		return Uint64(uint64(x))
	}
}
