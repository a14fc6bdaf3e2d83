// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package formula

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sustainable-computing-io/gpucounters/internal/counter"
)

func TestFromBytes(t *testing.T) {
	f32 := make([]byte, 4)
	binary.LittleEndian.PutUint32(f32, math.Float32bits(1.5))
	f64 := make([]byte, 8)
	binary.LittleEndian.PutUint64(f64, math.Float64bits(-2.25))

	tests := []struct {
		name     string
		typ      counter.DataType
		blob     []byte
		expected Value
	}{
		{"uint32", counter.TypeUint32, []byte{0x10, 0, 0, 0}, Uint32(16)},
		{"uint64", counter.TypeUint64, []byte{0, 1, 0, 0, 0, 0, 0, 0}, Uint64(256)},
		{"int32 sign", counter.TypeInt32, []byte{0xff, 0xff, 0xff, 0xff}, Int32(-1)},
		{"int64", counter.TypeInt64, []byte{0xfe, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Int64(-2)},
		{"float32", counter.TypeFloat32, f32, Float32(1.5)},
		{"float64", counter.TypeFloat64, f64, Float64(-2.25)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromBytes(tt.typ, tt.blob)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}

	t.Run("wrong width", func(t *testing.T) {
		_, err := FromBytes(counter.TypeUint64, []byte{1, 2, 3, 4})
		assert.Error(t, err)
	})

	t.Run("invalid type", func(t *testing.T) {
		_, err := FromBytes(counter.DataType(-1), []byte{1, 2, 3, 4})
		assert.Error(t, err)
	})
}

func TestValue_Encode(t *testing.T) {
	t.Run("round trips through FromBytes", func(t *testing.T) {
		for _, v := range []Value{Uint32(7), Uint64(1 << 40), Int32(-5), Int64(-1 << 40), Float32(0.25), Float64(math.Pi)} {
			buf := make([]byte, 8)
			n, err := v.Encode(buf)
			require.NoError(t, err)
			assert.Equal(t, v.Type().Size(), n)

			decoded, err := FromBytes(v.Type(), buf[:n])
			require.NoError(t, err)
			assert.Equal(t, v, decoded)
		}
	})

	t.Run("buffer too small", func(t *testing.T) {
		_, err := Uint64(1).Encode(make([]byte, 4))
		assert.Error(t, err)
	})
}

func TestValue_Conversions(t *testing.T) {
	v := Int32(-3)
	assert.Equal(t, int64(-3), v.Int64())
	assert.Equal(t, float64(-3), v.Float64())
	assert.Equal(t, int32(-3), v.Interface())
	assert.Equal(t, "-3", v.String())

	f := Float32(2.5)
	assert.Equal(t, 2.5, f.Float64())
	assert.Equal(t, uint64(2), f.Uint64())
	assert.Equal(t, float32(2.5), f.Interface())
	assert.Equal(t, "2.5", f.String())

	assert.Equal(t, "18446744073709551615", Uint64(math.MaxUint64).String())
	assert.Equal(t, uint32(9), Uint32(9).Interface())
	assert.Equal(t, counter.TypeFloat32, Value{}.Type())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		typ      counter.DataType
		in       string
		expected Value
	}{
		{counter.TypeUint32, "42", Uint32(42)},
		{counter.TypeUint64, "18446744073709551615", Uint64(math.MaxUint64)},
		{counter.TypeInt32, "-7", Int32(-7)},
		{counter.TypeInt64, "-9000000000", Int64(-9_000_000_000)},
		{counter.TypeFloat32, "0.5", Float32(0.5)},
		{counter.TypeFloat64, "1e3", Float64(1000)},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			v, err := ParseValue(tt.typ, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}

	invalid := []struct {
		typ counter.DataType
		in  string
	}{
		{counter.TypeUint32, "4294967296"},
		{counter.TypeUint64, "-1"},
		{counter.TypeInt32, "1.5"},
		{counter.TypeFloat64, "many"},
		{counter.DataType(42), "1"},
	}
	for _, tt := range invalid {
		_, err := ParseValue(tt.typ, tt.in)
		assert.Error(t, err, "%s %q", tt.typ, tt.in)
	}
}
