// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"fmt"
	"strings"
)

// Info is a read-only source of hardware configuration constants used by
// counter formulas. Implementations must be safe for concurrent reads.
type Info interface {
	// NumShaderEngines returns the number of shader engines
	NumShaderEngines() uint32

	// NumSIMDs returns the number of SIMD units
	NumSIMDs() uint32

	// NumPrimPipes returns the number of primitive pipes
	NumPrimPipes() uint32

	// SUClocksPrim returns the number of scan-converter clocks per primitive
	SUClocksPrim() uint32

	// TimestampFrequency returns the GPU timestamp frequency in Hz
	TimestampFrequency() uint64
}

// Static is an Info whose values are fixed at construction
type Static struct {
	DeviceName string `yaml:"deviceName"`
	Vendor     string `yaml:"vendor"`

	ShaderEngines uint32 `yaml:"numShaderEngines"`
	SIMDs         uint32 `yaml:"numSimds"`
	PrimPipes     uint32 `yaml:"numPrimPipes"`
	SUClocks      uint32 `yaml:"suClocksPrim"`
	TSFrequency   uint64 `yaml:"timestampFrequency"`
}

var _ Info = (*Static)(nil)

func (s *Static) NumShaderEngines() uint32   { return s.ShaderEngines }
func (s *Static) NumSIMDs() uint32           { return s.SIMDs }
func (s *Static) NumPrimPipes() uint32       { return s.PrimPipes }
func (s *Static) SUClocksPrim() uint32       { return s.SUClocks }
func (s *Static) TimestampFrequency() uint64 { return s.TSFrequency }

// Validate checks that the values formulas commonly divide by are set
func (s *Static) Validate() error {
	var errs []string
	if s.ShaderEngines == 0 {
		errs = append(errs, "number of shader engines must be > 0")
	}
	if s.SIMDs == 0 {
		errs = append(errs, "number of SIMDs must be > 0")
	}
	if s.TSFrequency == 0 {
		errs = append(errs, "timestamp frequency must be > 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid hardware info: %s", strings.Join(errs, ", "))
	}
	return nil
}

func (s *Static) String() string {
	return fmt.Sprintf("%s (%s) shader-engines=%d simds=%d prim-pipes=%d su-clocks-prim=%d ts-freq=%dHz",
		s.DeviceName, s.Vendor, s.ShaderEngines, s.SIMDs, s.PrimPipes, s.SUClocks, s.TSFrequency)
}
