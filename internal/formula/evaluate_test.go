// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package formula

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sustainable-computing-io/gpucounters/internal/counter"
	"github.com/sustainable-computing-io/gpucounters/internal/hwinfo"
)

func testHWInfo() *hwinfo.Static {
	return &hwinfo.Static{
		DeviceName:    "Test GPU",
		Vendor:        "amd",
		ShaderEngines: 4,
		SIMDs:         64,
		PrimPipes:     2,
		SUClocks:      3,
		TSFrequency:   100_000_000,
	}
}

func u64Samples(values ...uint64) Samples {
	s := make(Samples, len(values))
	for i, v := range values {
		s[i] = Uint64(v)
	}
	return s
}

// indices returns "0 1 ... n-1"
func indices(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%d", i)
	}
	return strings.Join(parts, " ")
}

func TestEvaluate_Arithmetic(t *testing.T) {
	tests := []struct {
		name       string
		formula    string
		resultType counter.DataType
		samples    Samples
		expected   Value
	}{{
		name:       "division",
		formula:    "0 1 /",
		resultType: counter.TypeUint64,
		samples:    u64Samples(10, 2),
		expected:   Uint64(5),
	}, {
		name:       "float division",
		formula:    "0 1 /",
		resultType: counter.TypeFloat32,
		samples:    u64Samples(10, 4),
		expected:   Float32(2.5),
	}, {
		name:       "left to right postfix",
		formula:    "0 1 + 2 *",
		resultType: counter.TypeFloat64,
		samples:    u64Samples(3, 4, 100),
		expected:   Float64(700),
	}, {
		name:       "subtraction order",
		formula:    "0 1 -",
		resultType: counter.TypeInt64,
		samples:    u64Samples(2, 5),
		expected:   Int64(-3),
	}, {
		name:       "signed 32 bit result",
		formula:    "0 1 - 2 *",
		resultType: counter.TypeInt32,
		samples:    u64Samples(2, 5, 2),
		expected:   Int32(-6),
	}, {
		name:       "unsigned subtraction wraps",
		formula:    "0 1 -",
		resultType: counter.TypeUint32,
		samples:    u64Samples(1, 2),
		expected:   Uint32(math.MaxUint32),
	}, {
		name:       "comma separated tokens",
		formula:    "0,1,+",
		resultType: counter.TypeUint64,
		samples:    u64Samples(40, 2),
		expected:   Uint64(42),
	}, {
		name:       "mixed separators",
		formula:    " 0 ,1  , *\t",
		resultType: counter.TypeUint64,
		samples:    u64Samples(6, 7),
		expected:   Uint64(42),
	}, {
		name:       "mixed storage widths",
		formula:    "0 1 +",
		resultType: counter.TypeUint64,
		samples:    Samples{Uint32(3), Uint64(4)},
		expected:   Uint64(7),
	}, {
		name:       "samples may be referenced more than once",
		formula:    "0 0 * 1 /",
		resultType: counter.TypeFloat64,
		samples:    u64Samples(6, 4),
		expected:   Float64(9),
	}, {
		name:       "max",
		formula:    "0 1 max",
		resultType: counter.TypeUint32,
		samples:    u64Samples(3, 9),
		expected:   Uint32(9),
	}, {
		name:       "min",
		formula:    "0 1 MIN",
		resultType: counter.TypeUint32,
		samples:    u64Samples(3, 9),
		expected:   Uint32(3),
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Evaluate(tt.formula, tt.resultType, tt.samples, testHWInfo())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
			assert.Equal(t, tt.resultType, v.Type())
		})
	}
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	types := []counter.DataType{
		counter.TypeFloat32, counter.TypeFloat64,
		counter.TypeUint32, counter.TypeUint64,
		counter.TypeInt32, counter.TypeInt64,
	}

	for _, rt := range types {
		t.Run(rt.String(), func(t *testing.T) {
			v, err := Evaluate("0 1 /", rt, u64Samples(10, 0), nil)
			require.NoError(t, err)
			assert.Equal(t, rt, v.Type())
			assert.Zero(t, v.Float64())
			assert.False(t, math.IsNaN(v.Float64()))
			assert.False(t, math.IsInf(v.Float64(), 0))
		})
	}
}

func TestEvaluate_FixedWidthReductions(t *testing.T) {
	t.Run("sum4", func(t *testing.T) {
		v, err := Evaluate("1 2 3 4 sum4", counter.TypeUint64, u64Samples(0, 1, 2, 3, 4), nil)
		require.NoError(t, err)
		assert.Equal(t, Uint64(10), v)
	})

	t.Run("max16 over distinct values", func(t *testing.T) {
		values := make([]uint64, 16)
		for i := range values {
			// a permutation of 1..16 with the maximum at index 9
			values[i] = uint64(i*7%16 + 1)
		}
		v, err := Evaluate(indices(16)+" max16", counter.TypeUint64, u64Samples(values...), nil)
		require.NoError(t, err)
		assert.Equal(t, Uint64(16), v)
	})

	for width := range sumTokens {
		t.Run(width, func(t *testing.T) {
			n := int(sumTokens[width])
			values := make([]uint64, n)
			var expected uint64
			for i := range values {
				values[i] = uint64(i + 1)
				expected += values[i]
			}
			v, err := Evaluate(indices(n)+" "+width, counter.TypeUint64, u64Samples(values...), nil)
			require.NoError(t, err)
			assert.Equal(t, Uint64(expected), v)
		})
	}

	for width := range maxTokens {
		t.Run(width, func(t *testing.T) {
			n := int(maxTokens[width])
			values := make([]uint64, n)
			for i := range values {
				values[i] = uint64((i * 13) % n)
			}
			values[n/3] = 1000
			v, err := Evaluate(indices(n)+" "+strings.ToUpper(width), counter.TypeFloat64, u64Samples(values...), nil)
			require.NoError(t, err)
			assert.Equal(t, Float64(1000), v)
		})
	}

	t.Run("reduction consumes exactly its width", func(t *testing.T) {
		// the constant below the 16 reduced values survives
		samples := u64Samples(5, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)
		formula := "(100) " + strings.Join(strings.Fields(indices(17))[1:], " ") + " max16 +"
		v, err := Evaluate(formula, counter.TypeUint64, samples, nil)
		require.NoError(t, err)
		assert.Equal(t, Uint64(116), v)
	})

	t.Run("too few operands", func(t *testing.T) {
		_, err := Evaluate("0 1 2 sum4", counter.TypeUint64, u64Samples(1, 2, 3), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStackUnderflow)
	})
}

func TestEvaluate_IfNotZero(t *testing.T) {
	tests := []struct {
		name      string
		condition uint64
		expected  Value
	}{
		{name: "condition set", condition: 1, expected: Uint64(9)},
		{name: "condition large", condition: 1 << 40, expected: Uint64(9)},
		{name: "condition zero", condition: 0, expected: Uint64(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// pushed in order: false value, true value, condition
			v, err := Evaluate("0 1 2 ifnotzero", counter.TypeUint64, u64Samples(7, 9, tt.condition), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestEvaluate_HardwareConstants(t *testing.T) {
	hw := testHWInfo()
	tests := []struct {
		formula    string
		resultType counter.DataType
		expected   Value
	}{
		{"NUM_SIMDS", counter.TypeUint32, Uint32(64)},
		{"num_simds", counter.TypeUint32, Uint32(64)},
		{"Num_Shader_Engines", counter.TypeUint64, Uint64(4)},
		{"num_prim_pipes", counter.TypeInt32, Int32(2)},
		{"SU_CLOCKS_PRIM", counter.TypeFloat32, Float32(3)},
		{"ts_freq", counter.TypeUint64, Uint64(100_000_000)},
		{"TS_FREQ (1000) /", counter.TypeFloat64, Float64(100_000)},
		{"num_simds num_shader_engines /", counter.TypeUint32, Uint32(16)},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := Evaluate(tt.formula, tt.resultType, Samples{}, hw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}

	t.Run("independent of sample content", func(t *testing.T) {
		empty, err := Evaluate("NUM_SIMDS", counter.TypeUint32, nil, hw)
		require.NoError(t, err)
		full, err := Evaluate("NUM_SIMDS", counter.TypeUint32, u64Samples(1, 2, 3), hw)
		require.NoError(t, err)
		assert.Equal(t, empty, full)
	})

	t.Run("missing hardware info", func(t *testing.T) {
		_, err := Evaluate("num_simds", counter.TypeUint32, nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoHardwareInfo)
	})
}

func TestEvaluate_Constants(t *testing.T) {
	tests := []struct {
		name       string
		formula    string
		resultType counter.DataType
		samples    Samples
		expected   Value
		err        error
	}{{
		name:       "uint32",
		formula:    "0 (2) *",
		resultType: counter.TypeUint32,
		samples:    u64Samples(21),
		expected:   Uint32(42),
	}, {
		name:       "uint64",
		formula:    "(18446744073709551615)",
		resultType: counter.TypeUint64,
		expected:   Uint64(math.MaxUint64),
	}, {
		name:       "float32",
		formula:    "(0.5) 0 *",
		resultType: counter.TypeFloat32,
		samples:    u64Samples(8),
		expected:   Float32(4),
	}, {
		name:       "float64",
		formula:    "0 (1.5) +",
		resultType: counter.TypeFloat64,
		samples:    u64Samples(1),
		expected:   Float64(2.5),
	}, {
		name:       "percentage",
		formula:    "0 1 / (100) *",
		resultType: counter.TypeFloat64,
		samples:    u64Samples(1, 4),
		expected:   Float64(25),
	}, {
		name:       "int32 has no literal format",
		formula:    "(1)",
		resultType: counter.TypeInt32,
		err:        ErrUnsupportedConstant,
	}, {
		name:       "int64 has no literal format",
		formula:    "0 (1) +",
		resultType: counter.TypeInt64,
		samples:    u64Samples(1),
		err:        ErrUnsupportedConstant,
	}, {
		name:       "float literal for integer type",
		formula:    "(1.5)",
		resultType: counter.TypeUint32,
		err:        ErrInvalidConstant,
	}, {
		name:       "uint32 overflow",
		formula:    "(4294967296)",
		resultType: counter.TypeUint32,
		err:        ErrInvalidConstant,
	}, {
		name:       "not a number",
		formula:    "(abc)",
		resultType: counter.TypeFloat64,
		err:        ErrInvalidConstant,
	}, {
		name:       "unterminated",
		formula:    "(12",
		resultType: counter.TypeUint64,
		err:        ErrInvalidConstant,
	}, {
		name:       "empty",
		formula:    "()",
		resultType: counter.TypeUint64,
		err:        ErrInvalidConstant,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Evaluate(tt.formula, tt.resultType, tt.samples, nil)
			if tt.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.err)
				assert.True(t, IsFormulaError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestEvaluate_MalformedFormula(t *testing.T) {
	tests := []struct {
		name     string
		formula  string
		samples  Samples
		err      error
		position int
		token    string
	}{
		{name: "two values left", formula: "0 1", samples: u64Samples(1, 2), err: ErrStackDepth, position: -1},
		{name: "empty formula", formula: "", err: ErrStackDepth, position: -1},
		{name: "only separators", formula: " , ,", err: ErrStackDepth, position: -1},
		{name: "operator without operands", formula: "+", err: ErrStackUnderflow, position: 0, token: "+"},
		{name: "binary with one operand", formula: "0 *", samples: u64Samples(1), err: ErrStackUnderflow, position: 1, token: "*"},
		{name: "ifnotzero with two operands", formula: "0 1 ifnotzero", samples: u64Samples(1, 2), err: ErrStackUnderflow, position: 2, token: "ifnotzero"},
		{name: "unknown token", formula: "0 foo +", samples: u64Samples(1), err: ErrUnknownToken, position: 1, token: "foo"},
		{name: "negative index", formula: "-1", err: ErrUnknownToken, position: 0, token: "-1"},
		{name: "sample index out of range", formula: "0 5 +", samples: u64Samples(1, 2), err: ErrSampleIndex, position: 1, token: "5"},
		{name: "no samples", formula: "0", err: ErrSampleIndex, position: 0, token: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.formula, counter.TypeUint64, tt.samples, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)

			var fe *FormulaError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.formula, fe.Formula)
			assert.Equal(t, tt.position, fe.Position)
			assert.Equal(t, tt.token, fe.Token)
			assert.Contains(t, fe.Error(), "invalid formula")
		})
	}
}

func TestEvaluate_UnsupportedTypes(t *testing.T) {
	t.Run("float storage", func(t *testing.T) {
		_, err := Evaluate("0", counter.TypeFloat64, Samples{Float64(1)}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedType)
		assert.False(t, IsFormulaError(err))
	})

	t.Run("signed storage", func(t *testing.T) {
		_, err := Evaluate("0 1 +", counter.TypeInt64, Samples{Uint64(1), Int64(2)}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("invalid result type", func(t *testing.T) {
		_, err := Compile("0", counter.DataType(42))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("supported combinations", func(t *testing.T) {
		for rt := range evaluators {
			assert.True(t, Supported(rt, counter.TypeUint32), rt.String())
			assert.True(t, Supported(rt, counter.TypeUint64), rt.String())
			assert.False(t, Supported(rt, counter.TypeFloat32), rt.String())
			assert.False(t, Supported(rt, counter.TypeInt64), rt.String())
		}
	})
}

func TestProgram(t *testing.T) {
	p, err := Compile("0 3 + num_simds *", counter.TypeFloat64)
	require.NoError(t, err)

	assert.Equal(t, "0 3 + num_simds *", p.Formula())
	assert.Equal(t, counter.TypeFloat64, p.ResultType())
	assert.Equal(t, 4, p.MinSamples())

	t.Run("repeated evaluation is bit identical", func(t *testing.T) {
		samples := u64Samples(1, 0, 0, 2)
		first, err := p.Evaluate(samples, testHWInfo())
		require.NoError(t, err)
		assert.Equal(t, Float64(192), first)

		for range 100 {
			v, err := p.Evaluate(samples, testHWInfo())
			require.NoError(t, err)
			assert.Equal(t, first, v)
		}
	})

	t.Run("concurrent evaluation", func(t *testing.T) {
		const workers = 16
		hw := testHWInfo()
		results := make([]Value, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		wg.Add(workers)
		for i := range workers {
			go func() {
				defer wg.Done()
				results[i], errs[i] = p.Evaluate(u64Samples(uint64(i), 0, 0, 1), hw)
			}()
		}
		wg.Wait()

		for i := range workers {
			require.NoError(t, errs[i])
			assert.Equal(t, Float64(float64((i+1)*64)), results[i])
		}
	})

	t.Run("constant only formula needs no samples", func(t *testing.T) {
		p, err := Compile("(5)", counter.TypeUint32)
		require.NoError(t, err)
		assert.Equal(t, 0, p.MinSamples())
	})
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"0", "1", "+", "(2)", "*"}, Tokenize("0, 1 +,(2)  *"))
	assert.Empty(t, Tokenize(" ,, "))
}
