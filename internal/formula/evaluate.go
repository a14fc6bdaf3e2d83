// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package formula

import (
	"fmt"

	"github.com/sustainable-computing-io/gpucounters/internal/counter"
	"github.com/sustainable-computing-io/gpucounters/internal/hwinfo"
)

type evalFunc func(p *Program, samples Samples, hw hwinfo.Info) (Value, error)

func evaluator[T number](t counter.DataType) evalFunc {
	return func(p *Program, samples Samples, hw hwinfo.Info) (Value, error) {
		x, err := run[T](p, samples, hw)
		if err != nil {
			return Value{}, err
		}
		return valueOf(x, t), nil
	}
}

// one instantiation per result type; samples carry their own type tag
var evaluators = map[counter.DataType]evalFunc{
	counter.TypeFloat32: evaluator[float32](counter.TypeFloat32),
	counter.TypeFloat64: evaluator[float64](counter.TypeFloat64),
	counter.TypeUint32:  evaluator[uint32](counter.TypeUint32),
	counter.TypeUint64:  evaluator[uint64](counter.TypeUint64),
	counter.TypeInt32:   evaluator[int32](counter.TypeInt32),
	counter.TypeInt64:   evaluator[int64](counter.TypeInt64),
}

type combination struct {
	result  counter.DataType
	storage counter.DataType
}

// supported lists every (result type, raw sample storage type) pair.
// Raw samples are stored as 32 or 64 bit unsigned integers.
var supported = func() map[combination]bool {
	m := make(map[combination]bool, 2*len(evaluators))
	for result := range evaluators {
		for _, storage := range []counter.DataType{counter.TypeUint32, counter.TypeUint64} {
			m[combination{result: result, storage: storage}] = true
		}
	}
	return m
}()

// Supported reports whether a counter of the given result type can be
// evaluated over raw samples stored as storage
func Supported(result, storage counter.DataType) bool {
	return supported[combination{result: result, storage: storage}]
}

// Evaluate runs the program over samples. hw may be nil if the formula does
// not reference hardware constants.
func (p *Program) Evaluate(samples Samples, hw hwinfo.Info) (Value, error) {
	eval, ok := evaluators[p.resultType]
	if !ok {
		return Value{}, fmt.Errorf("%w: result type %s", ErrUnsupportedType, p.resultType)
	}

	for i, s := range samples {
		if !Supported(p.resultType, s.Type()) {
			return Value{}, fmt.Errorf("%w: result type %s with sample %d stored as %s",
				ErrUnsupportedType, p.resultType, i, s.Type())
		}
	}

	if p.usesHWInfo && hw == nil {
		return Value{}, &FormulaError{Formula: p.formula, Position: -1, Err: ErrNoHardwareInfo}
	}

	return eval(p, samples, hw)
}

// Evaluate compiles and runs a formula in one step
func Evaluate(formula string, resultType counter.DataType, samples Samples, hw hwinfo.Info) (Value, error) {
	p, err := Compile(formula, resultType)
	if err != nil {
		return Value{}, err
	}
	return p.Evaluate(samples, hw)
}
