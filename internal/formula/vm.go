// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package formula

import (
	"fmt"

	"github.com/sustainable-computing-io/gpucounters/internal/hwinfo"
)

// run executes p with T as the arithmetic type. Compile guarantees every
// instruction finds enough operands, so only sample indices are checked here.
func run[T number](p *Program, samples Samples, hw hwinfo.Info) (T, error) {
	stack := make([]T, 0, p.maxDepth)

	for _, in := range p.code {
		n := len(stack)

		switch in.op {
		case opSample:
			if int(in.arg) >= len(samples) {
				return 0, p.errorAt(in.pos,
					fmt.Errorf("%w: %d, have %d samples", ErrSampleIndex, in.arg, len(samples)))
			}
			stack = append(stack, convert[T](samples[in.arg]))

		case opConst:
			stack = append(stack, convert[T](in.konst))

		case opHardware:
			stack = append(stack, hardwareConstant[T](in.arg, hw))

		case opAdd:
			stack[n-2] += stack[n-1]
			stack = stack[:n-1]

		case opSub:
			stack[n-2] -= stack[n-1]
			stack = stack[:n-1]

		case opMul:
			stack[n-2] *= stack[n-1]
			stack = stack[:n-1]

		case opDiv:
			// division by zero yields zero for every type, never NaN or Inf
			if stack[n-1] == 0 {
				stack[n-2] = 0
			} else {
				stack[n-2] /= stack[n-1]
			}
			stack = stack[:n-1]

		case opMax:
			if !(stack[n-2] > stack[n-1]) {
				stack[n-2] = stack[n-1]
			}
			stack = stack[:n-1]

		case opMin:
			if !(stack[n-2] < stack[n-1]) {
				stack[n-2] = stack[n-1]
			}
			stack = stack[:n-1]

		case opMaxN:
			width := int(in.arg)
			// scan from the top of the stack down, keeping the first maximum seen
			m := stack[n-1]
			for i := n - 2; i >= n-width; i-- {
				if !(m > stack[i]) {
					m = stack[i]
				}
			}
			stack = append(stack[:n-width], m)

		case opSumN:
			width := int(in.arg)
			var sum T
			for i := n - 1; i >= n-width; i-- {
				sum += stack[i]
			}
			stack = append(stack[:n-width], sum)

		case opIfNotZero:
			cond, ifTrue, ifFalse := stack[n-1], stack[n-2], stack[n-3]
			stack = stack[:n-3]
			if cond != 0 {
				stack = append(stack, ifTrue)
			} else {
				stack = append(stack, ifFalse)
			}
		}
	}

	return stack[0], nil
}

func hardwareConstant[T number](id uint32, hw hwinfo.Info) T {
	switch id {
	case hwShaderEngines:
		return T(hw.NumShaderEngines())
	case hwSIMDs:
		return T(hw.NumSIMDs())
	case hwSUClocksPrim:
		return T(hw.SUClocksPrim())
	case hwPrimPipes:
		return T(hw.NumPrimPipes())
	default:
		return T(hw.TimestampFrequency())
	}
}
