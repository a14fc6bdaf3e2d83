// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/sustainable-computing-io/gpucounters/internal/counter"
)

type opcode uint8

const (
	opSample opcode = iota
	opConst
	opHardware
	opAdd
	opSub
	opMul
	opDiv
	opMax
	opMin
	opMaxN
	opSumN
	opIfNotZero
)

// hardware constant ids, stored in instruction.arg
const (
	hwShaderEngines uint32 = iota
	hwSIMDs
	hwSUClocksPrim
	hwPrimPipes
	hwTimestampFrequency
)

var hardwareTokens = map[string]uint32{
	"num_shader_engines": hwShaderEngines,
	"num_simds":          hwSIMDs,
	"su_clocks_prim":     hwSUClocksPrim,
	"num_prim_pipes":     hwPrimPipes,
	"ts_freq":            hwTimestampFrequency,
}

// fixed width reductions: token -> operand count
var (
	maxTokens = map[string]uint32{"max16": 16, "max32": 32, "max44": 44, "max64": 64}
	sumTokens = map[string]uint32{
		"sum4": 4, "sum8": 8, "sum10": 10, "sum11": 11, "sum12": 12,
		"sum16": 16, "sum32": 32, "sum44": 44, "sum64": 64,
	}
)

type instruction struct {
	op opcode
	// arg is the sample index, hardware constant id or reduction width
	arg   uint32
	konst Value
	pos   int
}

// pops returns the number of operands consumed by the instruction
func (in instruction) pops() int {
	switch in.op {
	case opSample, opConst, opHardware:
		return 0
	case opMaxN, opSumN:
		return int(in.arg)
	case opIfNotZero:
		return 3
	default:
		return 2
	}
}

// Program is a compiled formula. It is immutable and safe for concurrent use.
type Program struct {
	formula    string
	tokens     []string
	resultType counter.DataType
	code       []instruction

	maxDepth   int
	maxSample  int
	usesHWInfo bool
}

// Formula returns the source text of the program
func (p *Program) Formula() string {
	return p.formula
}

// ResultType returns the declared result type the program was compiled for
func (p *Program) ResultType() counter.DataType {
	return p.resultType
}

// MinSamples returns the minimum length of the sample vector the program can be evaluated against
func (p *Program) MinSamples() int {
	return p.maxSample + 1
}

// Tokenize splits a formula on whitespace and commas
func Tokenize(formula string) []string {
	return strings.FieldsFunc(formula, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// Compile parses a formula for the given result type. Operand counts and
// the final stack depth are checked here, so a compiled Program can never
// underflow its stack.
func Compile(formula string, resultType counter.DataType) (*Program, error) {
	if !resultType.Valid() {
		return nil, fmt.Errorf("%w: result type %s", ErrUnsupportedType, resultType)
	}

	tokens := Tokenize(formula)
	p := &Program{
		formula:    formula,
		tokens:     tokens,
		resultType: resultType,
		code:       make([]instruction, 0, len(tokens)),
		maxSample:  -1,
	}

	depth := 0
	for pos, tok := range tokens {
		in, err := p.parseToken(tok, pos)
		if err != nil {
			return nil, p.errorAt(pos, err)
		}

		if n := in.pops(); depth < n {
			return nil, p.errorAt(pos, fmt.Errorf("%w: need %d, have %d", ErrStackUnderflow, n, depth))
		} else if n == 0 {
			depth++
		} else {
			depth -= n - 1
		}
		p.maxDepth = max(p.maxDepth, depth)
		p.code = append(p.code, in)
	}

	if depth != 1 {
		return nil, &FormulaError{
			Formula:  formula,
			Position: -1,
			Err:      fmt.Errorf("%w: %d values left", ErrStackDepth, depth),
		}
	}

	return p, nil
}

func (p *Program) parseToken(tok string, pos int) (instruction, error) {
	in := instruction{pos: pos}

	switch tok {
	case "+":
		in.op = opAdd
		return in, nil
	case "-":
		in.op = opSub
		return in, nil
	case "*":
		in.op = opMul
		return in, nil
	case "/":
		in.op = opDiv
		return in, nil
	}

	if tok[0] == '(' {
		v, err := parseConstant(tok, p.resultType)
		if err != nil {
			return in, err
		}
		in.op = opConst
		in.konst = v
		return in, nil
	}

	name := strings.ToLower(tok)
	if id, ok := hardwareTokens[name]; ok {
		in.op = opHardware
		in.arg = id
		p.usesHWInfo = true
		return in, nil
	}
	if n, ok := maxTokens[name]; ok {
		in.op = opMaxN
		in.arg = n
		return in, nil
	}
	if n, ok := sumTokens[name]; ok {
		in.op = opSumN
		in.arg = n
		return in, nil
	}

	switch name {
	case "max":
		in.op = opMax
		return in, nil
	case "min":
		in.op = opMin
		return in, nil
	case "ifnotzero":
		in.op = opIfNotZero
		return in, nil
	}

	// anything else must be a reference into the sample vector
	index, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return in, ErrUnknownToken
	}
	in.op = opSample
	in.arg = uint32(index)
	p.maxSample = max(p.maxSample, int(index))
	return in, nil
}

// parseConstant parses "(<number>)" in the literal format of the result type
func parseConstant(tok string, t counter.DataType) (Value, error) {
	if len(tok) < 3 || tok[len(tok)-1] != ')' {
		return Value{}, ErrInvalidConstant
	}
	lit := tok[1 : len(tok)-1]

	switch t {
	case counter.TypeFloat32:
		f, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidConstant, err)
		}
		return Float32(float32(f)), nil

	case counter.TypeFloat64:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidConstant, err)
		}
		return Float64(f), nil

	case counter.TypeUint32:
		u, err := strconv.ParseUint(lit, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidConstant, err)
		}
		return Uint32(uint32(u)), nil

	case counter.TypeUint64:
		u, err := strconv.ParseUint(lit, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidConstant, err)
		}
		return Uint64(u), nil

	default:
		// no formula uses signed integer literals
		return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedConstant, t)
	}
}

func (p *Program) errorAt(pos int, err error) *FormulaError {
	return &FormulaError{
		Formula:  p.formula,
		Token:    p.tokens[pos],
		Position: pos,
		Err:      err,
	}
}
