// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package formula

import (
	"errors"
	"fmt"
)

// Causes of a FormulaError
var (
	ErrStackUnderflow      = errors.New("not enough operands")
	ErrStackDepth          = errors.New("formula must leave exactly one value on the stack")
	ErrInvalidConstant     = errors.New("invalid constant")
	ErrUnsupportedConstant = errors.New("constants are not supported for this result type")
	ErrUnknownToken        = errors.New("unknown token")
	ErrSampleIndex         = errors.New("sample index out of range")
	ErrNoHardwareInfo      = errors.New("formula references hardware constants but no hardware info was given")
)

// ErrUnsupportedType is returned for result and sample storage type
// combinations the evaluator does not implement. It is a configuration
// error rather than a malformed formula.
var ErrUnsupportedType = errors.New("unsupported type combination")

// FormulaError reports a malformed formula
type FormulaError struct {
	Formula string
	// Token is the offending token; empty when the error concerns the whole formula
	Token string
	// Position is the 0-based index of Token in the formula, -1 when Token is empty
	Position int
	Err      error
}

func (e *FormulaError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("invalid formula %q: %v", e.Formula, e.Err)
	}
	return fmt.Sprintf("invalid formula %q: token %d (%q): %v", e.Formula, e.Position, e.Token, e.Err)
}

func (e *FormulaError) Unwrap() error {
	return e.Err
}

// IsFormulaError reports whether err is, or wraps, a FormulaError
func IsFormulaError(err error) bool {
	var fe *FormulaError
	return errors.As(err, &fe)
}
