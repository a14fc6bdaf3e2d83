// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package counter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidDefinition is returned when a public counter definition does not
// satisfy the registration preconditions. The catalog is left unchanged.
var ErrInvalidDefinition = errors.New("invalid public counter definition")

// ErrCounterNotFound is returned when a counter index is out of range
type ErrCounterNotFound struct {
	Index int
}

func (e ErrCounterNotFound) Error() string {
	return fmt.Sprintf("counter not found: index %d", e.Index)
}

// PublicCounter is a derived counter computed from one or more hardware
// counters. It is immutable once registered.
type PublicCounter struct {
	// Index is the position of the counter in its catalog (0-based, dense)
	Index int

	Name        string
	Description string

	// Type is the declared result type of the formula
	Type     DataType
	Usage    UsageType
	Category CounterType

	// Required lists the hardware counter indices the formula consumes.
	// Plain integer tokens in Formula index into this list, not into the
	// hardware catalog.
	Required []uint32

	// Formula is the postfix expression evaluated over the required samples
	Formula string
}

// Definition holds the inputs of PublicCounters.Define
type Definition struct {
	Name        string
	Description string
	Type        DataType
	Usage       UsageType
	Category    CounterType
	Required    []uint32
	Formula     string
}

func (d Definition) validate() error {
	var errs []string
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, "name is empty")
	}
	if strings.TrimSpace(d.Description) == "" {
		errs = append(errs, "description is empty")
	}
	if !d.Type.Valid() {
		errs = append(errs, fmt.Sprintf("invalid result type: %s", d.Type))
	}
	if !d.Usage.Valid() {
		errs = append(errs, fmt.Sprintf("invalid usage type: %s", d.Usage))
	}
	if !d.Category.Valid() {
		errs = append(errs, fmt.Sprintf("invalid counter type: %s", d.Category))
	}
	if len(d.Required) == 0 {
		errs = append(errs, "no required hardware counters")
	}
	if strings.TrimSpace(d.Formula) == "" {
		errs = append(errs, "formula is empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidDefinition, d.Name, strings.Join(errs, ", "))
	}
	return nil
}

// PublicCounters is an append-only catalog of public counters. It is
// populated once and read-only afterwards; readers need no locking as long as
// no Define or Clear runs concurrently.
type PublicCounters struct {
	counters  []PublicCounter
	generated bool
}

// NewPublicCounters returns an empty catalog
func NewPublicCounters() *PublicCounters {
	return &PublicCounters{}
}

// Define appends a new counter at the next index and returns that index.
// Formulas are not parsed here; malformed formulas surface at evaluation.
func (p *PublicCounters) Define(d Definition) (int, error) {
	if err := d.validate(); err != nil {
		return -1, err
	}

	index := len(p.counters)
	p.counters = append(p.counters, PublicCounter{
		Index:       index,
		Name:        d.Name,
		Description: d.Description,
		Type:        d.Type,
		Usage:       d.Usage,
		Category:    d.Category,
		Required:    slices.Clone(d.Required),
		Formula:     d.Formula,
	})
	return index, nil
}

// Count returns the number of defined counters
func (p *PublicCounters) Count() int {
	return len(p.counters)
}

// Counter returns the counter at index
func (p *PublicCounters) Counter(index int) (PublicCounter, error) {
	if index < 0 || index >= len(p.counters) {
		return PublicCounter{}, ErrCounterNotFound{Index: index}
	}
	return p.counters[index], nil
}

// IndexOf returns the index of the counter with the given name or -1.
// Names are matched case-insensitively.
func (p *PublicCounters) IndexOf(name string) int {
	for i := range p.counters {
		if strings.EqualFold(p.counters[i].Name, name) {
			return i
		}
	}
	return -1
}

// All returns a copy of all counters in index order
func (p *PublicCounters) All() []PublicCounter {
	return slices.Clone(p.counters)
}

// SetGenerated marks the catalog as fully populated
func (p *PublicCounters) SetGenerated() {
	p.generated = true
}

// Generated reports whether population has completed
func (p *PublicCounters) Generated() bool {
	return p.generated
}

// Clear discards all counters and resets the generated flag
func (p *PublicCounters) Clear() {
	p.counters = nil
	p.generated = false
}
