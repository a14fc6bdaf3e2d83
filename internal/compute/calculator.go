// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package compute

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sustainable-computing-io/gpucounters/internal/counter"
	"github.com/sustainable-computing-io/gpucounters/internal/formula"
	"github.com/sustainable-computing-io/gpucounters/internal/hwinfo"
)

// ErrSampleMismatch is returned when the samples passed for a counter do not
// line up with its required hardware counters
var ErrSampleMismatch = errors.New("samples do not match required hardware counters")

// Source provides raw samples keyed by hardware counter index
type Source interface {
	Sample(hwIndex int) (formula.Value, bool)
}

// Result is the outcome of computing one public counter
type Result struct {
	Counter counter.PublicCounter
	Value   formula.Value
	Err     error
	// Skipped is set when a required sample was missing from the source
	Skipped bool
}

// Calculator evaluates the public counters of a catalog. Formulas are
// compiled once, on Init or first use; afterwards the Calculator is read-only
// and safe for concurrent use.
type Calculator struct {
	logger  *slog.Logger
	catalog *counter.Catalog
	hw      hwinfo.Info

	once    sync.Once
	initErr error

	counters []counter.PublicCounter
	programs []*formula.Program
	// compileErrs holds the compile error of each counter, nil if it compiled
	compileErrs []error
}

// New creates a Calculator for catalog. hw may be nil when no formula
// references hardware constants.
func New(catalog *counter.Catalog, hw hwinfo.Info, applyOpts ...OptionFn) *Calculator {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Calculator{
		logger:  opts.logger.With("service", "compute"),
		catalog: catalog,
		hw:      hw,
	}
}

func (c *Calculator) Name() string {
	return "compute"
}

// Init compiles every formula of the catalog. A malformed formula only
// disables its own counter; a result or storage type the evaluator does not
// support is a configuration error and fails Init.
func (c *Calculator) Init() error {
	c.once.Do(func() {
		c.initErr = c.compile()
	})
	return c.initErr
}

func (c *Calculator) compile() error {
	if c.catalog == nil {
		return fmt.Errorf("no counter catalog")
	}

	c.counters = c.catalog.Public.All()
	c.programs = make([]*formula.Program, len(c.counters))
	c.compileErrs = make([]error, len(c.counters))

	var configErrs error
	for i, pc := range c.counters {
		if err := c.checkTypes(pc); err != nil {
			configErrs = errors.Join(configErrs, err)
			continue
		}

		p, err := formula.Compile(pc.Formula, pc.Type)
		if err != nil {
			c.logger.Warn("Failed to compile formula",
				"counter", pc.Name, "formula", pc.Formula, "error", err)
			c.compileErrs[i] = err
			continue
		}
		if p.MinSamples() > len(pc.Required) {
			err := &formula.FormulaError{
				Formula:  pc.Formula,
				Position: -1,
				Err: fmt.Errorf("%w: uses %d samples, counter requires %d",
					formula.ErrSampleIndex, p.MinSamples(), len(pc.Required)),
			}
			c.logger.Warn("Formula references more samples than required",
				"counter", pc.Name, "formula", pc.Formula, "error", err)
			c.compileErrs[i] = err
			continue
		}
		c.programs[i] = p
	}

	if configErrs != nil {
		return configErrs
	}

	c.logger.Info("Compiled counter formulas",
		"counters", len(c.counters), "failed", c.failedCount())
	return nil
}

// checkTypes rejects counters whose result type and required hardware
// storage types form a combination the evaluator does not implement
func (c *Calculator) checkTypes(pc counter.PublicCounter) error {
	var errs error
	for _, r := range pc.Required {
		hw, err := c.catalog.Hardware.Counter(int(r))
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("counter %q: required hardware counter: %w", pc.Name, err))
			continue
		}
		if !formula.Supported(pc.Type, hw.Type) {
			errs = errors.Join(errs, fmt.Errorf("counter %q: %w: result %s over %s stored as %s",
				pc.Name, formula.ErrUnsupportedType, pc.Type, hw.Name, hw.Type))
		}
	}
	return errs
}

func (c *Calculator) failedCount() int {
	n := 0
	for _, err := range c.compileErrs {
		if err != nil {
			n++
		}
	}
	return n
}

// Counters returns the public counters the Calculator evaluates
func (c *Calculator) Counters() []counter.PublicCounter {
	if err := c.Init(); err != nil {
		return nil
	}
	return c.counters
}

// Err returns the compile error of the counter at index, nil if its formula
// compiled
func (c *Calculator) Err(index int) error {
	if err := c.Init(); err != nil {
		return err
	}
	if index < 0 || index >= len(c.counters) {
		return counter.ErrCounterNotFound{Index: index}
	}
	return c.compileErrs[index]
}

// ComputeCounterValue evaluates the counter at index. samples must be
// parallel to the counter's Required list, each tagged with the storage type
// of its hardware counter.
func (c *Calculator) ComputeCounterValue(index int, samples formula.Samples) (formula.Value, error) {
	if err := c.Init(); err != nil {
		return formula.Value{}, err
	}
	if index < 0 || index >= len(c.counters) {
		return formula.Value{}, counter.ErrCounterNotFound{Index: index}
	}

	pc := c.counters[index]
	if err := c.compileErrs[index]; err != nil {
		return formula.Value{}, err
	}
	if err := c.checkSamples(pc, samples); err != nil {
		return formula.Value{}, err
	}

	v, err := c.programs[index].Evaluate(samples, c.hw)
	if err != nil {
		c.logger.Warn("Failed to evaluate formula",
			"counter", pc.Name, "formula", pc.Formula, "error", err)
		return formula.Value{}, err
	}
	return v, nil
}

func (c *Calculator) checkSamples(pc counter.PublicCounter, samples formula.Samples) error {
	if len(samples) != len(pc.Required) {
		return fmt.Errorf("counter %q: %w: got %d samples, want %d",
			pc.Name, ErrSampleMismatch, len(samples), len(pc.Required))
	}
	for i, r := range pc.Required {
		hw, err := c.catalog.Hardware.Counter(int(r))
		if err != nil {
			return err
		}
		if samples[i].Type() != hw.Type {
			return fmt.Errorf("counter %q: %w: sample %d (%s) is %s, want %s",
				pc.Name, ErrSampleMismatch, i, hw.Name, samples[i].Type(), hw.Type)
		}
	}
	return nil
}

// ComputeAll evaluates every public counter whose required samples are all
// present in src. Errors are reported per counter and never stop the others.
func (c *Calculator) ComputeAll(src Source) []Result {
	if err := c.Init(); err != nil {
		return nil
	}

	results := make([]Result, len(c.counters))
	for i, pc := range c.counters {
		results[i].Counter = pc

		samples, ok := gather(src, pc.Required)
		if !ok {
			results[i].Skipped = true
			continue
		}
		results[i].Value, results[i].Err = c.ComputeCounterValue(i, samples)
	}
	return results
}

func gather(src Source, required []uint32) (formula.Samples, bool) {
	samples := make(formula.Samples, len(required))
	for i, r := range required {
		v, ok := src.Sample(int(r))
		if !ok {
			return nil, false
		}
		samples[i] = v
	}
	return samples, true
}
