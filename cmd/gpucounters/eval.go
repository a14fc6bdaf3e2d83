// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sustainable-computing-io/gpucounters/config"
	"github.com/sustainable-computing-io/gpucounters/internal/counter"
	"github.com/sustainable-computing-io/gpucounters/internal/formula"
)

func eval(out io.Writer, cfg *config.Config, expr, resultType string, rawSamples []string) error {
	t, err := counter.ParseDataType(resultType)
	if err != nil {
		return err
	}

	samples, err := parseSamples(rawSamples)
	if err != nil {
		return err
	}

	v, err := formula.Evaluate(expr, t, samples, &cfg.Hardware)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "%s (%s)\n", v, v.Type())
	return err
}

// parseSamples reads type:value pairs such as "uint64:1024"
func parseSamples(raw []string) (formula.Samples, error) {
	samples := make(formula.Samples, 0, len(raw))
	var errs error
	for i, r := range raw {
		typ, value, ok := strings.Cut(r, ":")
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("sample %d: %q is not type:value", i, r))
			continue
		}

		t, err := counter.ParseDataType(strings.TrimSpace(typ))
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("sample %d: %w", i, err))
			continue
		}

		v, err := formula.ParseValue(t, strings.TrimSpace(value))
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("sample %d: %w", i, err))
			continue
		}
		samples = append(samples, v)
	}
	if errs != nil {
		return nil, errs
	}
	return samples, nil
}
