// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package compute

import "log/slog"

type Opts struct {
	logger *slog.Logger
}

// DefaultOpts returns the default Calculator options
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Calculator
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}
