// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package stdout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/sustainable-computing-io/gpucounters/internal/monitor"
	"github.com/sustainable-computing-io/gpucounters/internal/service"
)

type (
	Initializer = service.Initializer
	Runner      = service.Runner
	Shutdowner  = service.Shutdowner
	Monitor     = monitor.Service
)

// Exporter prints the computed public counters to stdout
type Exporter struct {
	logger   *slog.Logger
	monitor  Monitor
	out      io.WriteCloser
	ticker   *time.Ticker
	interval time.Duration
}

var (
	_ Initializer = (*Exporter)(nil)
	_ Runner      = (*Exporter)(nil)
	_ Shutdowner  = (*Exporter)(nil)
)

type Opts struct {
	logger   *slog.Logger
	out      io.WriteCloser
	interval time.Duration
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:   slog.Default(),
		out:      os.Stdout,
		interval: 2 * time.Second,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the stdout exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

func WithOutput(out io.WriteCloser) OptionFn {
	return func(o *Opts) {
		o.out = out
	}
}

func WithInterval(interval time.Duration) OptionFn {
	return func(o *Opts) {
		o.interval = interval
	}
}

func NewExporter(m Monitor, applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		logger:   opts.logger.With("service", "stdout"),
		monitor:  m,
		out:      opts.out,
		interval: opts.interval,
	}
}

func (e *Exporter) Init() error {
	if e.interval <= 0 {
		return fmt.Errorf("invalid stdout interval: %s", e.interval)
	}
	e.ticker = time.NewTicker(e.interval)
	return nil
}

func (e *Exporter) Run(ctx context.Context) error {
	defer e.ticker.Stop()
	for {
		select {
		case <-e.ticker.C:
			snapshot, err := e.monitor.Snapshot()
			if err != nil {
				e.logger.Error("Failed to get counter snapshot", "error", err)
				continue
			}
			Write(e.out, snapshot)

		case <-ctx.Done():
			e.logger.Info("Exiting ticker")
			return nil
		}
	}
}

// Write renders the snapshot as a table, one row per public counter
func Write(out io.Writer, snapshot *monitor.Snapshot) {
	rows := make([][]string, 0, len(snapshot.Results))
	for _, r := range snapshot.Results {
		value, status := r.Value.String(), "ok"
		switch {
		case r.Skipped:
			value, status = "-", "skipped"
		case r.Err != nil:
			value, status = "-", "error"
		}
		rows = append(rows, []string{
			r.Counter.Name,
			value,
			r.Counter.Usage.String(),
			r.Counter.Type.String(),
			status,
		})
	}

	table := tablewriter.NewWriter(out)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Formatting.Alignment = tw.AlignRight
	})
	table.Header([]string{"Counter", "Value", "Usage", "Type", "Status"})
	_ = table.Bulk(rows)
	_ = table.Render()
}

func (e *Exporter) Shutdown() error {
	return e.out.Close()
}

// Name implements service.Name
func (e *Exporter) Name() string {
	return "stdout"
}
