// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sustainable-computing-io/gpucounters/internal/compute"
	"github.com/sustainable-computing-io/gpucounters/internal/counter"
	"github.com/sustainable-computing-io/gpucounters/internal/sample"
	"github.com/sustainable-computing-io/gpucounters/internal/service"
	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"
)

type CounterDataProvider interface {
	// Snapshot returns the latest computed counter values
	Snapshot() (*Snapshot, error)

	// DataChannel returns a channel that signals when new data is available
	DataChannel() <-chan struct{}

	// Counters returns the public counters present in every snapshot
	Counters() []counter.PublicCounter
}

// Service defines the interface for the counter monitoring service
type Service interface {
	service.Service
	CounterDataProvider
}

// Calculator computes public counters from raw samples
type Calculator interface {
	Counters() []counter.PublicCounter
	ComputeAll(src compute.Source) []compute.Result
}

// CounterMonitor periodically reads raw samples and computes all public counters
type CounterMonitor struct {
	logger *slog.Logger
	calc   Calculator
	reader sample.Reader

	interval     time.Duration
	clock        clock.WithTicker
	maxStaleness time.Duration

	// signals when a snapshot has been updated
	dataCh chan struct{}

	computeGroup singleflight.Group
	snapshot     atomic.Pointer[Snapshot]

	counters []counter.PublicCounter

	collectionCtx    context.Context
	collectionCancel context.CancelFunc
}

var _ Service = (*CounterMonitor)(nil)

// NewCounterMonitor creates a new CounterMonitor instance
func NewCounterMonitor(calc Calculator, reader sample.Reader, applyOpts ...OptionFn) *CounterMonitor {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &CounterMonitor{
		logger:           opts.logger.With("service", "monitor"),
		calc:             calc,
		reader:           reader,
		clock:            opts.clock,
		interval:         opts.interval,
		maxStaleness:     opts.maxStaleness,
		dataCh:           make(chan struct{}, 1),
		collectionCtx:    ctx,
		collectionCancel: cancel,
	}
}

func (cm *CounterMonitor) Name() string {
	return "monitor"
}

func (cm *CounterMonitor) Init() error {
	cm.counters = cm.calc.Counters()
	if len(cm.counters) == 0 {
		return fmt.Errorf("no public counters to monitor")
	}
	cm.logger.Info("Monitoring counters", "counters", len(cm.counters), "reader", cm.reader.Name())

	// signal now so that exporters can construct descriptors
	cm.signalNewData()
	return nil
}

func (cm *CounterMonitor) signalNewData() {
	select {
	case cm.dataCh <- struct{}{}:
		cm.logger.Debug("Data channel updated")
	default:
		cm.logger.Debug("Data channel is full")
	}
}

func (cm *CounterMonitor) Run(ctx context.Context) error {
	cm.logger.Info("Monitor is running...")
	cm.collectionLoop()
	<-ctx.Done()
	cm.collectionCancel()
	cm.logger.Info("Monitor has terminated.")
	return nil
}

func (cm *CounterMonitor) Shutdown() error {
	cm.logger.Info("shutting down monitor")
	cm.collectionCancel()
	return nil
}

func (cm *CounterMonitor) DataChannel() <-chan struct{} {
	return cm.dataCh
}

func (cm *CounterMonitor) Counters() []counter.PublicCounter {
	// read-only after Init
	return cm.counters
}

func (cm *CounterMonitor) Snapshot() (*Snapshot, error) {
	if err := cm.ensureFreshData(); err != nil {
		return nil, err
	}

	snapshot := cm.snapshot.Load()
	if snapshot == nil {
		return nil, fmt.Errorf("failed to get snapshot")
	}
	return snapshot.Clone(), nil
}

func (cm *CounterMonitor) collectionLoop() {
	if err := cm.synchronizedRefresh(); err != nil {
		cm.logger.Error("Failed to compute initial counters", "error", err)
	}

	if cm.interval > 0 {
		cm.scheduleNextCollection()
	}
}

func (cm *CounterMonitor) scheduleNextCollection() {
	timer := cm.clock.After(cm.interval)
	go func() {
		select {
		case <-timer:
			if err := cm.synchronizedRefresh(); err != nil {
				cm.logger.Error("Failed to compute counters", "error", err)
			}
			cm.scheduleNextCollection()

		case <-cm.collectionCtx.Done():
			cm.logger.Info("Collection loop terminated")
			return
		}
	}()
}

// ensureFreshData refreshes the snapshot if it is older than maxStaleness
func (cm *CounterMonitor) ensureFreshData() error {
	if cm.isFresh() {
		return nil
	}
	return cm.synchronizedRefresh()
}

// synchronizedRefresh computes a new snapshot with at most one goroutine
// doing so at a time. Callers that lost the race see the fresh snapshot.
func (cm *CounterMonitor) synchronizedRefresh() error {
	_, err, _ := cm.computeGroup.Do("compute", func() (any, error) {
		// freshness is checked again since another caller may have refreshed
		// while this one was waiting
		if cm.isFresh() {
			return nil, nil
		}
		return nil, cm.refreshSnapshot()
	})
	return err
}

func (cm *CounterMonitor) isFresh() bool {
	snapshot := cm.snapshot.Load()
	if snapshot == nil || snapshot.Timestamp.IsZero() {
		return false
	}

	age := cm.clock.Now().Sub(snapshot.Timestamp)
	return age <= cm.maxStaleness
}

func (cm *CounterMonitor) refreshSnapshot() error {
	started := cm.clock.Now()

	samples, err := cm.reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read samples: %w", err)
	}

	snapshot := NewSnapshot()
	snapshot.Results = cm.calc.ComputeAll(samples)
	snapshot.Timestamp = cm.clock.Now()

	cm.snapshot.Store(snapshot)
	cm.signalNewData()

	computed, failed, skipped := snapshot.Stats()
	cm.logger.Debug("refreshSnapshot",
		"samples", len(samples),
		"computed", computed,
		"failed", failed,
		"skipped", skipped,
		"duration", cm.clock.Since(started),
	)
	return nil
}
