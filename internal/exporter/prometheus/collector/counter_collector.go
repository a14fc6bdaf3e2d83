// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sustainable-computing-io/gpucounters/internal/monitor"
)

type CounterDataProvider = monitor.CounterDataProvider

// CounterCollector exports every public counter of one monitor snapshot
type CounterCollector struct {
	provider CounterDataProvider
	logger   *slog.Logger

	mutex sync.RWMutex
	ready bool

	valueDesc     *prometheus.Desc
	errorDesc     *prometheus.Desc
	timestampDesc *prometheus.Desc
}

// NewCounterCollector creates a collector that exports the public counter
// values of the provider's latest snapshot
func NewCounterCollector(provider CounterDataProvider, logger *slog.Logger) *CounterCollector {
	c := &CounterCollector{
		provider: provider,
		logger:   logger.With("collector", "counter"),

		valueDesc: prometheus.NewDesc(
			prometheus.BuildFQName(gpuCountersNS, "", "public_counter"),
			"Value of a public GPU counter computed from raw hardware samples",
			[]string{"counter", "usage", "category", "type"}, nil),

		errorDesc: prometheus.NewDesc(
			prometheus.BuildFQName(gpuCountersNS, "", "formula_errors"),
			"1 if the formula of a public counter failed in the last computation, 0 otherwise",
			[]string{"counter"}, nil),

		timestampDesc: prometheus.NewDesc(
			prometheus.BuildFQName(gpuCountersNS, "", "snapshot_timestamp_seconds"),
			"Unix time at which the exported counters were computed",
			nil, nil),
	}

	go c.waitForData()

	return c
}

func (c *CounterCollector) waitForData() {
	<-c.provider.DataChannel()
	c.mutex.Lock()
	c.ready = true
	c.mutex.Unlock()
}

func (c *CounterCollector) isReady() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.ready
}

// Describe implements the prometheus.Collector interface
func (c *CounterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.valueDesc
	ch <- c.errorDesc
	ch <- c.timestampDesc
}

// Collect implements the prometheus.Collector interface
func (c *CounterCollector) Collect(ch chan<- prometheus.Metric) {
	if !c.isReady() {
		c.logger.Debug("Collect called before monitor is ready")
		return
	}

	started := time.Now()
	defer func() {
		c.logger.Debug("Collected public counters", "duration", time.Since(started))
	}()

	snapshot, err := c.provider.Snapshot()
	if err != nil {
		c.logger.Error("Failed to collect counter data", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.timestampDesc, prometheus.GaugeValue,
		float64(snapshot.Timestamp.UnixNano())/float64(time.Second))

	for _, r := range snapshot.Results {
		if r.Skipped {
			continue
		}

		failed := 0.0
		if r.Err != nil {
			failed = 1
		}
		ch <- prometheus.MustNewConstMetric(c.errorDesc, prometheus.GaugeValue, failed, r.Counter.Name)
		if r.Err != nil {
			continue
		}

		ch <- prometheus.MustNewConstMetric(
			c.valueDesc,
			prometheus.GaugeValue,
			r.Value.Float64(),
			r.Counter.Name,
			r.Counter.Usage.String(),
			r.Counter.Category.String(),
			r.Counter.Type.String(),
		)
	}
}
