// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sustainable-computing-io/gpucounters/internal/monitor"
	"github.com/sustainable-computing-io/gpucounters/internal/service"
)

// SnapshotProvider is the part of the counter monitor the probes depend on
type SnapshotProvider interface {
	Snapshot() (*monitor.Snapshot, error)
}

// Probe registers the liveness and readiness endpoints
type Probe struct {
	api      APIService
	provider SnapshotProvider
	logger   *slog.Logger
}

var _ service.Initializer = (*Probe)(nil)

// probeStatus is the JSON body returned by both endpoints
type probeStatus struct {
	Status    string     `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Computed  int        `json:"computed"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped"`
}

// NewProbe creates a probe service reporting on the monitor snapshots of provider
func NewProbe(api APIService, provider SnapshotProvider, logger *slog.Logger) *Probe {
	return &Probe{
		api:      api,
		provider: provider,
		logger:   logger.With("service", "probe"),
	}
}

func (p *Probe) Name() string {
	return "probe"
}

func (p *Probe) Init() error {
	return p.api.Register("/probe/", "probe", "Health check endpoints", p.handlers())
}

func (p *Probe) handlers() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/probe/livez", p.livez)
	mux.HandleFunc("/probe/readyz", p.readyz)
	return mux
}

// livez succeeds as long as the server answers
func (p *Probe) livez(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p.respond(w, http.StatusOK, probeStatus{Status: "alive"})
}

// readyz succeeds once the monitor can produce a snapshot
func (p *Probe) readyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := p.provider.Snapshot()
	if err != nil {
		p.logger.Debug("Readiness check failed", "error", err)
		p.respond(w, http.StatusServiceUnavailable, probeStatus{Status: "not ready", Reason: err.Error()})
		return
	}

	computed, failed, skipped := snapshot.Stats()
	ts := snapshot.Timestamp.UTC()
	p.respond(w, http.StatusOK, probeStatus{
		Status:    "ok",
		Timestamp: &ts,
		Computed:  computed,
		Failed:    failed,
		Skipped:   skipped,
	})
}

func (p *Probe) respond(w http.ResponseWriter, code int, status probeStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		p.logger.Error("failed to encode probe response", "error", err)
	}
}
