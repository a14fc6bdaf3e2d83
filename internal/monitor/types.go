// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"slices"
	"strings"
	"time"

	"github.com/sustainable-computing-io/gpucounters/internal/compute"
)

type Result = compute.Result

// Snapshot holds the public counter values computed from one set of samples
type Snapshot struct {
	Timestamp time.Time
	// Results has one entry per public counter, in catalog order
	Results []Result
}

func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Clone returns a copy of the snapshot that can be used independently
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		Timestamp: s.Timestamp,
		Results:   slices.Clone(s.Results),
	}
}

// Lookup returns the result of the named counter (case-insensitive)
func (s *Snapshot) Lookup(name string) (Result, bool) {
	for _, r := range s.Results {
		if strings.EqualFold(r.Counter.Name, name) {
			return r, true
		}
	}
	return Result{}, false
}

// Stats counts the computed, failed and skipped results
func (s *Snapshot) Stats() (computed, failed, skipped int) {
	for _, r := range s.Results {
		switch {
		case r.Skipped:
			skipped++
		case r.Err != nil:
			failed++
		default:
			computed++
		}
	}
	return computed, failed, skipped
}
