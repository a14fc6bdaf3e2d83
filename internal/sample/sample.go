// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package sample reads raw hardware counter samples and tags them with the
// storage type declared in the hardware counter catalog.
package sample

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sustainable-computing-io/gpucounters/internal/counter"
	"github.com/sustainable-computing-io/gpucounters/internal/formula"
	"gopkg.in/yaml.v3"
)

// Reader provides one set of raw samples per call
type Reader interface {
	Name() string
	Read() (Set, error)
}

// Set maps hardware counter indices to their sampled values
type Set map[int]formula.Value

// Sample implements compute.Source
func (s Set) Sample(hwIndex int) (formula.Value, bool) {
	v, ok := s[hwIndex]
	return v, ok
}

type (
	entry struct {
		Counter string `yaml:"counter"`
		Value   string `yaml:"value"`
	}

	document struct {
		Samples []entry `yaml:"samples"`
	}
)

// Decode parses a YAML sample document of the form
//
//	samples:
//	  - counter: GRBM_COUNT
//	    value: 1000
//
// resolving counter names through hw. Values are parsed in the storage type
// of their hardware counter.
func Decode(r io.Reader, hw *counter.HardwareCounters) (Set, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse samples: %w", err)
	}

	set := make(Set, len(doc.Samples))
	var errs []string
	for _, e := range doc.Samples {
		idx := hw.IndexOf(e.Counter)
		if idx == counter.Unset {
			errs = append(errs, fmt.Sprintf("unknown hardware counter %q", e.Counter))
			continue
		}
		if _, dup := set[idx]; dup {
			errs = append(errs, fmt.Sprintf("duplicate sample for %q", e.Counter))
			continue
		}

		c, _ := hw.Counter(idx)
		v, err := formula.ParseValue(c.Type, strings.TrimSpace(e.Value))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", e.Counter, err))
			continue
		}
		set[idx] = v
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid samples: %s", strings.Join(errs, ", "))
	}
	return set, nil
}

// FileReader reads a sample document from a file on every Read, so that an
// external sampler can keep rewriting it
type FileReader struct {
	path string
	hw   *counter.HardwareCounters
}

var _ Reader = (*FileReader)(nil)

func NewFileReader(path string, hw *counter.HardwareCounters) *FileReader {
	return &FileReader{path: path, hw: hw}
}

func (f *FileReader) Name() string {
	return "file"
}

func (f *FileReader) Read() (Set, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open samples file: %w", err)
	}
	defer func() {
		// ignored on purpose
		_ = file.Close()
	}()

	return Decode(file, f.hw)
}
