// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package counter

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog bundles the hardware and public counters of one GPU family
type Catalog struct {
	Hardware *HardwareCounters
	Public   *PublicCounters
}

// NewCatalog returns an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		Hardware: NewHardwareCounters(),
		Public:   NewPublicCounters(),
	}
}

// Clear empties both catalogs
func (c *Catalog) Clear() {
	c.Hardware.Clear()
	c.Public.Clear()
}

type (
	groupSpec struct {
		Name      string `yaml:"name"`
		MaxActive int    `yaml:"maxActive"`
	}

	hardwareSpec struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Group       string   `yaml:"group"`
		Type        DataType `yaml:"type"`
		GroupID     uint32   `yaml:"groupId"`
		CounterID   uint32   `yaml:"counterId"`
	}

	timestampSpec struct {
		GPUTimestampGroup      string `yaml:"gpuTimestampGroup"`
		GPUTimeGroup           string `yaml:"gpuTimeGroup"`
		GPUTimestampPreBottom  string `yaml:"gpuTimestampPreBottom"`
		GPUTimestampPostBottom string `yaml:"gpuTimestampPostBottom"`
		GPUTimestampTop        string `yaml:"gpuTimestampTop"`
		GPUTimeBottomToBottom  string `yaml:"gpuTimeBottomToBottom"`
		GPUTimeTopToBottom     string `yaml:"gpuTimeTopToBottom"`
	}

	publicSpec struct {
		Name        string      `yaml:"name"`
		Description string      `yaml:"description"`
		Type        DataType    `yaml:"type"`
		Usage       UsageType   `yaml:"usage"`
		Category    CounterType `yaml:"category"`
		Requires    []string    `yaml:"requires"`
		Formula     string      `yaml:"formula"`
	}

	catalogSpec struct {
		Groups     []groupSpec    `yaml:"groups"`
		Hardware   []hardwareSpec `yaml:"hardware"`
		Timestamps timestampSpec  `yaml:"timestamps"`
		Public     []publicSpec   `yaml:"public"`
	}
)

// LoadCatalog populates a catalog from a YAML document.
//
// Problems with groups, hardware counters or timestamp references are fatal
// and return a nil catalog. A public counter that fails registration is
// skipped; all such failures are joined into the returned error while the
// catalog holding the remaining counters is still returned.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var spec catalogSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	cat := NewCatalog()
	if err := cat.loadHardware(spec); err != nil {
		return nil, err
	}
	cat.Hardware.SetGenerated()

	var errs error
	for _, ps := range spec.Public {
		if err := cat.definePublic(ps); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	cat.Public.SetGenerated()

	return cat, errs
}

// CatalogFromFile loads a catalog from a YAML file
func CatalogFromFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()

	return LoadCatalog(f)
}

func (c *Catalog) loadHardware(spec catalogSpec) error {
	for _, g := range spec.Groups {
		if _, err := c.Hardware.AddGroup(Group{Name: g.Name, MaxActive: g.MaxActive}); err != nil {
			return err
		}
	}

	for _, hs := range spec.Hardware {
		group := c.Hardware.GroupIndex(hs.Group)
		if group == Unset {
			return fmt.Errorf("hardware counter %q: unknown group %q", hs.Name, hs.Group)
		}
		_, err := c.Hardware.Add(HardwareCounter{
			Name:            hs.Name,
			Description:     hs.Description,
			Type:            hs.Type,
			GroupIndex:      group,
			GroupIDDriver:   hs.GroupID,
			CounterIDDriver: hs.CounterID,
		})
		if err != nil {
			return err
		}
	}

	ts := spec.Timestamps
	var err error
	idx := &c.Hardware.Timestamps
	if idx.GPUTimestampGroup, err = c.resolve(ts.GPUTimestampGroup, c.Hardware.GroupIndex); err != nil {
		return err
	}
	if idx.GPUTimeGroup, err = c.resolve(ts.GPUTimeGroup, c.Hardware.GroupIndex); err != nil {
		return err
	}
	counters := []struct {
		name   string
		target *int
	}{
		{ts.GPUTimestampPreBottom, &idx.GPUTimestampPreBottom},
		{ts.GPUTimestampPostBottom, &idx.GPUTimestampPostBottom},
		{ts.GPUTimestampTop, &idx.GPUTimestampTop},
		{ts.GPUTimeBottomToBottom, &idx.GPUTimeBottomToBottom},
		{ts.GPUTimeTopToBottom, &idx.GPUTimeTopToBottom},
	}
	for _, tc := range counters {
		if *tc.target, err = c.resolve(tc.name, c.Hardware.IndexOf); err != nil {
			return err
		}
	}
	return nil
}

// resolve maps an optional name to an index; an empty name stays Unset
func (c *Catalog) resolve(name string, lookup func(string) int) (int, error) {
	if name == "" {
		return Unset, nil
	}
	if i := lookup(name); i != Unset {
		return i, nil
	}
	return Unset, fmt.Errorf("timestamp reference to unknown %q", name)
}

func (c *Catalog) definePublic(ps publicSpec) error {
	required := make([]uint32, 0, len(ps.Requires))
	for _, name := range ps.Requires {
		i := c.Hardware.IndexOf(name)
		if i == Unset {
			return fmt.Errorf("public counter %q: unknown hardware counter %q", ps.Name, name)
		}
		required = append(required, uint32(i))
	}

	_, err := c.Public.Define(Definition{
		Name:        ps.Name,
		Description: ps.Description,
		Type:        ps.Type,
		Usage:       ps.Usage,
		Category:    ps.Category,
		Required:    required,
		Formula:     ps.Formula,
	})
	return err
}
