// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package counter

import (
	"fmt"
	"slices"
	"strings"
)

// Unset marks a well-known counter or group index that does not exist
const Unset = -1

// Group is a block of hardware counters exposed by the driver
type Group struct {
	Name string
	// MaxActive is the number of counters of the group that can be sampled at once
	MaxActive int
}

// HardwareCounter describes a raw counter as exposed by the driver
type HardwareCounter struct {
	Name        string
	Description string
	Type        DataType

	// GroupIndex is the index of the containing group in the catalog
	GroupIndex int
	// GroupIDDriver is the group id according to the driver
	GroupIDDriver uint32
	// CounterIDDriver is the counter id according to the driver
	CounterIDDriver uint32
}

// TimestampIndices holds the indices of the well-known timing groups and
// counters. Each is Unset until assigned.
type TimestampIndices struct {
	GPUTimestampGroup int
	GPUTimeGroup      int

	GPUTimestampPreBottom  int
	GPUTimestampPostBottom int
	GPUTimestampTop        int
	GPUTimeBottomToBottom  int
	GPUTimeTopToBottom     int
}

func unsetTimestampIndices() TimestampIndices {
	return TimestampIndices{
		GPUTimestampGroup:      Unset,
		GPUTimeGroup:           Unset,
		GPUTimestampPreBottom:  Unset,
		GPUTimestampPostBottom: Unset,
		GPUTimestampTop:        Unset,
		GPUTimeBottomToBottom:  Unset,
		GPUTimeTopToBottom:     Unset,
	}
}

// HardwareCounters is the catalog of raw counters of one GPU family
type HardwareCounters struct {
	groups    []Group
	counters  []HardwareCounter
	byName    map[string]int
	generated bool

	Timestamps TimestampIndices
}

// NewHardwareCounters returns an empty catalog
func NewHardwareCounters() *HardwareCounters {
	h := &HardwareCounters{}
	h.Clear()
	return h
}

// AddGroup appends a counter group and returns its index
func (h *HardwareCounters) AddGroup(g Group) (int, error) {
	if strings.TrimSpace(g.Name) == "" {
		return Unset, fmt.Errorf("hardware counter group name is empty")
	}
	if h.GroupIndex(g.Name) != Unset {
		return Unset, fmt.Errorf("duplicate hardware counter group: %q", g.Name)
	}
	h.groups = append(h.groups, g)
	return len(h.groups) - 1, nil
}

// GroupIndex returns the index of the named group or Unset
func (h *HardwareCounters) GroupIndex(name string) int {
	for i := range h.groups {
		if strings.EqualFold(h.groups[i].Name, name) {
			return i
		}
	}
	return Unset
}

// Groups returns a copy of the group list
func (h *HardwareCounters) Groups() []Group {
	return slices.Clone(h.groups)
}

// Add appends a hardware counter and returns its index
func (h *HardwareCounters) Add(c HardwareCounter) (int, error) {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return Unset, fmt.Errorf("hardware counter name is empty")
	case !c.Type.Valid():
		return Unset, fmt.Errorf("hardware counter %q: invalid type %s", c.Name, c.Type)
	case c.GroupIndex < 0 || c.GroupIndex >= len(h.groups):
		return Unset, fmt.Errorf("hardware counter %q: group index %d out of range", c.Name, c.GroupIndex)
	}

	key := strings.ToLower(c.Name)
	if _, exists := h.byName[key]; exists {
		return Unset, fmt.Errorf("duplicate hardware counter: %q", c.Name)
	}

	index := len(h.counters)
	h.counters = append(h.counters, c)
	h.byName[key] = index
	return index, nil
}

// Count returns the number of hardware counters
func (h *HardwareCounters) Count() int {
	return len(h.counters)
}

// Counter returns the hardware counter at index
func (h *HardwareCounters) Counter(index int) (HardwareCounter, error) {
	if index < 0 || index >= len(h.counters) {
		return HardwareCounter{}, ErrCounterNotFound{Index: index}
	}
	return h.counters[index], nil
}

// Name returns the name of the counter at index or "" if out of range
func (h *HardwareCounters) Name(index int) string {
	c, err := h.Counter(index)
	if err != nil {
		return ""
	}
	return c.Name
}

// Description returns the description of the counter at index or "" if out of range
func (h *HardwareCounters) Description(index int) string {
	c, err := h.Counter(index)
	if err != nil {
		return ""
	}
	return c.Description
}

// IndexOf returns the index of the named counter (case-insensitive) or Unset
func (h *HardwareCounters) IndexOf(name string) int {
	if i, ok := h.byName[strings.ToLower(name)]; ok {
		return i
	}
	return Unset
}

func (h *HardwareCounters) SetGenerated() {
	h.generated = true
}

func (h *HardwareCounters) Generated() bool {
	return h.generated
}

// Clear removes all groups and counters and resets the well-known indices
func (h *HardwareCounters) Clear() {
	h.groups = nil
	h.counters = nil
	h.byName = map[string]int{}
	h.generated = false
	h.Timestamps = unsetTimestampIndices()
}
