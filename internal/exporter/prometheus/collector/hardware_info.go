// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sustainable-computing-io/gpucounters/internal/hwinfo"
)

// hardwareInfoCollector exports the hardware constants formulas are evaluated with
type hardwareInfoCollector struct {
	hw   *hwinfo.Static
	desc *prom.Desc
}

// NewHardwareInfoCollector creates a collector exporting hw as an info metric
func NewHardwareInfoCollector(hw *hwinfo.Static) *hardwareInfoCollector {
	return &hardwareInfoCollector{
		hw: hw,
		desc: prom.NewDesc(
			prom.BuildFQName(gpuCountersNS, "hardware", "info"),
			"Hardware configuration used to evaluate counter formulas",
			[]string{"device_name", "vendor", "shader_engines", "simds", "prim_pipes", "su_clocks_prim", "timestamp_frequency"},
			nil,
		),
	}
}

func (c *hardwareInfoCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.desc
}

func (c *hardwareInfoCollector) Collect(ch chan<- prom.Metric) {
	// static values, no locking needed
	ch <- prom.MustNewConstMetric(c.desc, prom.GaugeValue, 1,
		c.hw.DeviceName,
		c.hw.Vendor,
		strconv.FormatUint(uint64(c.hw.NumShaderEngines()), 10),
		strconv.FormatUint(uint64(c.hw.NumSIMDs()), 10),
		strconv.FormatUint(uint64(c.hw.NumPrimPipes()), 10),
		strconv.FormatUint(uint64(c.hw.SUClocksPrim()), 10),
		strconv.FormatUint(c.hw.TimestampFrequency(), 10),
	)
}
