// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/sustainable-computing-io/gpucounters/config"
	"github.com/sustainable-computing-io/gpucounters/internal/compute"
	"github.com/sustainable-computing-io/gpucounters/internal/counter"
)

func list(out io.Writer, logger *slog.Logger, cfg *config.Config) error {
	catalog, err := loadCatalog(logger, cfg.Counters.File)
	if err != nil {
		return err
	}

	calc := compute.New(catalog, &cfg.Hardware, compute.WithLogger(logger))
	if err := calc.Init(); err != nil {
		return err
	}
	writeCatalog(out, catalog, calc)
	return nil
}

// writeCatalog prints one row per public counter with the hardware counters
// it requires and whether its formula compiled
func writeCatalog(out io.Writer, catalog *counter.Catalog, calc *compute.Calculator) {
	counters := calc.Counters()
	rows := make([][]string, 0, len(counters))
	for _, pc := range counters {
		required := make([]string, 0, len(pc.Required))
		for _, hw := range pc.Required {
			required = append(required, catalog.Hardware.Name(int(hw)))
		}

		status := "ok"
		if err := calc.Err(pc.Index); err != nil {
			status = err.Error()
		}

		rows = append(rows, []string{
			fmt.Sprint(pc.Index),
			pc.Name,
			pc.Type.String(),
			pc.Usage.String(),
			pc.Category.String(),
			strings.Join(required, ","),
			pc.Formula,
			status,
		})
	}

	table := tablewriter.NewWriter(out)
	table.Header([]string{"Index", "Counter", "Type", "Usage", "Category", "Requires", "Formula", "Status"})
	_ = table.Bulk(rows)
	_ = table.Render()
}
