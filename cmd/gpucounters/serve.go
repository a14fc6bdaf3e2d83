// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sustainable-computing-io/gpucounters/config"
	"github.com/sustainable-computing-io/gpucounters/internal/compute"
	"github.com/sustainable-computing-io/gpucounters/internal/counter"
	"github.com/sustainable-computing-io/gpucounters/internal/exporter/prometheus"
	"github.com/sustainable-computing-io/gpucounters/internal/exporter/stdout"
	"github.com/sustainable-computing-io/gpucounters/internal/monitor"
	"github.com/sustainable-computing-io/gpucounters/internal/sample"
	"github.com/sustainable-computing-io/gpucounters/internal/server"
	"github.com/sustainable-computing-io/gpucounters/internal/service"
	"golang.org/x/sys/unix"
	"k8s.io/utils/ptr"
)

func serve(logger *slog.Logger, cfg *config.Config) error {
	catalog, err := loadCatalog(logger, cfg.Counters.File)
	if err != nil {
		return err
	}

	services := createServices(logger, cfg, catalog)
	if err := service.Init(logger, services); err != nil {
		return err
	}

	logger.Info("Starting gpucounters", "services", service.Names(services))
	if err := service.Run(context.Background(), logger, services); err != nil {
		return err
	}
	logger.Info("Graceful shutdown completed")
	return nil
}

// loadCatalog fails only when no usable catalog could be built; counters
// that failed registration are logged and left out
func loadCatalog(logger *slog.Logger, path string) (*counter.Catalog, error) {
	catalog, err := counter.CatalogFromFile(path)
	if catalog == nil {
		return nil, fmt.Errorf("failed to load counter catalog %s: %w", path, err)
	}
	if err != nil {
		logger.Warn("Some public counters were not registered", "path", path, "error", err)
	}
	logger.Info("Loaded counter catalog", "path", path,
		"hardware", catalog.Hardware.Count(), "public", catalog.Public.Count())
	return catalog, nil
}

// createServices returns the services in initialization order
func createServices(logger *slog.Logger, cfg *config.Config, catalog *counter.Catalog) []service.Service {
	logger.Debug("Creating all services")

	calc := compute.New(catalog, &cfg.Hardware, compute.WithLogger(logger))
	reader := sample.NewFileReader(cfg.Samples.File, catalog.Hardware)

	cm := monitor.NewCounterMonitor(calc, reader,
		monitor.WithLogger(logger),
		monitor.WithInterval(cfg.Monitor.Interval),
		monitor.WithMaxStaleness(cfg.Monitor.Staleness),
	)

	apiServer := server.NewAPIServer(
		server.WithLogger(logger),
		server.WithListenAddress(cfg.Web.ListenAddresses),
		server.WithWebConfigFile(cfg.Web.Config),
	)

	services := []service.Service{
		calc,
		cm,
		apiServer,
		server.NewProbe(apiServer, cm, logger),
	}

	if ptr.Deref(cfg.Exporter.Stdout.Enabled, false) {
		services = append(services, stdout.NewExporter(cm,
			stdout.WithLogger(logger),
			stdout.WithInterval(cfg.Exporter.Stdout.Interval),
		))
	}

	if ptr.Deref(cfg.Exporter.Prometheus.Enabled, false) {
		collectors := prometheus.CreateCollectors(cm, &cfg.Hardware, prometheus.WithLogger(logger))
		services = append(services, prometheus.NewExporter(cm, apiServer,
			prometheus.WithLogger(logger),
			prometheus.WithDebugCollectors(cfg.Exporter.Prometheus.DebugCollectors),
			prometheus.WithCollectors(collectors),
		))
	}

	if ptr.Deref(cfg.Debug.Pprof.Enabled, false) {
		services = append(services, server.NewPprof(apiServer))
	}

	return append(services, service.NewSignalHandler(logger, os.Interrupt, unix.SIGTERM))
}
