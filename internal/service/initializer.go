// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"log/slog"
)

// Init initializes, in order, every service that implements Initializer.
// When one fails, the services initialized before it are shut down in
// reverse order and the initialization error is returned.
func Init(logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.Default()
	}

	initialized := make([]Service, 0, len(services))
	for _, s := range services {
		srv, ok := s.(Initializer)
		if !ok {
			logger.Debug("skipping service initialization", "service", s.Name(),
				"reason", "service does not implement Initializer")
			continue
		}

		logger.Info("Initializing service", "service", s.Name())
		if err := srv.Init(); err != nil {
			initErr := fmt.Errorf("failed to initialize service %s: %w", s.Name(), err)
			shutdown(logger, initialized)
			return initErr
		}
		initialized = append(initialized, s)
	}

	return nil
}

func shutdown(logger *slog.Logger, services []Service) {
	logger.Info("Shutting down initialized services", "services", Names(services))
	for i := len(services) - 1; i >= 0; i-- {
		s := services[i]
		srv, ok := s.(Shutdowner)
		if !ok {
			logger.Debug("skipping service shutdown", "service", s.Name(),
				"reason", "service does not implement Shutdowner")
			continue
		}
		if err := srv.Shutdown(); err != nil {
			logger.Error("failed to shutdown service", "service", s.Name(), "error", err)
			continue
		}
		logger.Debug("service shutdown successfully", "service", s.Name())
	}
}
