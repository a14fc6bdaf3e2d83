// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/run"
)

// Run runs every service that implements Runner until the first of them
// returns; the others are then cancelled and shut down. It returns the error
// of the service that returned first.
func Run(outer context.Context, logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(outer)
	defer cancel()

	var g run.Group
	for _, s := range services {
		runner, ok := s.(Runner)
		if !ok {
			logger.Debug("skipping service", "service", s.Name(), "reason", "service does not implement Runner")
			continue
		}

		g.Add(
			func() error {
				logger.Info("Running service", "service", runner.Name())
				return runner.Run(ctx)
			},
			func(err error) {
				cancel()
				stop(logger, runner, err)
			},
		)
	}

	logger.Info("Running all services")
	return g.Run()
}

func stop(logger *slog.Logger, svc Service, err error) {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Debug("service terminated", "service", svc.Name())
	default:
		logger.Warn("service terminated", "service", svc.Name(), "reason", err)
	}

	shutdowner, ok := svc.(Shutdowner)
	if !ok {
		logger.Debug("skipping service shutting down", "service", svc.Name(),
			"reason", "service does not implement Shutdowner interface")
		return
	}

	logger.Info("shutting down", "service", svc.Name())
	if err := shutdowner.Shutdown(); err != nil {
		logger.Warn("service shutdown failed with error", "service", svc.Name(), "error", err)
	}
}
