// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
)

// SignalHandler is a Runner that returns once one of its signals arrives,
// which stops every other service in the run group
type SignalHandler struct {
	logger  *slog.Logger
	signals []os.Signal
}

var _ Runner = (*SignalHandler)(nil)

func NewSignalHandler(logger *slog.Logger, signals ...os.Signal) *SignalHandler {
	return &SignalHandler{
		logger:  logger.With("service", "signal-handler"),
		signals: signals,
	}
}

func (sh *SignalHandler) Name() string {
	return "signal-handler"
}

func (sh *SignalHandler) Run(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, sh.signals...)
	defer signal.Stop(c)
	sh.logger.Info("Press Ctrl+C to shutdown")

	select {
	case sig := <-c:
		sh.logger.Info("Received signal", "signal", sig.String())
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}
