// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package service holds the lifecycle contracts shared by the monitor,
// exporters and servers, and the helpers that drive them.
package service

import "context"

// Service is the interface that all services must implement
type Service interface {
	// Name returns the name of the service
	Name() string
}

// Initializer is a service that must be prepared before any service runs
type Initializer interface {
	Service
	Init() error
}

// Runner is a service that runs in the background until its context is done
type Runner interface {
	Service
	// Run is expected to block and be thread safe
	Run(ctx context.Context) error
}

// Shutdowner is a service that releases resources once it stops
type Shutdowner interface {
	Service
	Shutdown() error
}

// Names returns the names of services in order
func Names(services []Service) []string {
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.Name())
	}
	return names
}
