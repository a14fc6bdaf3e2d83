// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/exporter-toolkit/web"
	"github.com/sustainable-computing-io/gpucounters/config"
	"github.com/sustainable-computing-io/gpucounters/internal/service"
)

// APIService defines the interface for the HTTP server providing API endpoints
type APIService interface {
	service.Service
	Register(endpoint, summary, description string, handler http.Handler) error
}

// APIServer serves the registered endpoints and a landing page that lists them
type APIServer struct {
	logger *slog.Logger

	listenAddrs   []string
	webConfigFile string

	server *http.Server
	mux    *http.ServeMux

	mu        sync.RWMutex
	endpoints []endpoint
}

type endpoint struct {
	path, summary, description string
}

var (
	_ APIService          = (*APIServer)(nil)
	_ service.Initializer = (*APIServer)(nil)
	_ service.Runner      = (*APIServer)(nil)
	_ service.Shutdowner  = (*APIServer)(nil)
)

type Opts struct {
	logger        *slog.Logger
	listenAddrs   []string
	webConfigFile string
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the APIServer
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithListenAddress sets the addresses the APIServer listens on
func WithListenAddress(addrs []string) OptionFn {
	return func(o *Opts) {
		o.listenAddrs = addrs
	}
}

// WithWebConfigFile sets the exporter-toolkit web config (TLS, basic auth) file
func WithWebConfigFile(path string) OptionFn {
	return func(o *Opts) {
		o.webConfigFile = path
	}
}

// DefaultOpts returns the default options
func DefaultOpts() Opts {
	return Opts{
		logger:      slog.Default(),
		listenAddrs: []string{config.DefaultListenAddress},
	}
}

// NewAPIServer creates a new APIServer instance
func NewAPIServer(applyOpts ...OptionFn) *APIServer {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	mux := http.NewServeMux()
	return &APIServer{
		logger:        opts.logger.With("service", "api-server"),
		listenAddrs:   opts.listenAddrs,
		webConfigFile: opts.webConfigFile,
		mux:           mux,
		server:        &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
	}
}

func (s *APIServer) Name() string {
	return "api-server"
}

func (s *APIServer) Init() error {
	s.logger.Info("Initializing API server", "listen", s.listenAddrs)
	if len(s.listenAddrs) == 0 {
		return errors.New("no listening address provided")
	}

	s.mux.HandleFunc("/", s.landingPage)
	return nil
}

func (s *APIServer) landingPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var items strings.Builder
	s.mu.RLock()
	for _, e := range s.endpoints {
		fmt.Fprintf(&items, "\t<li><a href=%q>%s</a> %s</li>\n", e.path, e.summary, e.description)
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := fmt.Fprintf(w, `<html>
<head><title>GPU Counters</title></head>
<body>
<h1>GPU Counters</h1>
<p>Available endpoints:</p>
<ul>
%s</ul>
</body>
</html>`, items.String())
	if err != nil {
		s.logger.Error("failed to write landing page", "error", err)
	}
}

func (s *APIServer) Run(ctx context.Context) error {
	s.logger.Info("Running API server")
	webConfig := &web.FlagConfig{
		WebListenAddresses: &s.listenAddrs,
		WebConfigFile:      &s.webConfigFile,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- web.ListenAndServe(s.server, webConfig, s.logger)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down API server on context done")
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("API server returned an error", "error", err)
		return err
	}
}

func (s *APIServer) Shutdown() error {
	s.logger.Info("shutting down API server on request")

	// NOTE: ensure http server shuts down within 5 seconds
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *APIServer) Register(path, summary, description string, handler http.Handler) error {
	s.logger.Debug("Endpoint Registered", "endpoint", path)
	s.mux.Handle(path, handler)

	s.mu.Lock()
	s.endpoints = append(s.endpoints, endpoint{path, summary, description})
	s.mu.Unlock()
	return nil
}
