// Package api serves the operational HTTP endpoints of dray: liveness and
// readiness probes and, when enabled, Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dray/internal/logger"
)

// Config configures the HTTP server.
type Config struct {
	// Listen is the TCP address, e.g. ":9090".
	Listen string

	// Metrics mounts /metrics when true.
	Metrics bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":9090"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// Server is the operational HTTP server.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe (object store reachable)
//   - GET /metrics: Prometheus exposition (when Config.Metrics is set)
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once

	ready chan struct{}
	addr  net.Addr
}

// NewServer creates a stopped server. Call Start to serve.
func NewServer(config Config, deps Deps) *Server {
	config.applyDefaults()
	return &Server{
		server: &http.Server{
			Addr:         config.Listen,
			Handler:      NewRouter(deps, config.Metrics),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
		ready:  make(chan struct{}),
	}
}

// Start serves until ctx is cancelled or the listener fails.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the server fails to start or shutdown encounters an error
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("HTTP server listen on %s: %w", s.config.Listen, err)
	}
	s.addr = ln.Addr()
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logger.KeyAddress, ln.Addr().String(), "metrics", s.config.Metrics)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// The cancelled ctx would abort shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

// Stop shuts the server down gracefully. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			logger.Error("HTTP server shutdown error", logger.Err(err))
			return
		}
		logger.Info("HTTP server stopped")
	})
	return shutdownErr
}

// Addr blocks until the listener is bound and returns its address.
func (s *Server) Addr() string {
	<-s.ready
	return s.addr.String()
}
