// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the process lifecycle: HTTP servers, background
// loops, config reload and ordered shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/alpha-x-team-ofc/web-pair/internal/config"
	"github.com/alpha-x-team-ofc/web-pair/internal/log"
	"github.com/rs/zerolog"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the daemon lifecycle: starting servers, handling shutdown.
type Manager interface {
	// Start binds all configured servers and blocks until ctx is done or a
	// server fails. It always shuts down before returning.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the servers and then runs the hooks.
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown
	RegisterShutdownHook(name string, hook ShutdownHook)
}

type namedHook struct {
	name string
	hook ShutdownHook
}

type manager struct {
	serverCfg config.ServerConfig
	deps      Deps
	logger    zerolog.Logger

	apiServer     *http.Server
	metricsServer *http.Server

	mu       sync.Mutex
	hooks    []namedHook
	started  bool
	stopping bool
	apiAddr  string
	ready    chan struct{}
}

// NewManager validates deps and prepares the servers without binding them.
func NewManager(serverCfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	m := &manager{
		serverCfg: serverCfg,
		deps:      deps,
		logger:    deps.Logger.With().Str(log.FieldComponent, "daemon").Logger(),
		ready:     make(chan struct{}),
	}
	m.apiServer = newHTTPServer(serverCfg, deps.APIHandler)
	if deps.metricsEnabled() {
		m.metricsServer = newHTTPServer(deps.MetricsServer, deps.MetricsHandler)
	}
	return m, nil
}

func newHTTPServer(cfg config.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        h,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	if hook == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, hook: hook})
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrManagerAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	apiLn, err := net.Listen("tcp", m.apiServer.Addr)
	if err != nil {
		m.runHooksAfterFailedStart(ctx)
		return fmt.Errorf("%w: api listen %s: %w", ErrServerStartFailed, m.apiServer.Addr, err)
	}
	var metricsLn net.Listener
	if m.metricsServer != nil {
		metricsLn, err = net.Listen("tcp", m.metricsServer.Addr)
		if err != nil {
			_ = apiLn.Close()
			m.runHooksAfterFailedStart(ctx)
			return fmt.Errorf("%w: metrics listen %s: %w", ErrServerStartFailed, m.metricsServer.Addr, err)
		}
	}

	m.mu.Lock()
	m.apiAddr = apiLn.Addr().String()
	m.mu.Unlock()
	close(m.ready)

	errChan := make(chan error, 2)
	m.serve(m.apiServer, apiLn, "api", errChan)
	if metricsLn != nil {
		m.serve(m.metricsServer, metricsLn, "metrics", errChan)
	}

	var serveErr error
	select {
	case serveErr = <-errChan:
		m.logger.Error().Err(serveErr).Str(log.FieldEvent, "server.failed").Msg("server failed, shutting down")
	case <-ctx.Done():
		m.logger.Info().Str(log.FieldEvent, "daemon.stopping").Msg("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, m.Shutdown(shutdownCtx))
}

func (m *manager) serve(srv *http.Server, ln net.Listener, name string, errChan chan<- error) {
	m.logger.Info().
		Str(log.FieldEvent, "server.listening").
		Str("server", name).
		Str("addr", ln.Addr().String()).
		Msg("HTTP server listening")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("%w: %s: %w", ErrServerStartFailed, name, err)
		}
	}()
}

// runHooksAfterFailedStart releases resources that were built before the
// bind failed; the process is exiting anyway.
func (m *manager) runHooksAfterFailedStart(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
	defer cancel()
	m.mu.Lock()
	m.stopping = true
	m.mu.Unlock()
	if err := m.runHooks(shutdownCtx); err != nil {
		m.logger.Warn().Err(err).Msg("shutdown hooks failed after start error")
	}
}

func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	m.mu.Unlock()

	var errs []error
	for _, s := range []struct {
		name string
		srv  *http.Server
	}{{"api", m.apiServer}, {"metrics", m.metricsServer}} {
		if s.srv == nil {
			continue
		}
		if err := s.srv.Shutdown(ctx); err != nil {
			m.logger.Warn().Err(err).Str("server", s.name).Msg("graceful shutdown incomplete, closing connections")
			_ = s.srv.Close()
			errs = append(errs, fmt.Errorf("%s server: %w", s.name, err))
		}
	}

	if err := m.runHooks(ctx); err != nil {
		errs = append(errs, err)
	}

	m.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped")
	return errors.Join(errs...)
}

func (m *manager) runHooks(ctx context.Context) error {
	m.mu.Lock()
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		m.logger.Debug().Str("hook", h.name).Msg("running shutdown hook")
		if err := h.hook(ctx); err != nil {
			m.logger.Error().Err(err).Str("hook", h.name).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}

// addr returns the bound API address once Start has bound it.
func (m *manager) addr() string {
	<-m.ready
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiAddr
}
