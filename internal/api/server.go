// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the web-pair HTTP surface.
package api

import (
	"context"
	"net/http"

	"github.com/alpha-x-team-ofc/web-pair/internal/api/middleware"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/manager"
	"github.com/alpha-x-team-ofc/web-pair/internal/health"
	"github.com/go-chi/chi/v5"
)

// Pairing is the subset of the pairing coordinator the handlers use.
type Pairing interface {
	StartPairing(ctx context.Context, rawNumber string) (manager.Result, error)
	Status(ctx context.Context, id string) (manager.Status, error)
	Sweep(ctx context.Context) (manager.SweepResult, error)
	ActiveSessions() int
}

// Info is reported by GET /info.
type Info struct {
	Name           string
	Version        string
	ListenAddr     string
	StorageBackend string
}

// Deps wires the server.
type Deps struct {
	Pairing Pairing
	Health  *health.Manager
	Info    Info
	Stack   middleware.StackConfig
	// StartRateLimitRPM additionally limits /code/start per client; 0 disables it.
	StartRateLimitRPM int
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// Server owns the router.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the server and its routes.
func New(deps Deps) *Server {
	s := &Server{deps: deps}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
