// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net/http"

	"github.com/alpha-x-team-ofc/web-pair/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(s.deps.Stack)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	if s.deps.Health != nil {
		r.Get("/health", s.deps.Health.ServeHealth)
		r.Get("/ready", s.deps.Health.ServeReady)
	}
	r.Get("/info", s.handleInfo)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Route("/code", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.deps.StartRateLimitRPM > 0 {
				r.Use(middleware.APIRateLimit(s.deps.StartRateLimitRPM))
			}
			r.Get("/start", s.handleStart)
			r.Post("/start", s.handleStart)
		})
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/cleanup", s.handleCleanup)
	})
	return r
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error:   "Not Found",
		Message: fmt.Sprintf("Route %s not found", r.URL.RequestURI()),
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Error:   "Method Not Allowed",
		Message: fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path),
	})
}
