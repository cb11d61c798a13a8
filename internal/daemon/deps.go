// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"net/http"

	"github.com/alpha-x-team-ofc/web-pair/internal/config"
	"github.com/rs/zerolog"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	Logger zerolog.Logger

	// APIHandler serves the pairing API.
	APIHandler http.Handler

	// MetricsHandler is served on MetricsServer.ListenAddr when both are set.
	// With an empty address metrics stay mounted on the API router instead.
	MetricsHandler http.Handler
	MetricsServer  config.ServerConfig
}

func (d Deps) validate() error {
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}

func (d Deps) metricsEnabled() bool {
	return d.MetricsHandler != nil && d.MetricsServer.ListenAddr != ""
}
