// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

const minShutdownTimeout = 3 * time.Second

// ServerConfig is what daemon needs to build one http.Server.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// ServerConfigFor derives the API server settings from cfg.
// Zero fields fall back to defaults; shutdown gets at least 3s.
func ServerConfigFor(cfg AppConfig) ServerConfig {
	def := Defaults().Server
	out := ServerConfig{
		ListenAddr:      cfg.API.ListenAddr,
		ReadTimeout:     orDefault(cfg.Server.ReadTimeout, def.ReadTimeout),
		WriteTimeout:    orDefault(cfg.Server.WriteTimeout, def.WriteTimeout),
		IdleTimeout:     orDefault(cfg.Server.IdleTimeout, def.IdleTimeout),
		MaxHeaderBytes:  cfg.Server.MaxHeaderBytes,
		ShutdownTimeout: orDefault(cfg.Server.ShutdownTimeout, def.ShutdownTimeout),
	}
	if out.MaxHeaderBytes <= 0 {
		out.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if out.ShutdownTimeout < minShutdownTimeout {
		out.ShutdownTimeout = minShutdownTimeout
	}
	return out
}

// MetricsServerConfigFor is ServerConfigFor bound to metrics.listenAddr.
func MetricsServerConfigFor(cfg AppConfig) ServerConfig {
	out := ServerConfigFor(cfg)
	out.ListenAddr = cfg.Metrics.ListenAddr
	return out
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
