// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader resolves an AppConfig with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a loader. An empty configPath loads defaults and ENV only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the config file the loader reads, if any.
func (l *Loader) Path() string {
	return l.configPath
}

// Load runs defaults, strict file parse, ENV overrides and validation in that order.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	mergeEnv(&cfg)

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(cfg.DataDir, defaultStorageDir)
	}
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version
	cfg.ConfigPath = l.configPath

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Keys absent from the file keep their defaults.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- the path comes from the operator via flag or ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

// mergeEnv applies WEBPAIR_* overrides. PORT is honoured when
// WEBPAIR_LISTEN is unset, for platforms that inject it.
func mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString("WEBPAIR_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("WEBPAIR_LOG_SERVICE", cfg.LogService)
	cfg.DataDir = ParseString("WEBPAIR_DATA", cfg.DataDir)

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.API.ListenAddr = ":" + port
	}
	cfg.API.ListenAddr = ParseString("WEBPAIR_LISTEN", cfg.API.ListenAddr)
	cfg.API.AllowedOrigins = ParseCSV("WEBPAIR_ALLOWED_ORIGINS", cfg.API.AllowedOrigins)
	cfg.API.RateLimit.Enabled = ParseBool("WEBPAIR_RATELIMIT_ENABLED", cfg.API.RateLimit.Enabled)
	cfg.API.RateLimit.RequestsPerMinute = ParseInt("WEBPAIR_RATELIMIT_RPM", cfg.API.RateLimit.RequestsPerMinute)
	cfg.Metrics.ListenAddr = ParseString("WEBPAIR_METRICS_LISTEN", cfg.Metrics.ListenAddr)

	p := &cfg.Pairing
	p.DefaultCountryCode = ParseString("WEBPAIR_DEFAULT_CC", p.DefaultCountryCode)
	p.SessionTTL = ParseDuration("WEBPAIR_SESSION_TTL", p.SessionTTL)
	p.CodeRequestDelay = ParseDuration("WEBPAIR_CODE_REQUEST_DELAY", p.CodeRequestDelay)
	p.StabilizationDelay = ParseDuration("WEBPAIR_STABILIZATION_DELAY", p.StabilizationDelay)
	p.CloseDelay = ParseDuration("WEBPAIR_CLOSE_DELAY", p.CloseDelay)
	p.CloseGrace = ParseDuration("WEBPAIR_CLOSE_GRACE", p.CloseGrace)
	p.MaxSessions = ParseInt("WEBPAIR_MAX_SESSIONS", p.MaxSessions)
	p.CodeRequestRate = ParseFloat("WEBPAIR_CODE_REQUEST_RATE", p.CodeRequestRate)
	p.CodeRequestBurst = ParseInt("WEBPAIR_CODE_REQUEST_BURST", p.CodeRequestBurst)
	p.BrandName = ParseString("WEBPAIR_BRAND_NAME", p.BrandName)

	cfg.Sweep.Interval = ParseDuration("WEBPAIR_SWEEP_INTERVAL", cfg.Sweep.Interval)
	cfg.Sweep.StorageRetention = ParseDuration("WEBPAIR_STORAGE_RETENTION", cfg.Sweep.StorageRetention)

	cfg.Storage.Backend = ParseString("WEBPAIR_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Path = ParseString("WEBPAIR_STORAGE_PATH", cfg.Storage.Path)
	cfg.Storage.Redis.Addr = ParseString("WEBPAIR_REDIS_ADDR", cfg.Storage.Redis.Addr)
	cfg.Storage.Redis.Password = ParseString("WEBPAIR_REDIS_PASSWORD", cfg.Storage.Redis.Password)
	cfg.Storage.Redis.DB = ParseInt("WEBPAIR_REDIS_DB", cfg.Storage.Redis.DB)

	cfg.Export.Format = ParseString("WEBPAIR_EXPORT_FORMAT", cfg.Export.Format)
	cfg.Protocol.Driver = ParseString("WEBPAIR_PROTOCOL_DRIVER", cfg.Protocol.Driver)
	cfg.Protocol.Simulated.AutoLinkAfter = ParseDuration("WEBPAIR_SIM_AUTOLINK_AFTER", cfg.Protocol.Simulated.AutoLinkAfter)

	cfg.Telemetry.Enabled = ParseBool("WEBPAIR_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("WEBPAIR_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("WEBPAIR_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat("WEBPAIR_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	s := &cfg.Server
	s.ReadTimeout = ParseDuration("WEBPAIR_SERVER_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = ParseDuration("WEBPAIR_SERVER_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = ParseDuration("WEBPAIR_SERVER_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = ParseDuration("WEBPAIR_SERVER_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxHeaderBytes = ParseInt("WEBPAIR_SERVER_MAX_HEADER_BYTES", s.MaxHeaderBytes)
}

// ResolveConfigPath returns flagPath when set, otherwise config.yaml inside
// the data directory if that file exists, otherwise "".
func ResolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	dataDir := os.Getenv("WEBPAIR_DATA")
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	candidate := filepath.Join(dataDir, defaultConfigName)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return ""
}
