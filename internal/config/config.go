// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the web-pair runtime configuration.
//
// Precedence is ENV > YAML file > defaults. The YAML file is parsed strictly:
// unknown keys and trailing documents are rejected.
package config

import "time"

// AppConfig is the fully resolved configuration of one daemon process.
type AppConfig struct {
	Version    string `yaml:"-"`
	ConfigPath string `yaml:"-"`

	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
	DataDir    string `yaml:"dataDir"`

	API       APIConfig           `yaml:"api"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	Pairing   PairingConfig       `yaml:"pairing"`
	Sweep     SweepConfig         `yaml:"sweep"`
	Storage   StorageConfig       `yaml:"storage"`
	Export    ExportConfig        `yaml:"export"`
	Protocol  ProtocolConfig      `yaml:"protocol"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
	Server    ServerRuntimeConfig `yaml:"server"`
}

// APIConfig configures the public HTTP listener.
type APIConfig struct {
	ListenAddr     string          `yaml:"listenAddr"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig configures per-client ingress limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
}

// MetricsConfig selects where /metrics is served. An empty ListenAddr
// mounts it on the API router.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// PairingConfig tunes the pairing lifecycle.
type PairingConfig struct {
	DefaultCountryCode string        `yaml:"defaultCountryCode"`
	SessionTTL         time.Duration `yaml:"sessionTTL"`
	CodeRequestDelay   time.Duration `yaml:"codeRequestDelay"`
	StabilizationDelay time.Duration `yaml:"stabilizationDelay"`
	CloseDelay         time.Duration `yaml:"closeDelay"`
	CloseGrace         time.Duration `yaml:"closeGrace"`
	MaxSessions        int           `yaml:"maxSessions"`
	CodeRequestRate    float64       `yaml:"codeRequestRate"`
	CodeRequestBurst   int           `yaml:"codeRequestBurst"`
	BrandName          string        `yaml:"brandName"`
}

// SweepConfig configures the periodic cleanup pass.
type SweepConfig struct {
	Interval         time.Duration `yaml:"interval"`
	StorageRetention time.Duration `yaml:"storageRetention"`
}

// StorageConfig selects the credential storage backend.
type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig addresses the redis credential backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ExportConfig selects the session export serialization.
type ExportConfig struct {
	Format string `yaml:"format"`
}

// ProtocolConfig selects the messaging protocol driver.
type ProtocolConfig struct {
	Driver    string          `yaml:"driver"`
	Simulated SimulatedConfig `yaml:"simulated"`
}

// SimulatedConfig tunes the simulated driver. AutoLinkAfter of zero never links.
type SimulatedConfig struct {
	AutoLinkAfter time.Duration `yaml:"autoLinkAfter"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// ServerRuntimeConfig holds http.Server timeouts.
type ServerRuntimeConfig struct {
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxHeaderBytes  int           `yaml:"maxHeaderBytes"`
}

// Driver names accepted by protocol.driver.
const (
	DriverSimulated = "simulated"
)
