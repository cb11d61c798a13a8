// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/alpha-x-team-ofc/web-pair/internal/credstore"
	"github.com/alpha-x-team-ofc/web-pair/internal/export"
	"github.com/alpha-x-team-ofc/web-pair/internal/validate"
)

const maxCountryCodeDigits = 4

// Validate reports every invalid field of cfg in one error.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("logLevel", cfg.LogLevel)
	v.NotEmpty("dataDir", cfg.DataDir)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr, false)
	v.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr, true)
	if cfg.API.RateLimit.Enabled {
		v.Positive("api.rateLimit.requestsPerMinute", cfg.API.RateLimit.RequestsPerMinute)
	}

	p := cfg.Pairing
	v.Digits("pairing.defaultCountryCode", p.DefaultCountryCode, maxCountryCodeDigits)
	v.PositiveDuration("pairing.sessionTTL", p.SessionTTL)
	v.NonNegativeDuration("pairing.codeRequestDelay", p.CodeRequestDelay)
	v.NonNegativeDuration("pairing.stabilizationDelay", p.StabilizationDelay)
	v.NonNegativeDuration("pairing.closeDelay", p.CloseDelay)
	v.NonNegativeDuration("pairing.closeGrace", p.CloseGrace)
	v.NonNegative("pairing.maxSessions", p.MaxSessions)
	if p.CodeRequestRate < 0 {
		v.AddError("pairing.codeRequestRate", "rate cannot be negative", p.CodeRequestRate)
	}
	if p.CodeRequestRate > 0 {
		v.Positive("pairing.codeRequestBurst", p.CodeRequestBurst)
	}

	v.NonNegativeDuration("sweep.interval", cfg.Sweep.Interval)
	v.NonNegativeDuration("sweep.storageRetention", cfg.Sweep.StorageRetention)

	v.OneOf("storage.backend", cfg.Storage.Backend, credstore.Backends)
	if cfg.Storage.Backend == credstore.BackendRedis {
		v.NotEmpty("storage.redis.addr", cfg.Storage.Redis.Addr)
		v.NonNegative("storage.redis.db", cfg.Storage.Redis.DB)
	}

	if _, err := export.ParseFormat(cfg.Export.Format); err != nil {
		v.AddError("export.format", err.Error(), cfg.Export.Format)
	}
	v.OneOf("protocol.driver", cfg.Protocol.Driver, []string{DriverSimulated})
	v.NonNegativeDuration("protocol.simulated.autoLinkAfter", cfg.Protocol.Simulated.AutoLinkAfter)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	v.NonNegativeDuration("server.readTimeout", cfg.Server.ReadTimeout)
	v.NonNegativeDuration("server.writeTimeout", cfg.Server.WriteTimeout)
	v.NonNegativeDuration("server.idleTimeout", cfg.Server.IdleTimeout)
	v.NonNegativeDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)

	return v.Err()
}
