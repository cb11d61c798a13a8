// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

const (
	defaultLogLevel      = "info"
	defaultService       = "web-pair"
	defaultDataDir       = "./temp"
	defaultListenAddr    = ":8001"
	defaultRPM           = 60
	defaultCountryCode   = "94"
	defaultStorageDir    = "sessions"
	defaultConfigName    = "config.yaml"
	defaultRedisAddr     = "localhost:6379"
	defaultOTLPEndpoint  = "localhost:4317"
	defaultOTLPExporter  = "grpc"
	defaultStorageEngine = "fs"
	defaultExportFormat  = "json"
)

// Defaults returns the configuration used when neither file nor ENV set a key.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   defaultLogLevel,
		LogService: defaultService,
		DataDir:    defaultDataDir,
		API: APIConfig{
			ListenAddr: defaultListenAddr,
			RateLimit:  RateLimitConfig{Enabled: true, RequestsPerMinute: defaultRPM},
		},
		Pairing: PairingConfig{
			DefaultCountryCode: defaultCountryCode,
			SessionTTL:         10 * time.Minute,
			CodeRequestDelay:   time.Second,
			StabilizationDelay: 2 * time.Second,
			CloseDelay:         3 * time.Second,
			CloseGrace:         5 * time.Second,
			CodeRequestBurst:   1,
			BrandName:          defaultService,
		},
		Sweep: SweepConfig{
			Interval:         time.Minute,
			StorageRetention: time.Hour,
		},
		Storage: StorageConfig{
			Backend: defaultStorageEngine,
			Redis:   RedisConfig{Addr: defaultRedisAddr},
		},
		Export:   ExportConfig{Format: defaultExportFormat},
		Protocol: ProtocolConfig{Driver: DriverSimulated},
		Telemetry: TelemetryConfig{
			Exporter:     defaultOTLPExporter,
			Endpoint:     defaultOTLPEndpoint,
			SamplingRate: 1.0,
		},
		Server: ServerRuntimeConfig{
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxHeaderBytes:  1 << 20,
		},
	}
}
