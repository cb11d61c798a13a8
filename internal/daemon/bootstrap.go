// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alpha-x-team-ofc/web-pair/internal/api"
	"github.com/alpha-x-team-ofc/web-pair/internal/api/middleware"
	"github.com/alpha-x-team-ofc/web-pair/internal/config"
	"github.com/alpha-x-team-ofc/web-pair/internal/credstore"
	pairing "github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/manager"
	"github.com/alpha-x-team-ofc/web-pair/internal/export"
	"github.com/alpha-x-team-ofc/web-pair/internal/health"
	"github.com/alpha-x-team-ofc/web-pair/internal/log"
	"github.com/alpha-x-team-ofc/web-pair/internal/protocol/simulated"
	"github.com/alpha-x-team-ofc/web-pair/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runtime is a fully wired daemon. Run blocks until ctx is done.
type Runtime struct {
	App         *App
	Coordinator *pairing.Coordinator
	Dialer      *simulated.Dialer
	manager     Manager
}

// Run starts the runtime. It returns after the ordered shutdown completed.
func (r *Runtime) Run(ctx context.Context) error {
	return r.App.Run(ctx)
}

// Addr blocks until the API server is bound and returns its address.
func (r *Runtime) Addr() string {
	return r.manager.(*manager).addr()
}

// Bootstrap wires every component from cfg. Resources opened before a
// failure are released before it returns.
func Bootstrap(ctx context.Context, cfg config.AppConfig, holder *config.ConfigHolder) (rt *Runtime, err error) {
	logger := log.WithComponent("daemon")

	var cleanup []func(context.Context) error
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			_ = cleanup[i](context.WithoutCancel(ctx))
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		// Tracing is optional; pairing works without it.
		logger.Warn().Err(err).Str(log.FieldEvent, "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
		tp = nil
	} else {
		cleanup = append(cleanup, tp.Shutdown)
	}

	if err = health.PerformStartupChecks(ctx, cfg.DataDir); err != nil {
		return nil, fmt.Errorf("startup checks: %w", err)
	}

	provider, err := credstore.Open(ctx, credstore.Config{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		Redis: credstore.RedisConfig{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		},
	}, log.WithComponent("credstore"))
	if err != nil {
		return nil, fmt.Errorf("open credential storage: %w", err)
	}
	cleanup = append(cleanup, func(context.Context) error { return provider.Close() })

	if cfg.Protocol.Driver != "" && cfg.Protocol.Driver != config.DriverSimulated {
		return nil, fmt.Errorf("protocol driver %q is not available", cfg.Protocol.Driver)
	}
	dialer := simulated.NewDialer(simulated.Options{
		AutoLinkAfter: cfg.Protocol.Simulated.AutoLinkAfter,
		Logger:        log.WithComponent("protocol"),
	})

	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return nil, err
	}
	codec, err := export.NewCodec(format)
	if err != nil {
		return nil, err
	}

	coord, err := pairing.NewCoordinator(PairingConfigFor(cfg), pairing.Deps{
		Provider: provider,
		Dialer:   dialer,
		Codec:    codec,
	})
	if err != nil {
		return nil, fmt.Errorf("pairing coordinator: %w", err)
	}

	hm := health.NewManager(cfg.Version, provider.Backend())
	hm.RegisterChecker(health.NewPingChecker("storage", provider.Ping))
	hm.RegisterChecker(health.NewCapacityChecker(coord.ActiveSessions, coord.MaxSessions()))
	hm.RegisterChecker(health.NewShutdownChecker(coord.Draining))

	var metricsOnAPI http.Handler
	if cfg.Metrics.ListenAddr == "" {
		metricsOnAPI = promhttp.Handler()
	}
	rpm := 0
	if cfg.API.RateLimit.Enabled {
		rpm = cfg.API.RateLimit.RequestsPerMinute
	}
	tracing := ""
	if tp != nil && tp.Enabled() {
		tracing = "web-pair/http"
	}

	srv := api.New(api.Deps{
		Pairing: coord,
		Health:  hm,
		Info: api.Info{
			Name:           cfg.LogService,
			Version:        cfg.Version,
			ListenAddr:     cfg.API.ListenAddr,
			StorageBackend: provider.Backend(),
		},
		Stack: middleware.StackConfig{
			EnableCORS:            true,
			AllowedOrigins:        cfg.API.AllowedOrigins,
			EnableSecurityHeaders: true,
			CSP:                   middleware.DefaultCSP,
			EnableMetrics:         true,
			TracingService:        tracing,
			EnableLogging:         true,
			RateLimitRPM:          rpm,
		},
		Metrics: metricsOnAPI,
	})

	mgr, err := NewManager(config.ServerConfigFor(cfg), Deps{
		Logger:         logger,
		APIHandler:     srv.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsServer:  config.MetricsServerConfigFor(cfg),
	})
	if err != nil {
		return nil, err
	}

	// LIFO: sessions drain first, then storage closes, then traces flush.
	if tp != nil {
		mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	}
	mgr.RegisterShutdownHook("credstore", func(context.Context) error { return provider.Close() })
	mgr.RegisterShutdownHook("pairing", coord.Shutdown)

	sweeper := &pairing.Sweeper{Sched: coord.Scheduler(), Interval: cfg.Sweep.Interval}

	logger.Info().
		Str(log.FieldEvent, "daemon.bootstrapped").
		Str(log.FieldBackend, provider.Backend()).
		Str("export_format", string(format)).
		Str("listen", cfg.API.ListenAddr).
		Msg("daemon wired")

	return &Runtime{
		App:         NewApp(logger, mgr, holder, sweeper),
		Coordinator: coord,
		Dialer:      dialer,
		manager:     mgr,
	}, nil
}

// PairingConfigFor maps the file/ENV configuration onto the coordinator's
// settings, keeping its internal timeouts at their defaults.
func PairingConfigFor(cfg config.AppConfig) pairing.Config {
	out := pairing.DefaultConfig()
	p := cfg.Pairing
	out.DefaultCountryCode = p.DefaultCountryCode
	out.SessionTTL = p.SessionTTL
	out.CodeRequestDelay = p.CodeRequestDelay
	out.StabilizationDelay = p.StabilizationDelay
	out.CloseDelay = p.CloseDelay
	out.CloseGrace = p.CloseGrace
	out.MaxSessions = p.MaxSessions
	out.CodeRequestRate = p.CodeRequestRate
	out.CodeRequestBurst = p.CodeRequestBurst
	if p.BrandName != "" {
		out.BrandName = p.BrandName
	}
	out.StorageRetention = cfg.Sweep.StorageRetention
	return out
}
