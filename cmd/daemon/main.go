// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alpha-x-team-ofc/web-pair/internal/config"
	"github.com/alpha-x-team-ofc/web-pair/internal/daemon"
	wplog "github.com/alpha-x-team-ofc/web-pair/internal/log"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:], os.Stdout, os.Stderr))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	wplog.Configure(wplog.Config{
		Level:   "info",
		Service: "web-pair",
		Version: version,
	})
	logger := wplog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	explicit := strings.TrimSpace(*configPath)
	effective := config.ResolveConfigPath(explicit)

	loader := config.NewLoader(effective, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(wplog.FieldEvent, "config.load_failed").
			Str("config_path", effective).
			Msg("failed to load configuration")
	}

	wplog.Configure(wplog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = wplog.WithComponent("daemon")

	switch {
	case explicit != "":
		logger.Info().Str(wplog.FieldEvent, "config.loaded").Str("source", "file").Str(wplog.FieldPath, explicit).Msg("loaded configuration from file")
	case effective != "":
		logger.Info().Str(wplog.FieldEvent, "config.loaded").Str("source", "file(auto)").Str(wplog.FieldPath, effective).Msg("loaded configuration from file")
	default:
		logger.Info().Str(wplog.FieldEvent, "config.loaded").Str("source", "env+defaults").Msg("loaded configuration from environment and defaults")
	}

	rt, err := daemon.Bootstrap(ctx, cfg, config.NewConfigHolder(cfg, loader))
	if err != nil {
		logger.Fatal().Err(err).Str(wplog.FieldEvent, "daemon.bootstrap_failed").Msg("failed to start")
	}

	logger.Info().
		Str(wplog.FieldEvent, "daemon.starting").
		Str("version", version).
		Str("commit", commit).
		Str("listen", cfg.API.ListenAddr).
		Msg("starting web-pair")

	if err := rt.Run(ctx); err != nil {
		logger.Error().Err(err).Str(wplog.FieldEvent, "daemon.failed").Msg("daemon exited with error")
		stop()
		os.Exit(1)
	}
	logger.Info().Str(wplog.FieldEvent, "daemon.exited").Msg("shutdown complete")
}
