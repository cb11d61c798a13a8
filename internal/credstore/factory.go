// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package credstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/rs/zerolog"
)

// Config selects and parameterises a backend.
type Config struct {
	Backend string
	// Path is the fs root directory, the badger directory, or the
	// directory holding the sqlite file.
	Path  string
	Redis RedisConfig
}

// Open creates the CredentialProvider for cfg.Backend.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (ports.CredentialProvider, error) {
	var (
		p   ports.CredentialProvider
		err error
	)
	switch cfg.Backend {
	case BackendFS, "":
		p, err = NewFSProvider(cfg.Path)
	case BackendMemory:
		p = NewMemoryProvider()
	case BackendBadger:
		p, err = OpenBadgerProvider(cfg.Path)
	case BackendSQLite:
		if err = os.MkdirAll(cfg.Path, 0o750); err == nil {
			p, err = OpenSQLiteProvider(ctx, filepath.Join(cfg.Path, "credentials.sqlite"))
		}
	case BackendRedis:
		p, err = NewRedisProvider(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	ev := logger.Info().Str("event", "credstore.opened").Str("backend", p.Backend())
	if cfg.Backend == BackendRedis {
		ev = ev.Str("addr", cfg.Redis.Addr).Int("db", cfg.Redis.DB)
	} else if cfg.Path != "" {
		ev = ev.Str("path", cfg.Path)
	}
	ev.Msg("credential storage ready")
	return p, nil
}
