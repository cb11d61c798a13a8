// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alpha-x-team-ofc/web-pair/internal/log"
)

// PerformStartupChecks verifies that dataDir exists (creating it) and is
// writable before any listener starts.
func PerformStartupChecks(_ context.Context, dataDir string) error {
	logger := log.WithComponent("startup-check")

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return fmt.Errorf("data directory check failed: create %s: %w", dataDir, err)
	}
	info, err := os.Stat(dataDir)
	if err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory check failed: not a directory: %s", dataDir)
	}

	probe := filepath.Join(dataDir, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("data directory check failed: not writable: %s: %w", dataDir, err)
	}
	_ = os.Remove(probe)

	logger.Info().Str("event", "startup.checks_passed").Str("path", dataDir).Msg("data directory is writable")
	return nil
}
