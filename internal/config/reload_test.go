// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHolder(t *testing.T, body string) (*ConfigHolder, string) {
	t.Helper()
	path := writeConfig(t, body)
	loader := NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	return NewConfigHolder(cfg, loader), path
}

func TestReloadAppliesAndNotifies(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	h, path := newHolder(t, "logLevel: info\n")
	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\npairing:\n  maxSessions: 3\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, "warn", h.Get().LogLevel)
	assert.Equal(t, 3, h.Get().Pairing.MaxSessions)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	select {
	case got := <-ch:
		assert.Equal(t, "warn", got.LogLevel)
	default:
		t.Fatal("listener not notified")
	}
}

func TestReloadKeepsOldConfigOnError(t *testing.T) {
	h, path := newHolder(t, "logLevel: info\n")
	require.NoError(t, os.WriteFile(path, []byte("bogus: true\n"), 0o600))

	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "info", h.Get().LogLevel)
}

func TestReloadFullListenerDoesNotBlock(t *testing.T) {
	h, _ := newHolder(t, "logLevel: info\n")
	ch := make(chan AppConfig)
	h.RegisterListener(ch)
	require.NoError(t, h.Reload(context.Background()))
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	h, path := newHolder(t, "logLevel: info\n")
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(path, []byte("logLevel: error\n"), 0o600))
	require.Eventually(t, func() bool {
		return h.Get().LogLevel == "error"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherDisabledWithoutPath(t *testing.T) {
	h := NewConfigHolder(Defaults(), NewLoader("", ""))
	require.NoError(t, h.StartWatcher(context.Background()))
	assert.Nil(t, h.Done())
}
