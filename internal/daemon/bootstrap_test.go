// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/config"
	"github.com/alpha-x-team-ofc/web-pair/internal/credstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAppConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.DataDir = t.TempDir()
	cfg.API.ListenAddr = "127.0.0.1:0"
	cfg.Storage.Backend = credstore.BackendMemory
	cfg.Pairing.CodeRequestDelay = 0
	cfg.Pairing.StabilizationDelay = 10 * time.Millisecond
	cfg.Pairing.CloseDelay = 10 * time.Millisecond
	cfg.Pairing.CloseGrace = 10 * time.Millisecond
	cfg.Sweep.Interval = 50 * time.Millisecond
	cfg.Server.ShutdownTimeout = 3 * time.Second
	return cfg
}

func getJSON(t *testing.T, client *http.Client, url string) (int, map[string]any) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestPairingConfigFor(t *testing.T) {
	cfg := config.Defaults()
	cfg.Pairing.MaxSessions = 7
	cfg.Pairing.BrandName = ""
	cfg.Sweep.StorageRetention = 2 * time.Hour

	got := PairingConfigFor(cfg)
	assert.Equal(t, 7, got.MaxSessions)
	assert.Equal(t, cfg.Pairing.SessionTTL, got.SessionTTL)
	assert.Equal(t, 2*time.Hour, got.StorageRetention)
	assert.NotEmpty(t, got.BrandName, "empty brand keeps the default")
	assert.Positive(t, got.ReleaseTimeout)
}

func TestBootstrapRejectsUnknownDriver(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Protocol.Driver = "whatsapp"
	_, err := Bootstrap(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestRuntimeServesPairingAndShutsDown(t *testing.T) {
	rt, err := Bootstrap(context.Background(), testAppConfig(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	base := "http://" + rt.Addr()
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}

	status, body := getJSON(t, client, base+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, credstore.BackendMemory, body["storage"])

	status, body = getJSON(t, client, base+"/code/start?number=94712345678")
	require.Equal(t, http.StatusOK, status, body)
	id, _ := body["sessionId"].(string)
	require.NotEmpty(t, id)

	status, body = getJSON(t, client, base+"/code/status/"+id)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", body["status"])

	resp, err := client.Get(base + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Shutdown releases the still-pending session.
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not stop")
	}
	assert.Zero(t, rt.Coordinator.ActiveSessions())
	assert.True(t, rt.Coordinator.Draining())
}
