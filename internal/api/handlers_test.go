// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/manager"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
	"github.com/alpha-x-team-ofc/web-pair/internal/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePairing struct {
	mu      sync.Mutex
	numbers []string
	err     error
	status  manager.Status
	sweep   manager.SweepResult
	sweepEr error
	active  int
}

func (f *fakePairing) StartPairing(_ context.Context, raw string) (manager.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.numbers = append(f.numbers, raw)
	if f.err != nil {
		return manager.Result{}, f.err
	}
	return manager.Result{SessionID: "01JTEST", PairingCode: "ABCD-EFGH", PhoneNumber: raw}, nil
}

func (f *fakePairing) Status(_ context.Context, id string) (manager.Status, error) {
	st := f.status
	st.SessionID = id
	return st, nil
}

func (f *fakePairing) Sweep(context.Context) (manager.SweepResult, error) {
	return f.sweep, f.sweepEr
}

func (f *fakePairing) ActiveSessions() int { return f.active }

func (f *fakePairing) lastNumber() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.numbers) == 0 {
		return ""
	}
	return f.numbers[len(f.numbers)-1]
}

func newTestServer(p Pairing) *Server {
	return New(Deps{
		Pairing: p,
		Health:  health.NewManager("test", "memory"),
		Info:    Info{Name: "web-pair", Version: "test", ListenAddr: ":8001", StorageBackend: "memory"},
	})
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestStartReadsNumberFromAllInputs(t *testing.T) {
	tests := []struct {
		name string
		req  func() *http.Request
		want string
	}{
		{"query GET", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/code/start?number=94712345678", nil)
		}, "94712345678"},
		{"json string", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/code/start", strings.NewReader(`{"number":"+94 71 234 5678"}`))
			r.Header.Set("Content-Type", "application/json")
			return r
		}, "+94 71 234 5678"},
		{"json number", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/code/start", strings.NewReader(`{"number":94712345678}`))
			r.Header.Set("Content-Type", "application/json; charset=utf-8")
			return r
		}, "94712345678"},
		{"form", func() *http.Request {
			form := url.Values{"number": {"0712345678"}}
			r := httptest.NewRequest(http.MethodPost, "/code/start", strings.NewReader(form.Encode()))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return r
		}, "0712345678"},
		{"post falls back to query", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/code/start?number=94700000000", strings.NewReader(`{}`))
			r.Header.Set("Content-Type", "application/json")
			return r
		}, "94700000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePairing{}
			rec, body := do(t, newTestServer(p), tt.req())
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, p.lastNumber())
			assert.Equal(t, true, body["success"])
			assert.Equal(t, "01JTEST", body["sessionId"])
			assert.Equal(t, "ABCD-EFGH", body["pairingCode"])
			assert.Len(t, body["instructions"], 4)
		})
	}
}

func TestStartErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantError   string
		wantDetails string
	}{
		{"invalid", fmt.Errorf("%w: got 5 digits, want 10-15", manager.ErrInvalidNumber), http.StatusBadRequest, "Invalid phone number: got 5 digits, want 10-15", ""},
		{"registered", manager.ErrAlreadyRegistered, http.StatusBadRequest, "Number already registered", ""},
		{"capacity", manager.ErrCapacityExceeded, http.StatusServiceUnavailable, "Too many active pairing sessions, try again later", ""},
		{"shutting down", manager.ErrShuttingDown, http.StatusServiceUnavailable, "Service is shutting down", ""},
		{"request failed", fmt.Errorf("%w: %w", manager.ErrPairingRequestFailed, errors.New("rejected by server")), http.StatusInternalServerError, "Failed to generate pairing code", "rejected by server"},
		{"setup failed", fmt.Errorf("%w: open connection: %w", manager.ErrSetupFailed, errors.New("dial refused")), http.StatusInternalServerError, "Setup failed", "open connection: dial refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakePairing{err: tt.err})
			rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/code/start?number=12345", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantError, body["error"])
			if tt.wantDetails != "" {
				assert.Equal(t, tt.wantDetails, body["details"])
			}
			if errors.Is(tt.err, manager.ErrPairingRequestFailed) {
				assert.Equal(t, pairingSuggestion, body["suggestion"])
			}
		})
	}
}

func TestStatus(t *testing.T) {
	p := &fakePairing{status: manager.Status{
		Active:         true,
		State:          model.StateConnected,
		PairingCode:    "ABCD-EFGH",
		Age:            90 * time.Second,
		FilesCount:     2,
		HasCredentials: true,
		Connected:      true,
	}}
	rec, body := do(t, newTestServer(p), httptest.NewRequest(http.MethodGet, "/code/status/01JTEST", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, "connected", body["state"])
	assert.Equal(t, 90.0, body["ageSeconds"])
	assert.Equal(t, 2.0, body["filesCount"])
	assert.Equal(t, true, body["hasCredentials"])
	assert.Equal(t, true, body["connected"])
}

func TestStatusNotFound(t *testing.T) {
	rec, body := do(t, newTestServer(&fakePairing{}), httptest.NewRequest(http.MethodGet, "/code/status/nope", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_found", body["status"])
	assert.NotContains(t, body, "state")

	ended := &fakePairing{status: manager.Status{State: model.StateFailed, Reason: model.RExpired}}
	_, body = do(t, newTestServer(ended), httptest.NewRequest(http.MethodGet, "/code/status/old", nil))
	assert.Equal(t, "not_found", body["status"])
	assert.Equal(t, "failed", body["state"])
	assert.Equal(t, "expired", body["reason"])
}

func TestCleanup(t *testing.T) {
	p := &fakePairing{sweep: manager.SweepResult{Removed: 2, Remaining: 1, OrphansPurged: 3}}
	rec, body := do(t, newTestServer(p), httptest.NewRequest(http.MethodGet, "/code/cleanup", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 2.0, body["removed"])
	assert.Equal(t, 1.0, body["remaining"])
	assert.Equal(t, 3.0, body["orphansPurged"])

	failing := &fakePairing{sweepEr: errors.New("provider closed")}
	rec, body = do(t, newTestServer(failing), httptest.NewRequest(http.MethodGet, "/code/cleanup", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Cleanup failed", body["error"])
}

func TestInfoHealthAndNotFound(t *testing.T) {
	s := newTestServer(&fakePairing{active: 4})

	_, body := do(t, s, httptest.NewRequest(http.MethodGet, "/info", nil))
	assert.Equal(t, "web-pair", body["name"])
	assert.Equal(t, "8001", body["port"])
	assert.Equal(t, "memory", body["storageBackend"])
	assert.Equal(t, 4.0, body["activeSessions"])

	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/nope?x=1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", body["error"])
	assert.Equal(t, "Route /nope?x=1 not found", body["message"])

	rec, _ = do(t, s, httptest.NewRequest(http.MethodDelete, "/code/start", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsMountedOnlyWhenProvided(t *testing.T) {
	s := newTestServer(&fakePairing{})
	rec, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s = New(Deps{
		Pairing: &fakePairing{},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})
	rec, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestStartRateLimit(t *testing.T) {
	s := New(Deps{Pairing: &fakePairing{}, StartRateLimitRPM: 1})
	first := httptest.NewRequest(http.MethodGet, "/code/start?number=94712345678", nil)
	first.RemoteAddr = "192.0.2.7:1000"
	rec, _ := do(t, s, first)
	assert.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodGet, "/code/start?number=94712345678", nil)
	second.RemoteAddr = "192.0.2.7:1001"
	rec, _ = do(t, s, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	status := httptest.NewRequest(http.MethodGet, "/code/status/x", nil)
	status.RemoteAddr = "192.0.2.7:1002"
	rec, _ = do(t, s, status)
	assert.Equal(t, http.StatusOK, rec.Code, "status is not limited")
}
