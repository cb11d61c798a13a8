// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/credstore"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/store"
	"github.com/alpha-x-team-ofc/web-pair/internal/export"
	"github.com/stretchr/testify/require"
)

// fakeDialer hands out fakeConns and records every attempt.
type fakeDialer struct {
	mu         sync.Mutex
	openErr    error
	registered bool
	sendErr    error
	// codeFn decides the outcome of each pairing-code request; attempt is 1-based.
	codeFn func(attempt int, phone string) (string, error)
	conns  []*fakeConn
}

func (d *fakeDialer) Open(_ context.Context, creds ports.CredentialStore) (ports.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	c := &fakeConn{
		dialer:     d,
		creds:      creds,
		registered: d.registered,
		sendErr:    d.sendErr,
		events:     make(chan ports.Event, 16),
	}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) opened() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

func (d *fakeDialer) conn(t *testing.T, sessionID string) *fakeConn {
	t.Helper()
	for _, c := range d.opened() {
		if c.creds.SessionID() == sessionID {
			return c
		}
	}
	t.Fatalf("no connection for session %s", sessionID)
	return nil
}

type fakeConn struct {
	dialer     *fakeDialer
	creds      ports.CredentialStore
	registered bool
	sendErr    error

	mu       sync.Mutex
	phones   []string
	closed   bool
	linked   bool
	sent     []string
	events   chan ports.Event
	closeCnt atomic.Int32
}

func (c *fakeConn) Registered() bool { return c.registered }

func (c *fakeConn) RequestPairingCode(_ context.Context, phone string) (string, error) {
	c.mu.Lock()
	c.phones = append(c.phones, phone)
	attempt := len(c.phones)
	c.mu.Unlock()

	if fn := c.dialer.codeFn; fn != nil {
		return fn(attempt, phone)
	}
	return "ABCD-1234", nil
}

func (c *fakeConn) requested() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.phones...)
}

func (c *fakeConn) Events() <-chan ports.Event { return c.events }

func (c *fakeConn) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.linked {
		return ""
	}
	return "self@test"
}

func (c *fakeConn) Send(_ context.Context, _ string, text string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeConn) Close() error {
	c.closeCnt.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.events <- ports.Event{Kind: ports.EventLinkClosed}
	close(c.events)
	return nil
}

// link persists credentials like a real client and signals the link.
func (c *fakeConn) link(t *testing.T) {
	t.Helper()
	require.NoError(t, c.creds.Put(context.Background(), "creds.json", []byte(`{"registered":true}`)))
	c.mu.Lock()
	c.linked = true
	c.mu.Unlock()
	c.emit(ports.Event{Kind: ports.EventLinkOpened})
}

func (c *fakeConn) emit(ev ports.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.events <- ev
	}
}

// dropLink closes the link from the remote side.
func (c *fakeConn) dropLink(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.events <- ports.Event{Kind: ports.EventLinkClosed, Err: cause}
	close(c.events)
}

// endStream ends the event stream without a close event.
func (c *fakeConn) endStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

// failingProvider injects allocation failures into the memory provider.
type failingProvider struct {
	*credstore.MemoryProvider
	openErr error
}

func (p *failingProvider) Open(ctx context.Context, sid string) (ports.CredentialStore, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.MemoryProvider.Open(ctx, sid)
}

// testClock is a settable clock for sweep tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fastConfig() Config {
	conf := DefaultConfig()
	conf.CodeRequestDelay = 0
	conf.StabilizationDelay = 10 * time.Millisecond
	conf.CloseDelay = 10 * time.Millisecond
	conf.CloseGrace = 10 * time.Millisecond
	conf.SessionTTL = time.Minute
	conf.ReleaseTimeout = time.Second
	return conf
}

type harness struct {
	coord    *Coordinator
	dialer   *fakeDialer
	provider *credstore.MemoryProvider
}

func newHarness(t *testing.T, conf Config, dialer *fakeDialer, now func() time.Time) *harness {
	t.Helper()
	if dialer == nil {
		dialer = &fakeDialer{}
	}
	provider := credstore.NewMemoryProvider()
	if now != nil {
		provider.WithClock(now)
	}
	codec, err := export.NewCodec(export.FormatJSON)
	require.NoError(t, err)

	coord, err := NewCoordinator(conf, Deps{
		Store:    store.NewMemoryStore(),
		Provider: provider,
		Dialer:   dialer,
		Codec:    codec,
		Now:      now,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = coord.Shutdown(ctx)
	})
	return &harness{coord: coord, dialer: dialer, provider: provider}
}

func (h *harness) storageIDs(t *testing.T) []string {
	t.Helper()
	infos, err := h.provider.Sessions(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.SessionID)
	}
	return out
}

var errRejected = errors.New("number rejected by server")

// syncBuffer collects log output written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
