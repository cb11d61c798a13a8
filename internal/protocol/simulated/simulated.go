// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package simulated is an in-process stand-in for the messaging-protocol
// client. It issues pairing codes, writes credential fragments the way a real
// client would during linking, and emits the same connection events.
package simulated

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/rs/zerolog"
)

const (
	credsFragment = "creds.json"
	codeAlphabet  = "ABCDEFGHJKLMNPQRSTVWXYZ23456789"
	eventBuffer   = 16
)

var ErrConnectionClosed = errors.New("simulated: connection closed")

// Options tunes the simulated behaviour.
type Options struct {
	// AutoLinkAfter links the account this long after a code was issued.
	// Zero means links only happen through Dialer.Link.
	AutoLinkAfter time.Duration
	// RejectCode, when set, decides whether a pairing-code request fails.
	RejectCode func(phone string) error
	// SendErr, when set, makes every Send fail with it.
	SendErr error
	Logger  zerolog.Logger
}

// Dialer opens simulated connections and keeps track of them so they can be
// linked on demand.
type Dialer struct {
	opts Options

	mu    sync.Mutex
	conns map[string]*Conn
}

func NewDialer(opts Options) *Dialer {
	return &Dialer{opts: opts, conns: make(map[string]*Conn)}
}

// Open implements ports.Dialer.
func (d *Dialer) Open(ctx context.Context, creds ports.CredentialStore) (ports.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := &Conn{
		dialer: d,
		creds:  creds,
		events: make(chan ports.Event, eventBuffer),
		logger: d.opts.Logger.With().Str("component", "protocol.simulated").Str("session_id", creds.SessionID()).Logger(),
	}
	if raw, err := creds.Get(ctx, credsFragment); err == nil {
		var st credsState
		if json.Unmarshal(raw, &st) == nil {
			c.registered = st.Registered
		}
	}

	d.mu.Lock()
	d.conns[creds.SessionID()] = c
	d.mu.Unlock()
	return c, nil
}

// Link completes pairing for the session's connection, as if the user had
// entered the code on their device.
func (d *Dialer) Link(sessionID string) bool {
	d.mu.Lock()
	c, ok := d.conns[sessionID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	return c.link()
}

// Drop closes the session's link from the remote side.
func (d *Dialer) Drop(sessionID string, cause error) bool {
	d.mu.Lock()
	c, ok := d.conns[sessionID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	c.shutdown(cause)
	return true
}

// Live returns the number of connections not yet closed.
func (d *Dialer) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Conn returns the live connection for sessionID, if any.
func (d *Dialer) Conn(sessionID string) (*Conn, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conns[sessionID]
	return c, ok
}

func (d *Dialer) forget(c *Conn) {
	d.mu.Lock()
	if cur, ok := d.conns[c.creds.SessionID()]; ok && cur == c {
		delete(d.conns, c.creds.SessionID())
	}
	d.mu.Unlock()
}

type credsState struct {
	Registered bool   `json:"registered"`
	Phone      string `json:"phone,omitempty"`
	Me         *struct {
		ID string `json:"id"`
	} `json:"me,omitempty"`
	PairingCode string `json:"pairingCode,omitempty"`
}

// Conn is a simulated ports.Connection.
type Conn struct {
	dialer *Dialer
	creds  ports.CredentialStore
	logger zerolog.Logger

	mu         sync.Mutex
	registered bool
	linked     bool
	closed     bool
	phone      string
	code       string
	linkTimer  *time.Timer
	events     chan ports.Event
	sent       []Message
}

// Message is an outbound message recorded by Send.
type Message struct {
	To   string
	Text string
}

func (c *Conn) Registered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

func (c *Conn) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if reject := c.dialer.opts.RejectCode; reject != nil {
		if err := reject(phone); err != nil {
			return "", err
		}
	}

	code, err := newCode()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrConnectionClosed
	}
	c.phone = phone
	c.code = code
	c.mu.Unlock()

	state, _ := json.Marshal(credsState{Phone: phone, PairingCode: code})
	if err := c.creds.Put(ctx, credsFragment, state); err != nil {
		return "", fmt.Errorf("simulated: persist creds: %w", err)
	}

	c.emit(ports.Event{Kind: ports.EventCodeAvailable, Code: code})

	if after := c.dialer.opts.AutoLinkAfter; after > 0 {
		c.mu.Lock()
		if c.linkTimer == nil && !c.closed {
			c.linkTimer = time.AfterFunc(after, func() { c.link() })
		}
		c.mu.Unlock()
	}
	return code, nil
}

func (c *Conn) link() bool {
	c.mu.Lock()
	if c.closed || c.linked || c.code == "" {
		c.mu.Unlock()
		return false
	}
	c.linked = true
	c.registered = true
	phone := c.phone
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st := credsState{Registered: true, Phone: phone}
	st.Me = &struct {
		ID string `json:"id"`
	}{ID: selfID(phone)}
	state, _ := json.Marshal(st)
	if err := c.creds.Put(ctx, credsFragment, state); err != nil {
		c.logger.Warn().Err(err).Str("event", "simulated.persist_failed").Msg("persist linked creds")
	}
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	if err := c.creds.Put(ctx, "pre-key-1.bin", key); err != nil {
		c.logger.Warn().Err(err).Str("event", "simulated.persist_failed").Msg("persist pre-key")
	}

	c.emit(ports.Event{Kind: ports.EventLinkOpened})
	return true
}

func (c *Conn) Events() <-chan ports.Event { return c.events }

func (c *Conn) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.linked {
		return ""
	}
	return selfID(c.phone)
}

func (c *Conn) Send(ctx context.Context, recipient, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.dialer.opts.SendErr != nil {
		return c.dialer.opts.SendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if recipient == "" {
		return errors.New("simulated: empty recipient")
	}
	c.sent = append(c.sent, Message{To: recipient, Text: text})
	return nil
}

// Sent returns the messages delivered so far.
func (c *Conn) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

// Close emits a final link-closed event and closes the event stream.
// Calling it again is a no-op.
func (c *Conn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Conn) shutdown(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.linkTimer != nil {
		c.linkTimer.Stop()
	}
	select {
	case c.events <- ports.Event{Kind: ports.EventLinkClosed, Err: cause}:
	default:
	}
	close(c.events)
	c.mu.Unlock()

	c.dialer.forget(c)
}

// emit never blocks; a full buffer drops the event.
func (c *Conn) emit(ev ports.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn().Str("event", "simulated.event_dropped").Str("kind", ev.Kind.String()).Msg("event buffer full")
	}
}

func selfID(phone string) string {
	return phone + "@pair.local"
}

func newCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 0, 9)
	for i, b := range buf {
		if i == 4 {
			out = append(out, '-')
		}
		out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return string(out), nil
}
