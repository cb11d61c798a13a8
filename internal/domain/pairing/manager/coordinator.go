// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manager drives pairing sessions from the phone-number request
// through code issuance, linking, credential export and guaranteed cleanup.
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/lifecycle"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/store"
	"github.com/alpha-x-team-ofc/web-pair/internal/export"
	"github.com/alpha-x-team-ofc/web-pair/internal/log"
	"github.com/alpha-x-team-ofc/web-pair/internal/metrics"
	"github.com/alpha-x-team-ofc/web-pair/internal/normalize"
	"github.com/alpha-x-team-ofc/web-pair/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Deps are the collaborators injected into the Coordinator.
type Deps struct {
	Store    *store.MemoryStore
	Provider ports.CredentialProvider
	Dialer   ports.Dialer
	Codec    *export.Codec
	// Now overrides the clock used for record timestamps and sweeps.
	Now func() time.Time
}

// Result is returned by a successful StartPairing.
type Result struct {
	SessionID   string
	PairingCode string
	PhoneNumber string
}

// Coordinator is the pairing entry point. It owns the session store,
// the scheduler and the relay goroutines.
type Coordinator struct {
	conf     Config
	store    *store.MemoryStore
	provider ports.CredentialProvider
	dialer   ports.Dialer
	codec    *export.Codec
	sched    *Scheduler
	workers  *sessionRegistry
	limiter  *rate.Limiter
	now      func() time.Time
	tracer   trace.Tracer
	logger   zerolog.Logger

	admitMu  sync.Mutex
	reserved int

	closing atomic.Bool
}

// NewCoordinator validates conf and wires the coordinator.
func NewCoordinator(conf Config, deps Deps) (*Coordinator, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}
	conf = conf.withDefaults()
	if deps.Provider == nil || deps.Dialer == nil {
		return nil, errors.New("manager: credential provider and dialer are required")
	}
	if deps.Store == nil {
		deps.Store = store.NewMemoryStore()
	}
	if deps.Codec == nil {
		deps.Codec, _ = export.NewCodec(export.FormatJSON)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	c := &Coordinator{
		conf:     conf,
		store:    deps.Store,
		provider: deps.Provider,
		dialer:   deps.Dialer,
		codec:    deps.Codec,
		workers:  &sessionRegistry{},
		now:      deps.Now,
		tracer:   telemetry.Tracer("web-pair/pairing"),
		logger:   log.WithComponent("pairing"),
	}
	if conf.CodeRequestRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(conf.CodeRequestRate), conf.CodeRequestBurst)
	}
	c.sched = newScheduler(conf, c.store, c.provider, c.workers, c.now)
	c.sched.onClose = c.initiateClose
	return c, nil
}

// Scheduler exposes the cleanup scheduler (sweeps, releases).
func (c *Coordinator) Scheduler() *Scheduler { return c.sched }

// Store exposes the live session registry.
func (c *Coordinator) Store() *store.MemoryStore { return c.store }

// ActiveSessions returns the number of live sessions.
func (c *Coordinator) ActiveSessions() int { return c.store.Len() }

// Draining reports whether Shutdown has started.
func (c *Coordinator) Draining() bool { return c.closing.Load() }

// MaxSessions is the configured live-session cap, 0 when unlimited.
func (c *Coordinator) MaxSessions() int { return c.conf.MaxSessions }

// StartPairing validates rawNumber, opens a connection against fresh
// credential storage and requests a pairing code. On success the session is
// registered in state code_issued with its expiry armed and its relay running.
// Every other exit releases whatever was allocated.
func (c *Coordinator) StartPairing(ctx context.Context, rawNumber string) (res Result, err error) {
	ctx, span := c.tracer.Start(ctx, "pairing.start")
	defer func() {
		outcome := Outcome(err)
		metrics.RecordPairingRequest(outcome)
		span.SetAttributes(telemetry.PairingAttributes(res.SessionID, outcome)...)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(telemetry.ErrorAttributes(outcome)...)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	if c.closing.Load() {
		return Result{}, ErrShuttingDown
	}

	digits := normalize.Digits(rawNumber)
	if strings.TrimSpace(rawNumber) == "" {
		return Result{}, fmt.Errorf("%w: phone number is required", ErrInvalidNumber)
	}
	if !normalize.ValidPhoneLength(digits) {
		return Result{}, fmt.Errorf("%w: got %d digits, want %d-%d",
			ErrInvalidNumber, len(digits), normalize.MinPhoneDigits, normalize.MaxPhoneDigits)
	}

	if err := c.reserve(); err != nil {
		return Result{}, err
	}
	defer c.unreserve()

	now := c.now()
	id, err := model.NewSessionID(now)
	if err != nil {
		return Result{}, fmt.Errorf("%w: allocate session id: %w", ErrSetupFailed, err)
	}
	logger := c.logger.With().Str(log.FieldSessionID, id).Str(log.FieldPhone, log.MaskPhone(digits)).Logger()
	ctx = log.ContextWithSessionID(ctx, id)

	creds, err := c.provider.Open(ctx, id)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "pairing.setup_failed").Msg("credential storage allocation failed")
		return Result{}, fmt.Errorf("%w: open credential storage: %w", ErrSetupFailed, err)
	}
	conn, err := c.dialer.Open(ctx, creds)
	if err != nil {
		releaseHandles(context.WithoutCancel(ctx), logger, nil, creds)
		logger.Error().Err(err).Str(log.FieldEvent, "pairing.setup_failed").Msg("protocol connection failed")
		return Result{}, fmt.Errorf("%w: open connection: %w", ErrSetupFailed, err)
	}

	// From here on, every exit that does not register a record releases both.
	registered := false
	defer func() {
		if !registered {
			releaseHandles(context.WithoutCancel(ctx), logger, conn, creds)
		}
	}()

	if conn.Registered() {
		logger.Warn().Str(log.FieldEvent, "pairing.already_registered").Msg("account already registered")
		return Result{}, ErrAlreadyRegistered
	}

	if err := sleepCtx(ctx, c.conf.CodeRequestDelay); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPairingRequestFailed, err)
	}

	code, phone, err := c.requestCode(ctx, logger, conn, digits)
	if err != nil {
		return Result{}, err
	}

	rec := &model.SessionRecord{
		PhoneNumber: phone,
		State:       model.StateInit,
		CreatedAt:   now,
		UpdatedAt:   now,
		Conn:        conn,
		Creds:       creds,
	}
	if _, err := lifecycle.Dispatch(rec, lifecycle.EvCodeIssued, c.now()); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	rec.PairingCode = code

	if c.closing.Load() {
		return Result{}, ErrShuttingDown
	}
	if err := c.store.Create(ctx, id, rec); err != nil {
		return Result{}, fmt.Errorf("%w: register session: %w", ErrSetupFailed, err)
	}
	registered = true
	metrics.RecordTransition(string(model.StateInit), string(model.StateCodeIssued))
	metrics.SetSessionsActive(c.store.Len())

	gen := rec.Generation
	relayCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.sched.track(id, gen, cancel)
	c.sched.ArmExpiry(id, gen)
	if live, err := c.store.Get(ctx, id); err != nil || live.Generation != gen {
		// Released (shutdown) before the tasks were tracked.
		c.sched.cancelAll(id, gen)
		return Result{}, ErrShuttingDown
	}
	if !c.workers.Go(func() { c.relay(relayCtx, id, gen, conn) }) {
		c.sched.Advance(context.WithoutCancel(ctx), id, gen, lifecycle.EvShutdown)
		c.sched.cancelAll(id, gen)
		return Result{}, ErrShuttingDown
	}

	logger.Info().
		Str(log.FieldNewState, string(model.StateCodeIssued)).
		Dur("ttl", c.conf.SessionTTL).
		Str(log.FieldEvent, "pairing.code_issued").
		Msg("pairing code issued")

	return Result{SessionID: id, PairingCode: code, PhoneNumber: phone}, nil
}

// requestCode asks for a pairing code, retrying exactly once with the
// default country code prepended when the first request is rejected.
func (c *Coordinator) requestCode(ctx context.Context, logger zerolog.Logger, conn ports.Connection, digits string) (code, phone string, err error) {
	code, firstErr := c.requestOnce(ctx, conn, digits)
	if firstErr == nil {
		return code, digits, nil
	}
	if ctx.Err() != nil {
		return "", "", fmt.Errorf("%w: %w", ErrPairingRequestFailed, firstErr)
	}

	retry := normalize.WithCountryCode(digits, c.conf.DefaultCountryCode)
	if len(retry) > normalize.MaxPhoneDigits {
		retry = digits
	}
	metrics.RecordPairingRetry()
	logger.Warn().Err(firstErr).
		Int(log.FieldAttempt, 2).
		Str(log.FieldPhone, log.MaskPhone(retry)).
		Str(log.FieldEvent, "pairing.code_retry").
		Msg("pairing code request rejected, retrying with default country code")

	code, err = c.requestOnce(ctx, conn, retry)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "pairing.code_failed").Msg("pairing code request failed after retry")
		return "", "", fmt.Errorf("%w: %w", ErrPairingRequestFailed, err)
	}
	return code, retry, nil
}

func (c *Coordinator) requestOnce(ctx context.Context, conn ports.Connection, phone string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	code, err := conn.RequestPairingCode(ctx, phone)
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", errors.New("empty pairing code")
	}
	return code, nil
}

func (c *Coordinator) reserve() error {
	c.admitMu.Lock()
	defer c.admitMu.Unlock()
	if c.conf.MaxSessions > 0 && c.store.Len()+c.reserved >= c.conf.MaxSessions {
		return fmt.Errorf("%w: limit %d", ErrCapacityExceeded, c.conf.MaxSessions)
	}
	c.reserved++
	return nil
}

func (c *Coordinator) unreserve() {
	c.admitMu.Lock()
	c.reserved--
	c.admitMu.Unlock()
}

// Sweep runs one sweep pass; it backs the operational cleanup endpoint.
func (c *Coordinator) Sweep(ctx context.Context) (SweepResult, error) {
	return c.sched.SweepOnce(ctx)
}

// Shutdown refuses new pairings, releases every live session and waits for
// relays and fired timers to drain, bounded by ctx.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}
	c.workers.Close()

	released := 0
	for _, rec := range c.store.List(ctx) {
		if _, err := c.sched.Advance(ctx, rec.ID, rec.Generation, lifecycle.EvShutdown); err == nil {
			released++
		} else if c.sched.Release(ctx, rec.ID, rec.Generation) {
			released++
		}
	}
	c.logger.Info().Int("released", released).Str(log.FieldEvent, "pairing.shutdown").Msg("released live sessions")

	return c.workers.Wait(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
