// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/lifecycle"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/store"
	"github.com/alpha-x-team-ofc/web-pair/internal/log"
	"github.com/alpha-x-team-ofc/web-pair/internal/metrics"
	"github.com/rs/zerolog"
)

type timerKind int

const (
	timerExpiry timerKind = iota
	timerClose
	timerGrace
)

func (k timerKind) String() string {
	switch k {
	case timerExpiry:
		return "expiry"
	case timerClose:
		return "close"
	case timerGrace:
		return "grace"
	default:
		return "unknown"
	}
}

// sessionTasks is everything scheduled on behalf of one live record.
type sessionTasks struct {
	gen    uint64
	timers map[timerKind]*time.Timer
	cancel context.CancelFunc // stops the relay
}

// Scheduler owns every timer of every live session and performs the final
// release of a record's handles. Tasks are keyed by session id and
// generation; all of them are cancelled the moment the record leaves the
// store, so a stale timer can never act on a later session reusing the id.
type Scheduler struct {
	conf     Config
	store    *store.MemoryStore
	provider ports.CredentialProvider
	workers  *sessionRegistry
	now      func() time.Time
	logger   zerolog.Logger
	ended    *endedLog

	mu    sync.Mutex
	tasks map[string]*sessionTasks

	// handlers for fired timers, set by the coordinator
	onClose func(ctx context.Context, id string, gen uint64)

	sweepMu sync.Mutex
}

func newScheduler(conf Config, st *store.MemoryStore, provider ports.CredentialProvider, workers *sessionRegistry, now func() time.Time) *Scheduler {
	return &Scheduler{
		conf:     conf,
		store:    st,
		provider: provider,
		workers:  workers,
		now:      now,
		logger:   log.WithComponent("scheduler"),
		ended:    newEndedLog(256),
		tasks:    make(map[string]*sessionTasks),
	}
}

// track registers the task entry of a freshly stored record.
func (s *Scheduler) track(id string, gen uint64, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.tasks[id]; ok {
		stopTasks(old)
	}
	s.tasks[id] = &sessionTasks{gen: gen, timers: make(map[timerKind]*time.Timer), cancel: cancel}
}

// arm (re)schedules a timer of the given kind. It is a no-op when the
// record is no longer tracked under gen.
func (s *Scheduler) arm(id string, gen uint64, kind timerKind, d time.Duration, fire func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.gen != gen {
		return false
	}
	if old, ok := t.timers[kind]; ok {
		old.Stop()
	}
	t.timers[kind] = time.AfterFunc(d, func() {
		if !s.tracked(id, gen) {
			return
		}
		s.workers.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.conf.ReleaseTimeout)
			defer cancel()
			fire(ctx)
		})
	})
	s.logger.Debug().
		Str(log.FieldSessionID, id).
		Str("timer", kind.String()).
		Dur("after", d).
		Str(log.FieldEvent, "timer.armed").
		Msg("timer armed")
	return true
}

func (s *Scheduler) tracked(id string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return ok && t.gen == gen
}

// cancelAll stops every timer and the relay of id if it is still tracked
// under gen.
func (s *Scheduler) cancelAll(id string, gen uint64) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok && t.gen == gen {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	if ok && t.gen == gen {
		stopTasks(t)
	}
}

func stopTasks(t *sessionTasks) {
	for _, timer := range t.timers {
		timer.Stop()
	}
	if t.cancel != nil {
		t.cancel()
	}
}

// ArmExpiry schedules the per-session TTL. Firing forces Failed unless the
// export already ran.
func (s *Scheduler) ArmExpiry(id string, gen uint64) bool {
	return s.arm(id, gen, timerExpiry, s.conf.SessionTTL, func(ctx context.Context) {
		s.Advance(ctx, id, gen, lifecycle.EvExpired)
	})
}

// ArmClose schedules the close of an exported session.
func (s *Scheduler) ArmClose(id string, gen uint64) bool {
	return s.arm(id, gen, timerClose, s.conf.CloseDelay, func(ctx context.Context) {
		if s.onClose != nil {
			s.onClose(ctx, id, gen)
		}
	})
}

// ArmGrace schedules the final release after a close was initiated.
func (s *Scheduler) ArmGrace(id string, gen uint64) bool {
	return s.arm(id, gen, timerGrace, s.conf.CloseGrace, func(ctx context.Context) {
		s.Advance(ctx, id, gen, lifecycle.EvClosed)
	})
}

// Advance applies ev to the live record id/gen. A transition into a
// terminal state releases the record. Late, duplicate and out-of-order
// events are logged and reported through the returned error, which callers
// may ignore.
func (s *Scheduler) Advance(ctx context.Context, id string, gen uint64, ev lifecycle.EventKind) (lifecycle.Transition, error) {
	var tr lifecycle.Transition
	_, err := s.store.Update(ctx, id, func(r *model.SessionRecord) error {
		if r.Generation != gen {
			return errStale
		}
		var derr error
		tr, derr = lifecycle.Dispatch(r, ev, s.now())
		return derr
	})

	logger := s.logger.With().Str(log.FieldSessionID, id).Str("lifecycle_event", ev.String()).Logger()
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errStale), lifecycle.IsIgnorable(err):
		logger.Debug().Err(err).Str(log.FieldEvent, "session.event_ignored").Msg("event ignored")
		return lifecycle.Transition{}, err
	default:
		logger.Error().Err(err).Str(log.FieldEvent, "session.transition_failed").Msg("transition failed")
		return lifecycle.Transition{}, err
	}

	metrics.RecordTransition(string(tr.From), string(tr.To))
	logger.Info().
		Str(log.FieldOldState, string(tr.From)).
		Str(log.FieldNewState, string(tr.To)).
		Str(log.FieldReason, string(tr.Reason)).
		Str(log.FieldEvent, "session.transition").
		Msg("session state changed")

	if tr.To.IsTerminal() {
		s.Release(ctx, id, gen)
	}
	return tr, nil
}

// Release removes id/gen from the store, cancels its tasks, closes the
// connection and deletes the credential storage. Exactly one caller per
// record gets true; every other call is a no-op.
func (s *Scheduler) Release(ctx context.Context, id string, gen uint64) bool {
	rec, ok := s.store.DeleteGeneration(ctx, id, gen)
	if !ok {
		s.logger.Debug().Str(log.FieldSessionID, id).Str(log.FieldEvent, "cleanup.noop").Msg("session already released")
		return false
	}
	s.cancelAll(id, gen)
	s.releaseHandles(rec)

	s.ended.add(endedSession{ID: id, State: rec.State, Reason: rec.Reason, EndedAt: s.now()})
	metrics.RecordSessionEnd(string(rec.State), string(rec.Reason))
	metrics.SetSessionsActive(s.store.Len())
	s.logger.Info().
		Str(log.FieldSessionID, id).
		Str("state", string(rec.State)).
		Str(log.FieldReason, string(rec.Reason)).
		Dur("age", rec.Age(s.now())).
		Str(log.FieldEvent, "session.released").
		Msg("session released")
	return true
}

// releaseHandles never fails the release: errors are logged and counted.
func releaseHandles(ctx context.Context, logger zerolog.Logger, conn ports.Connection, creds ports.CredentialStore) {
	if conn != nil {
		if err := conn.Close(); err != nil {
			metrics.RecordCleanupFailure("connection")
			logger.Warn().Err(fmt.Errorf("%w: close connection: %w", ErrCleanupFailed, err)).
				Str(log.FieldEvent, "cleanup.failed").
				Str("resource", "connection").
				Msg("connection close failed")
		}
	}
	if creds != nil {
		if err := creds.Delete(ctx); err != nil {
			metrics.RecordCleanupFailure("storage")
			logger.Warn().Err(fmt.Errorf("%w: delete storage: %w", ErrCleanupFailed, err)).
				Str(log.FieldEvent, "cleanup.failed").
				Str("resource", "storage").
				Msg("credential storage delete failed")
		}
	}
}

func (s *Scheduler) releaseHandles(rec *model.SessionRecord) {
	// The caller's context may already be cancelled (shutdown, relay exit).
	ctx, cancel := context.WithTimeout(context.Background(), s.conf.ReleaseTimeout)
	defer cancel()
	releaseHandles(ctx, s.logger.With().Str(log.FieldSessionID, rec.ID).Logger(), rec.Conn, rec.Creds)
}

// Pending returns the number of sessions with scheduled tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
