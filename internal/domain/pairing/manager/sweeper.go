// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/lifecycle"
	"github.com/alpha-x-team-ofc/web-pair/internal/log"
	"github.com/alpha-x-team-ofc/web-pair/internal/metrics"
)

// SweepResult reports one sweep pass.
type SweepResult struct {
	Removed       int
	Remaining     int
	OrphansPurged int
}

// SweepOnce force-releases every live record older than the session TTL,
// regardless of state, and purges orphaned credential storage. Passes are
// serialized; a second pass right after the first finds nothing to do.
func (s *Scheduler) SweepOnce(ctx context.Context) (SweepResult, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	now := s.now()
	var res SweepResult

	for id := range s.store.ListExpired(ctx, now, s.conf.SessionTTL) {
		if ctx.Err() != nil {
			break
		}
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			continue // released since the snapshot
		}
		tr, err := s.Advance(ctx, id, rec.Generation, lifecycle.EvSwept)
		switch {
		case err == nil && tr.To.IsTerminal():
			res.Removed++
		case rec.State.IsTerminal() && s.Release(ctx, id, rec.Generation):
			// Terminal but never removed: finish the job.
			res.Removed++
		}
	}

	purged, err := s.purgeOrphans(ctx, now)
	res.OrphansPurged = purged
	res.Remaining = s.store.Len()

	metrics.RecordSweep(res.Removed, res.OrphansPurged)
	if res.Removed > 0 || res.OrphansPurged > 0 {
		s.logger.Info().
			Int("removed", res.Removed).
			Int("remaining", res.Remaining).
			Int("orphans_purged", res.OrphansPurged).
			Str(log.FieldEvent, "sweep.completed").
			Msg("sweep removed expired sessions")
	}
	return res, err
}

// purgeOrphans deletes credential storage with no live record once it is
// older than the storage retention.
func (s *Scheduler) purgeOrphans(ctx context.Context, now time.Time) (int, error) {
	if s.conf.StorageRetention <= 0 || s.provider == nil {
		return 0, nil
	}
	infos, err := s.provider.Sessions(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldEvent, "sweep.scan_failed").Msg("credential storage scan failed")
		return 0, err
	}

	purged := 0
	for _, info := range infos {
		if s.store.Has(ctx, info.SessionID) {
			continue
		}
		if now.Sub(info.UpdatedAt) <= s.conf.StorageRetention {
			continue
		}
		if err := s.provider.Purge(ctx, info.SessionID); err != nil {
			metrics.RecordCleanupFailure("storage")
			s.logger.Warn().Err(err).
				Str(log.FieldSessionID, info.SessionID).
				Str(log.FieldEvent, "cleanup.failed").
				Msg("orphaned storage purge failed")
			continue
		}
		purged++
		s.logger.Info().
			Str(log.FieldSessionID, info.SessionID).
			Time("updated_at", info.UpdatedAt).
			Str(log.FieldEvent, "sweep.orphan_purged").
			Msg("purged orphaned credential storage")
	}
	return purged, nil
}

// Sweeper runs SweepOnce on a fixed interval.
type Sweeper struct {
	Sched    *Scheduler
	Interval time.Duration
}

// Run starts the sweeper loop. It returns when ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.L().Info().Dur("interval", s.Interval).Str(log.FieldEvent, "sweep.started").Msg("background sweeper started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sched.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				log.L().Warn().Err(err).Str(log.FieldEvent, "sweep.failed").Msg("sweep pass failed")
			}
		}
	}
}
