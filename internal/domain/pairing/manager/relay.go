// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/lifecycle"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/alpha-x-team-ofc/web-pair/internal/export"
	"github.com/alpha-x-team-ofc/web-pair/internal/log"
	"github.com/alpha-x-team-ofc/web-pair/internal/metrics"
	"github.com/rs/zerolog"
)

// relay consumes the connection's event stream for one session and drives
// its state machine. It returns when the stream ends or the session is
// released.
func (c *Coordinator) relay(ctx context.Context, id string, gen uint64, conn ports.Connection) {
	logger := log.WithComponent("relay").With().Str(log.FieldSessionID, id).Logger()
	events := conn.Events()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// Stream ended without a close event.
				c.linkClosed(ctx, id, gen)
				return
			}
			c.handleEvent(ctx, logger, id, gen, conn, ev)
		}
	}
}

func (c *Coordinator) handleEvent(ctx context.Context, logger zerolog.Logger, id string, gen uint64, conn ports.Connection, ev ports.Event) {
	switch ev.Kind {
	case ports.EventCodeAvailable:
		logger.Debug().Str(log.FieldEvent, "connection.code_available").Msg("pairing code available")

	case ports.EventUnlinkedCode:
		logger.Info().Str(log.FieldEvent, "connection.unlinked_code").Msg("waiting for the code to be entered")

	case ports.EventLinkOpened:
		if _, err := c.sched.Advance(ctx, id, gen, lifecycle.EvLinkOpened); err != nil {
			return
		}
		logger.Info().Str(log.FieldEvent, "connection.linked").Msg("account linked")
		c.exportSession(ctx, logger, id, gen, conn)

	case ports.EventLinkClosed:
		ll := logger.Info()
		if ev.Err != nil {
			ll = logger.Warn().Err(ev.Err)
		}
		ll.Str(log.FieldEvent, "connection.closed").Msg("connection closed")

		c.linkClosed(ctx, id, gen)

	default:
		logger.Debug().Str("kind", ev.Kind.String()).Str(log.FieldEvent, "connection.event_ignored").Msg("unhandled connection event")
	}
}

// linkClosed advances a lost link. An exported session moves to closing
// and its storage goes after the grace.
func (c *Coordinator) linkClosed(ctx context.Context, id string, gen uint64) {
	tr, err := c.sched.Advance(ctx, id, gen, lifecycle.EvLinkClosed)
	if err == nil && !tr.To.IsTerminal() {
		c.sched.ArmGrace(id, gen)
	}
}

// exportSession runs once on entering connected: wait for the connection to
// finish persisting, encode every fragment, deliver the export to the linked
// account, then mark the session exported and schedule the close. Delivery
// failure is logged only.
func (c *Coordinator) exportSession(ctx context.Context, logger zerolog.Logger, id string, gen uint64, conn ports.Connection) {
	if err := sleepCtx(ctx, c.conf.StabilizationDelay); err != nil {
		return
	}

	rec, err := c.store.Get(ctx, id)
	if err != nil || rec.Generation != gen {
		return
	}

	if err := c.deliverExport(ctx, logger, rec.ID, rec.CreatedAt, rec.Creds, conn); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "export.delivery_failed").Msg("session export not delivered")
	}
	if ctx.Err() != nil {
		return
	}

	if _, err := c.sched.Advance(ctx, id, gen, lifecycle.EvExportDone); err != nil {
		return
	}
	c.sched.ArmClose(id, gen)
}

func (c *Coordinator) deliverExport(ctx context.Context, logger zerolog.Logger, id string, createdAt time.Time, creds ports.CredentialStore, conn ports.Connection) error {
	frags, err := creds.List(ctx)
	if err != nil {
		metrics.RecordExportDelivery("encode_failed")
		return fmt.Errorf("%w: read credentials: %w", ErrDeliveryFailed, err)
	}
	blob, err := c.codec.Encode(export.Bundle{SessionID: id, CreatedAt: createdAt, Files: frags})
	if err != nil {
		metrics.RecordExportDelivery("encode_failed")
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	recipient := conn.SelfID()
	if recipient == "" {
		metrics.RecordExportDelivery("failed")
		return fmt.Errorf("%w: connection has no account id", ErrDeliveryFailed)
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.conf.SendTimeout)
	defer cancel()
	if err := conn.Send(sendCtx, recipient, export.Message(c.conf.BrandName, id, blob)); err != nil {
		metrics.RecordExportDelivery("failed")
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	metrics.RecordExportDelivery("delivered")
	logger.Info().
		Int(log.FieldFragments, len(frags)).
		Str("format", string(c.codec.Format())).
		Str(log.FieldEvent, "export.delivered").
		Msg("session export delivered")
	return nil
}

// initiateClose fires after the close delay: move to closing, close the
// connection and leave storage to the grace timer.
func (c *Coordinator) initiateClose(ctx context.Context, id string, gen uint64) {
	if _, err := c.sched.Advance(ctx, id, gen, lifecycle.EvCloseInitiated); err != nil {
		return
	}
	rec, err := c.store.Get(ctx, id)
	if err == nil && rec.Generation == gen && rec.Conn != nil {
		if cerr := rec.Conn.Close(); cerr != nil && !errors.Is(cerr, context.Canceled) {
			metrics.RecordCleanupFailure("connection")
			c.logger.Warn().Err(fmt.Errorf("%w: %w", ErrCleanupFailed, cerr)).
				Str(log.FieldSessionID, id).
				Str(log.FieldEvent, "cleanup.failed").
				Msg("connection close failed")
		}
	}
	c.sched.ArmGrace(id, gen)
}
