// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"errors"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/store"
)

// Status is a point-in-time view of one session.
type Status struct {
	SessionID string
	// Active is false when the id is not live. State and Reason are then
	// filled only if the session ended recently.
	Active         bool
	State          model.State
	Reason         model.ReasonCode
	PairingCode    string
	Age            time.Duration
	FilesCount     int
	HasCredentials bool
	Connected      bool
	EndedAt        time.Time
}

// Status reports the live state of id. An unknown id is not an error.
func (c *Coordinator) Status(ctx context.Context, id string) (Status, error) {
	rec, err := c.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		st := Status{SessionID: id}
		if e, ok := c.sched.ended.get(id); ok {
			st.State = e.State
			st.Reason = e.Reason
			st.EndedAt = e.EndedAt
		}
		return st, nil
	}
	if err != nil {
		return Status{}, err
	}

	st := Status{
		SessionID:   id,
		Active:      true,
		State:       rec.State,
		Reason:      rec.Reason,
		PairingCode: rec.PairingCode,
		Age:         rec.Age(c.now()),
	}
	switch rec.State {
	case model.StateConnected, model.StateExported:
		st.Connected = true
	}
	if rec.Creds != nil {
		frags, err := rec.Creds.List(ctx)
		if err != nil {
			return Status{}, err
		}
		st.FilesCount = len(frags)
		st.HasCredentials = len(frags) > 0
	}
	return st, nil
}
