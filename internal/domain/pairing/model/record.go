// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
)

// SessionRecord is the live state of one pairing attempt.
//
// Conn and Creds are owned exclusively by the record; whoever removes the
// record from the store is responsible for releasing both exactly once.
type SessionRecord struct {
	ID          string
	PhoneNumber string
	State       State
	Reason      ReasonCode
	PairingCode string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Generation is assigned by the store on create and distinguishes a
	// record from a later one that reuses the same ID.
	Generation uint64

	Conn  ports.Connection
	Creds ports.CredentialStore
}

// Clone returns a shallow copy; handles are shared, scalar fields are not.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Age returns how long the session has existed at now.
func (r *SessionRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
