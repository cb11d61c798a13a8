// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import "errors"

// Caller-visible failure classes of StartPairing.
var (
	ErrInvalidNumber        = errors.New("invalid phone number")
	ErrAlreadyRegistered    = errors.New("account already registered")
	ErrPairingRequestFailed = errors.New("pairing code request failed")
	ErrSetupFailed          = errors.New("session setup failed")
	ErrCapacityExceeded     = errors.New("too many active pairing sessions")
	ErrShuttingDown         = errors.New("pairing service is shutting down")
)

// Failure classes that are only ever logged.
var (
	ErrDeliveryFailed = errors.New("session export delivery failed")
	ErrCleanupFailed  = errors.New("session cleanup failed")
)

// errStale marks an event or timer aimed at a record that was replaced by a
// later session reusing the id.
var errStale = errors.New("stale session generation")

// Outcome maps a StartPairing error to a bounded metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidNumber):
		return "invalid_number"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ErrShuttingDown):
		return "shutting_down"
	case errors.Is(err, ErrSetupFailed):
		return "setup_failed"
	default:
		return "failed"
	}
}
