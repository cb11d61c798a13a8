// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
)

var (
	// ErrTerminal is returned for any event on a Closed or Failed record.
	ErrTerminal = errors.New("session is terminal")
	// ErrIllegalTransition is returned when the decision table forbids the event.
	ErrIllegalTransition = errors.New("illegal transition")
)

// Dispatch resolves the transition for ev and applies it to rec.
// Forbidden events leave rec untouched; the returned error wraps
// ErrTerminal or ErrIllegalTransition and carries the forbid reason.
func Dispatch(rec *model.SessionRecord, ev EventKind, now time.Time) (Transition, error) {
	if rec.State.IsTerminal() {
		return Transition{}, fmt.Errorf("%w: %s + %s", ErrTerminal, rec.State, ev)
	}

	decision, ok := DecisionFor(rec.State, ev)
	if !ok || !decision.Allowed {
		return Transition{}, fmt.Errorf("%w: %s + %s (%s)", ErrIllegalTransition, rec.State, ev, decision.Reason)
	}
	tr, ok := TransitionFor(rec.State, ev)
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s + %s (missing edge)", ErrIllegalTransition, rec.State, ev)
	}

	ApplyTransition(rec, tr, now)
	return tr, nil
}

// ApplyTransition mutates the session record according to the transition.
func ApplyTransition(rec *model.SessionRecord, tr Transition, now time.Time) {
	rec.State = tr.To
	if tr.Reason != model.RNone {
		rec.Reason = tr.Reason
	}
	rec.UpdatedAt = now
}

// IsIgnorable reports whether err only means the event arrived late or out of
// order, which callers log and drop.
func IsIgnorable(err error) bool {
	return errors.Is(err, ErrTerminal) || errors.Is(err, ErrIllegalTransition)
}
