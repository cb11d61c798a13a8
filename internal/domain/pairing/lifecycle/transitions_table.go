// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import "github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"

// Transition is a single allowed edge in the lifecycle state machine.
type Transition struct {
	From   model.State
	To     model.State
	Event  EventKind
	Reason model.ReasonCode
}

// Decision records whether a transition is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

var transitionsTable = []Transition{
	// Happy path
	{From: model.StateInit, To: model.StateCodeIssued, Event: EvCodeIssued},
	{From: model.StateCodeIssued, To: model.StateConnected, Event: EvLinkOpened},
	{From: model.StateConnected, To: model.StateExported, Event: EvExportDone},
	{From: model.StateExported, To: model.StateClosing, Event: EvCloseInitiated},
	{From: model.StateClosing, To: model.StateClosed, Event: EvClosed, Reason: model.RCompleted},

	// Link dropped underneath us
	{From: model.StateCodeIssued, To: model.StateFailed, Event: EvLinkClosed, Reason: model.RLinkClosed},
	{From: model.StateExported, To: model.StateClosing, Event: EvLinkClosed, Reason: model.RLinkClosed},

	// Per-session expiry: only before the export ran
	{From: model.StateInit, To: model.StateFailed, Event: EvExpired, Reason: model.RExpired},
	{From: model.StateCodeIssued, To: model.StateFailed, Event: EvExpired, Reason: model.RExpired},
	{From: model.StateConnected, To: model.StateFailed, Event: EvExpired, Reason: model.RExpired},

	// Sweep safety net: any live state. Unexported sessions count as expired.
	{From: model.StateInit, To: model.StateFailed, Event: EvSwept, Reason: model.RExpired},
	{From: model.StateCodeIssued, To: model.StateFailed, Event: EvSwept, Reason: model.RExpired},
	{From: model.StateConnected, To: model.StateFailed, Event: EvSwept, Reason: model.RExpired},
	{From: model.StateExported, To: model.StateClosed, Event: EvSwept, Reason: model.RSwept},
	{From: model.StateClosing, To: model.StateClosed, Event: EvSwept, Reason: model.RSwept},

	// Process shutdown
	{From: model.StateInit, To: model.StateFailed, Event: EvShutdown, Reason: model.RShutdown},
	{From: model.StateCodeIssued, To: model.StateFailed, Event: EvShutdown, Reason: model.RShutdown},
	{From: model.StateConnected, To: model.StateFailed, Event: EvShutdown, Reason: model.RShutdown},
	{From: model.StateExported, To: model.StateClosed, Event: EvShutdown, Reason: model.RShutdown},
	{From: model.StateClosing, To: model.StateClosed, Event: EvShutdown, Reason: model.RShutdown},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from model.State, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
