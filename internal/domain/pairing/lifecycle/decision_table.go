// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import "github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"

const (
	ForbiddenTerminalAbsorbing = "terminal_absorbing"
	ForbiddenOutOfOrder        = "out_of_order"
	ForbiddenAlreadyInState    = "already_in_state"
	ForbiddenAlreadyExported   = "already_exported"
	ForbiddenExportOwnsClose   = "export_owns_teardown"
	ForbiddenCloseInProgress   = "close_in_progress"
)

func allowed() Decision        { return Decision{Allowed: true} }
func forbid(r string) Decision { return Decision{Allowed: false, Reason: r} }

func terminalRow() map[EventKind]Decision {
	row := make(map[EventKind]Decision, len(AllEvents))
	for _, ev := range AllEvents {
		row[ev] = forbid(ForbiddenTerminalAbsorbing)
	}
	return row
}

// decisionTable defines an explicit decision for every State×Event combination.
var decisionTable = map[model.State]map[EventKind]Decision{
	model.StateInit: {
		EvCodeIssued:     allowed(),
		EvLinkOpened:     forbid(ForbiddenOutOfOrder),
		EvLinkClosed:     forbid(ForbiddenOutOfOrder),
		EvExportDone:     forbid(ForbiddenOutOfOrder),
		EvCloseInitiated: forbid(ForbiddenOutOfOrder),
		EvClosed:         forbid(ForbiddenOutOfOrder),
		EvExpired:        allowed(),
		EvSwept:          allowed(),
		EvShutdown:       allowed(),
	},
	model.StateCodeIssued: {
		EvCodeIssued:     forbid(ForbiddenAlreadyInState),
		EvLinkOpened:     allowed(),
		EvLinkClosed:     allowed(),
		EvExportDone:     forbid(ForbiddenOutOfOrder),
		EvCloseInitiated: forbid(ForbiddenOutOfOrder),
		EvClosed:         forbid(ForbiddenOutOfOrder),
		EvExpired:        allowed(),
		EvSwept:          allowed(),
		EvShutdown:       allowed(),
	},
	model.StateConnected: {
		EvCodeIssued:     forbid(ForbiddenOutOfOrder),
		EvLinkOpened:     forbid(ForbiddenAlreadyInState),
		EvLinkClosed:     forbid(ForbiddenExportOwnsClose),
		EvExportDone:     allowed(),
		EvCloseInitiated: forbid(ForbiddenOutOfOrder),
		EvClosed:         forbid(ForbiddenOutOfOrder),
		EvExpired:        allowed(),
		EvSwept:          allowed(),
		EvShutdown:       allowed(),
	},
	model.StateExported: {
		EvCodeIssued:     forbid(ForbiddenOutOfOrder),
		EvLinkOpened:     forbid(ForbiddenOutOfOrder),
		EvLinkClosed:     allowed(),
		EvExportDone:     forbid(ForbiddenAlreadyInState),
		EvCloseInitiated: allowed(),
		EvClosed:         forbid(ForbiddenOutOfOrder),
		EvExpired:        forbid(ForbiddenAlreadyExported),
		EvSwept:          allowed(),
		EvShutdown:       allowed(),
	},
	model.StateClosing: {
		EvCodeIssued:     forbid(ForbiddenOutOfOrder),
		EvLinkOpened:     forbid(ForbiddenOutOfOrder),
		EvLinkClosed:     forbid(ForbiddenCloseInProgress),
		EvExportDone:     forbid(ForbiddenOutOfOrder),
		EvCloseInitiated: forbid(ForbiddenAlreadyInState),
		EvClosed:         allowed(),
		EvExpired:        forbid(ForbiddenAlreadyExported),
		EvSwept:          allowed(),
		EvShutdown:       allowed(),
	},
	model.StateClosed: terminalRow(),
	model.StateFailed: terminalRow(),
}

// DecisionFor returns the decision for a given state+event.
func DecisionFor(from model.State, ev EventKind) (Decision, bool) {
	row, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := row[ev]
	return d, ok
}

// ForbiddenTransitionReason documents why a transition is disallowed.
func ForbiddenTransitionReason(from model.State, ev EventKind) string {
	decision, ok := DecisionFor(from, ev)
	if !ok || decision.Allowed {
		return ""
	}
	return decision.Reason
}
