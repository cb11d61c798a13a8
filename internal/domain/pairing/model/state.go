// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// State is the lifecycle state of a pairing session.
type State string

const (
	StateInit       State = "init"
	StateCodeIssued State = "code_issued"
	StateConnected  State = "connected"
	StateExported   State = "exported"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// AllStates lists every state in forward order.
var AllStates = []State{
	StateInit,
	StateCodeIssued,
	StateConnected,
	StateExported,
	StateClosing,
	StateClosed,
	StateFailed,
}

// IsTerminal returns true if the state is a final state.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}

// Exported reports whether the credential export already ran for this state.
func (s State) Exported() bool {
	switch s {
	case StateExported, StateClosing, StateClosed:
		return true
	}
	return false
}

// ReasonCode explains why a session reached its current state.
type ReasonCode string

const (
	RNone       ReasonCode = ""
	RCompleted  ReasonCode = "completed"
	RLinkClosed ReasonCode = "link_closed"
	RExpired    ReasonCode = "expired"
	RSwept      ReasonCode = "swept"
	RShutdown   ReasonCode = "shutdown"
)
