// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

// EventKind is a domain event in the pairing lifecycle.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvCodeIssued
	EvLinkOpened
	EvLinkClosed
	EvExportDone
	EvCloseInitiated
	EvClosed
	EvExpired // per-session expiry timer
	EvSwept   // periodic sweep found the record past TTL
	EvShutdown
)

// AllEvents lists every event kind the tables must cover.
var AllEvents = []EventKind{
	EvCodeIssued,
	EvLinkOpened,
	EvLinkClosed,
	EvExportDone,
	EvCloseInitiated,
	EvClosed,
	EvExpired,
	EvSwept,
	EvShutdown,
}

func (e EventKind) String() string {
	switch e {
	case EvCodeIssued:
		return "code_issued"
	case EvLinkOpened:
		return "link_opened"
	case EvLinkClosed:
		return "link_closed"
	case EvExportDone:
		return "export_done"
	case EvCloseInitiated:
		return "close_initiated"
	case EvClosed:
		return "closed"
	case EvExpired:
		return "expired"
	case EvSwept:
		return "swept"
	case EvShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
