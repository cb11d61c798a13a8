// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports declares the boundaries between the pairing domain and the
// infrastructure it drives: the messaging-protocol client and the durable
// credential storage. Implementations live outside the domain.
package ports

import "context"

// EventKind enumerates the connection lifecycle signals the domain reacts to.
type EventKind int

const (
	EventUnknown EventKind = iota
	// EventCodeAvailable is emitted when the protocol has a pairing code ready.
	EventCodeAvailable
	// EventLinkOpened is emitted once the account is linked and the connection is usable.
	EventLinkOpened
	// EventLinkClosed is emitted when the connection closes; Err carries the reason if any.
	EventLinkClosed
	// EventUnlinkedCode is an interim signal (e.g. a QR refresh) while still unlinked.
	EventUnlinkedCode
)

func (k EventKind) String() string {
	switch k {
	case EventCodeAvailable:
		return "code_available"
	case EventLinkOpened:
		return "link_opened"
	case EventLinkClosed:
		return "link_closed"
	case EventUnlinkedCode:
		return "unlinked_code"
	default:
		return "unknown"
	}
}

// Event is a single connection lifecycle signal.
type Event struct {
	Kind EventKind
	Code string
	Err  error
}

// Dialer opens protocol connections backed by a credential store.
type Dialer interface {
	Open(ctx context.Context, creds CredentialStore) (Connection, error)
}

// Connection is an opened messaging-protocol connection.
//
// Events is closed by the implementation once the connection is fully shut
// down. Close must be idempotent.
type Connection interface {
	// Registered reports whether the credentials already belong to a linked account.
	Registered() bool
	RequestPairingCode(ctx context.Context, phone string) (string, error)
	Events() <-chan Event
	// SelfID is the linked account's own address; empty until linked.
	SelfID() string
	Send(ctx context.Context, recipient, text string) error
	Close() error
}
