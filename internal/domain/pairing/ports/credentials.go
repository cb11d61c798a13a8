// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ports

import (
	"context"
	"errors"
	"time"
)

// ErrFragmentNotFound is returned by CredentialStore.Get for unknown names.
var ErrFragmentNotFound = errors.New("credential fragment not found")

// ErrStoreDeleted is returned by CredentialStore.Put after Delete.
var ErrStoreDeleted = errors.New("credential store deleted")

// Fragment is one named unit of persisted credential material.
type Fragment struct {
	Name string
	Data []byte
}

// CredentialStore is the per-session fragment storage a protocol connection
// writes its authentication state into.
type CredentialStore interface {
	SessionID() string
	// Put fails with ErrStoreDeleted once Delete has run.
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns every fragment, sorted by name.
	List(ctx context.Context) ([]Fragment, error)
	// Delete removes every fragment of the session. Deleting twice is not an error.
	Delete(ctx context.Context) error
}

// StorageInfo describes the persisted storage of one session.
type StorageInfo struct {
	SessionID string
	UpdatedAt time.Time
}

// CredentialProvider allocates CredentialStores and enumerates what is persisted.
type CredentialProvider interface {
	// Backend names the implementation ("fs", "badger", ...).
	Backend() string
	Open(ctx context.Context, sessionID string) (CredentialStore, error)
	// Sessions lists every session that currently has persisted fragments.
	Sessions(ctx context.Context) ([]StorageInfo, error)
	// Purge deletes all fragments of sessionID. Purging unknown ids is not an error.
	Purge(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
	Close() error
}
