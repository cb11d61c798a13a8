// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package credstore implements the per-session credential fragment storage
// the protocol connection persists its authentication state into.
//
// Every backend satisfies ports.CredentialProvider. Fragment names and
// session ids are validated before they reach a path or key so that no
// backend can be coerced into touching another session's data.
package credstore

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
)

const (
	BackendFS     = "fs"
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Backends lists the accepted backend names.
var Backends = []string{BackendFS, BackendMemory, BackendBadger, BackendSQLite, BackendRedis}

var (
	ErrUnknownBackend = errors.New("unknown credential storage backend")
	ErrUnsafeName     = errors.New("unsafe credential fragment name")
	ErrUnsafeSession  = errors.New("unsafe session id")
	ErrClosed         = errors.New("credential storage closed")
)

var fragmentNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@+-]{0,127}$`)

func validSessionID(sid string) error {
	if !model.IsSafeSessionID(sid) {
		return fmt.Errorf("%w: %q", ErrUnsafeSession, sid)
	}
	return nil
}

func validFragmentName(name string) error {
	if !fragmentNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return nil
}

type clock func() time.Time

// tombstone makes a deleted CredentialStore refuse writes, so a connection
// still flushing state cannot recreate storage that was already released.
type tombstone struct {
	mu      sync.RWMutex
	deleted bool
}

func (t *tombstone) write(fn func() error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.deleted {
		return ports.ErrStoreDeleted
	}
	return fn()
}

func (t *tombstone) delete(fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleted = true
	return fn()
}
