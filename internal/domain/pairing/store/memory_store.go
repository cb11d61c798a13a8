// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store holds the registry of live pairing sessions.
package store

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
)

// MemoryStore is the concurrency-safe registry of live SessionRecords.
// Live sessions are in-memory only; a restart drops them.
//
// Records handed out are copies. Mutations go through Update so that
// state changes and removal are serialized per store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.SessionRecord
	gen      uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.SessionRecord),
	}
}

// Create registers rec under id. It fails with ErrDuplicateID if id is live.
// The assigned generation is written back into rec.
func (m *MemoryStore) Create(_ context.Context, id string, rec *model.SessionRecord) error {
	if rec == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return ErrDuplicateID
	}
	m.gen++
	rec.ID = id
	rec.Generation = m.gen
	m.sessions[id] = rec.Clone()
	return nil
}

// Get returns a copy of the record or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Update applies fn to a copy of the record and stores the copy if fn
// returns nil. The error from fn is returned unchanged.
func (m *MemoryStore) Update(_ context.Context, id string, fn func(*model.SessionRecord) error) (*model.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := rec.Clone()
	if err := fn(cp); err != nil {
		return nil, err
	}
	cp.ID = rec.ID
	cp.Generation = rec.Generation
	m.sessions[id] = cp
	return cp.Clone(), nil
}

// Delete removes and returns the record. Deleting an absent id is a no-op
// and reports false; exactly one concurrent caller observes true.
func (m *MemoryStore) Delete(_ context.Context, id string) (*model.SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	delete(m.sessions, id)
	return rec, true
}

// DeleteGeneration removes the record only if it still carries gen.
// Stale timers use it so they never remove a later session reusing the id.
func (m *MemoryStore) DeleteGeneration(_ context.Context, id string, gen uint64) (*model.SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[id]
	if !ok || rec.Generation != gen {
		return nil, false
	}
	delete(m.sessions, id)
	return rec, true
}

// ListExpired yields ids whose age at now exceeds ttl. Each iteration takes
// a fresh snapshot, so the sequence can be ranged over again and callers may
// delete while ranging.
func (m *MemoryStore) ListExpired(_ context.Context, now time.Time, ttl time.Duration) iter.Seq[string] {
	return func(yield func(string) bool) {
		m.mu.RLock()
		ids := make([]string, 0, len(m.sessions))
		for id, rec := range m.sessions {
			if rec.Age(now) > ttl {
				ids = append(ids, id)
			}
		}
		m.mu.RUnlock()

		sort.Strings(ids)
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// List returns copies of all live records ordered by creation time.
func (m *MemoryStore) List(_ context.Context) []*model.SessionRecord {
	m.mu.RLock()
	out := make([]*model.SessionRecord, 0, len(m.sessions))
	for _, rec := range m.sessions {
		out = append(out, rec.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Has reports whether id is live.
func (m *MemoryStore) Has(_ context.Context, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
