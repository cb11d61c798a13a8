// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package credstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
)

// MemoryProvider keeps fragments in process memory. Not durable.
type MemoryProvider struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
	closed   bool
	now      clock
}

type memSession struct {
	frags   map[string][]byte
	updated time.Time
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		sessions: make(map[string]*memSession),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for UpdatedAt.
func (p *MemoryProvider) WithClock(now func() time.Time) *MemoryProvider {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
	return p
}

func (p *MemoryProvider) Backend() string { return BackendMemory }

func (p *MemoryProvider) Open(_ context.Context, sid string) (ports.CredentialStore, error) {
	if err := validSessionID(sid); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if _, ok := p.sessions[sid]; !ok {
		p.sessions[sid] = &memSession{frags: make(map[string][]byte), updated: p.now()}
	}
	return &memoryStore{p: p, sid: sid}, nil
}

func (p *MemoryProvider) Sessions(_ context.Context) ([]ports.StorageInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ports.StorageInfo, 0, len(p.sessions))
	for sid, s := range p.sessions {
		out = append(out, ports.StorageInfo{SessionID: sid, UpdatedAt: s.updated})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (p *MemoryProvider) Purge(_ context.Context, sid string) error {
	p.mu.Lock()
	delete(p.sessions, sid)
	p.mu.Unlock()
	return nil
}

func (p *MemoryProvider) Ping(context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	return nil
}

func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type memoryStore struct {
	p   *MemoryProvider
	sid string

	tomb tombstone
}

func (s *memoryStore) SessionID() string { return s.sid }

func (s *memoryStore) Put(ctx context.Context, name string, data []byte) error {
	return s.tomb.write(func() error { return s.put(ctx, name, data) })
}

func (s *memoryStore) put(_ context.Context, name string, data []byte) error {
	if err := validFragmentName(name); err != nil {
		return err
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.p.closed {
		return ErrClosed
	}
	sess, ok := s.p.sessions[s.sid]
	if !ok {
		sess = &memSession{frags: make(map[string][]byte)}
		s.p.sessions[s.sid] = sess
	}
	sess.frags[name] = append([]byte(nil), data...)
	sess.updated = s.p.now()
	return nil
}

func (s *memoryStore) Get(_ context.Context, name string) ([]byte, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	sess, ok := s.p.sessions[s.sid]
	if !ok {
		return nil, ports.ErrFragmentNotFound
	}
	data, ok := sess.frags[name]
	if !ok {
		return nil, ports.ErrFragmentNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *memoryStore) List(_ context.Context) ([]ports.Fragment, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	sess, ok := s.p.sessions[s.sid]
	if !ok {
		return nil, nil
	}
	out := make([]ports.Fragment, 0, len(sess.frags))
	for name, data := range sess.frags {
		out = append(out, ports.Fragment{Name: name, Data: append([]byte(nil), data...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memoryStore) Delete(ctx context.Context) error {
	return s.tomb.delete(func() error { return s.p.Purge(ctx, s.sid) })
}
