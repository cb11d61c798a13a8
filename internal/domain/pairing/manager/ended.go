// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"sync"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
)

type endedSession struct {
	ID      string
	State   model.State
	Reason  model.ReasonCode
	EndedAt time.Time
}

// endedLog remembers how the most recent sessions ended so the status
// endpoint can explain a not_found. Bounded; oldest entries fall out first.
type endedLog struct {
	mu    sync.Mutex
	max   int
	order []string
	byID  map[string]endedSession
}

func newEndedLog(max int) *endedLog {
	return &endedLog{max: max, byID: make(map[string]endedSession, max)}
}

func (l *endedLog) add(e endedSession) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[e.ID]; !ok {
		l.order = append(l.order, e.ID)
	}
	l.byID[e.ID] = e
	for len(l.order) > l.max {
		delete(l.byID, l.order[0])
		l.order = l.order[1:]
	}
}

func (l *endedLog) get(id string) (endedSession, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.byID[id]
	return e, ok
}
