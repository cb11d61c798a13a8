// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"fmt"
	"sync"
)

// sessionRegistry tracks coordinator-owned goroutines (relays and fired
// timers) and provides a bounded join on shutdown.
type sessionRegistry struct {
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func (r *sessionRegistry) Go(fn func()) bool {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		fn()
	}()

	return true
}

// Close stops accepting new goroutines. Running ones are unaffected.
func (r *sessionRegistry) Close() {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()
}

// Wait blocks until every tracked goroutine returned or ctx is done.
func (r *sessionRegistry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session worker drain timeout: %w", ctx.Err())
	}
}

func (r *sessionRegistry) CloseAndWait(ctx context.Context) error {
	r.Close()
	return r.Wait(ctx)
}
