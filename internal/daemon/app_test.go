// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoop struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (l *countingLoop) Run(ctx context.Context) {
	l.started.Add(1)
	<-ctx.Done()
	l.stopped.Add(1)
}

func TestAppRequiresManager(t *testing.T) {
	app := NewApp(zerolog.Nop(), nil, nil)
	require.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestAppRunsLoopsUntilCancelled(t *testing.T) {
	mgr, err := NewManager(testServerConfig(), Deps{Logger: zerolog.Nop(), APIHandler: okHandler()})
	require.NoError(t, err)

	loop := &countingLoop{}
	app := NewApp(zerolog.Nop(), mgr, nil, loop)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	_ = mgr.(*manager).addr()
	require.Eventually(t, func() bool { return loop.started.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, int32(1), loop.stopped.Load())
}
