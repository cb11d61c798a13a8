// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/lifecycle"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
	"github.com/alpha-x-team-ofc/web-pair/internal/export"
	"github.com/alpha-x-team-ofc/web-pair/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventually = 2 * time.Second

func waitEnded(t *testing.T, h *harness, id string) Status {
	t.Helper()
	var st Status
	require.Eventually(t, func() bool {
		var err error
		st, err = h.coord.Status(context.Background(), id)
		return err == nil && !st.Active && st.State != ""
	}, eventually, 5*time.Millisecond, "session %s never ended", id)
	return st
}

func TestLifecycle_LinkExportClose(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	res, err := h.coord.StartPairing(context.Background(), "94712345678")
	require.NoError(t, err)

	conn := h.dialer.conn(t, res.SessionID)
	conn.link(t)

	st := waitEnded(t, h, res.SessionID)
	assert.Equal(t, model.StateClosed, st.State)
	assert.Equal(t, model.RCompleted, st.Reason)

	msgs := conn.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], res.SessionID)

	// The delivered blob decodes back to the persisted fragments.
	var blob string
	for _, line := range strings.Split(msgs[0], "\n") {
		if b, err := export.Decode(line); err == nil && b.SessionID == res.SessionID {
			blob = line
		}
	}
	require.NotEmpty(t, blob, "message must carry the export blob")
	bundle, err := export.Decode(blob)
	require.NoError(t, err)
	require.Len(t, bundle.Files, 1)
	assert.Equal(t, "creds.json", bundle.Files[0].Name)

	assert.GreaterOrEqual(t, conn.closeCnt.Load(), int32(1))
	assert.Empty(t, h.storageIDs(t), "storage is deleted after the grace period")
	assert.Equal(t, 0, h.coord.ActiveSessions())
	assert.Equal(t, 0, h.coord.Scheduler().Pending())
}

func TestLifecycle_DeliveryFailureStillCloses(t *testing.T) {
	h := newHarness(t, fastConfig(), &fakeDialer{sendErr: errors.New("socket reset")}, nil)
	res, err := h.coord.StartPairing(context.Background(), "94712345678")
	require.NoError(t, err)

	h.dialer.conn(t, res.SessionID).link(t)

	st := waitEnded(t, h, res.SessionID)
	assert.Equal(t, model.StateClosed, st.State, "delivery failure is not fatal")
	assert.Empty(t, h.storageIDs(t))
}

func TestLifecycle_LinkClosedBeforeConnectedFails(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	res, err := h.coord.StartPairing(context.Background(), "94712345678")
	require.NoError(t, err)

	conn := h.dialer.conn(t, res.SessionID)
	conn.dropLink(errors.New("code expired on device"))

	st := waitEnded(t, h, res.SessionID)
	assert.Equal(t, model.StateFailed, st.State)
	assert.Equal(t, model.RLinkClosed, st.Reason)
	assert.Equal(t, int32(1), conn.closeCnt.Load(), "handle released exactly once")
	assert.Empty(t, h.storageIDs(t))
}

func TestLifecycle_LinkDroppedDuringExport(t *testing.T) {
	conf := fastConfig()
	conf.StabilizationDelay = 50 * time.Millisecond
	h := newHarness(t, conf, nil, nil)
	res, err := h.coord.StartPairing(context.Background(), "94712345678")
	require.NoError(t, err)

	conn := h.dialer.conn(t, res.SessionID)
	conn.link(t)
	require.Eventually(t, func() bool {
		st, _ := h.coord.Status(context.Background(), res.SessionID)
		return st.State == model.StateConnected
	}, eventually, time.Millisecond)
	conn.dropLink(errors.New("phone went offline"))

	st := waitEnded(t, h, res.SessionID)
	assert.Equal(t, model.StateClosed, st.State, "the export sequence owns teardown once connected")
	assert.Empty(t, h.storageIDs(t))
}

func TestLifecycle_StreamEndAfterExportReleasesAfterGrace(t *testing.T) {
	conf := fastConfig()
	conf.StabilizationDelay = 0
	conf.CloseDelay = 200 * time.Millisecond
	conf.CloseGrace = 10 * time.Millisecond
	h := newHarness(t, conf, nil, nil)
	res, err := h.coord.StartPairing(context.Background(), "94712345678")
	require.NoError(t, err)

	conn := h.dialer.conn(t, res.SessionID)
	conn.link(t)
	require.Eventually(t, func() bool {
		st, _ := h.coord.Status(context.Background(), res.SessionID)
		return st.Active && st.State == model.StateExported
	}, eventually, time.Millisecond)

	start := time.Now()
	conn.endStream()

	st := waitEnded(t, h, res.SessionID)
	assert.Equal(t, model.StateClosed, st.State)
	assert.Less(t, time.Since(start), conf.CloseDelay, "released by the grace timer, not the close timer")
	assert.Empty(t, h.storageIDs(t))
	assert.Equal(t, 0, h.coord.ActiveSessions())
	assert.Equal(t, 0, h.coord.Scheduler().Pending())
}

func TestRelay_LogsOneComponentField(t *testing.T) {
	var out syncBuffer
	log.Configure(log.Config{Level: "info", Output: &out})
	t.Cleanup(func() { log.Configure(log.Config{}) })

	conf := fastConfig()
	conf.StabilizationDelay = 0
	h := newHarness(t, conf, nil, nil)
	res, err := h.coord.StartPairing(context.Background(), "94712345678")
	require.NoError(t, err)
	h.dialer.conn(t, res.SessionID).link(t)
	waitEnded(t, h, res.SessionID)

	var linked string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, `"connection.linked"`) {
			linked = line
		}
	}
	require.NotEmpty(t, linked)
	assert.Equal(t, 1, strings.Count(linked, `"component":`), linked)
	assert.Contains(t, linked, `"component":"relay"`)
	assert.Contains(t, linked, res.SessionID)
}

func TestLifecycle_ExpiryFailsUnlinkedSession(t *testing.T) {
	conf := fastConfig()
	conf.SessionTTL = 30 * time.Millisecond
	h := newHarness(t, conf, nil, nil)
	res, err := h.coord.StartPairing(context.Background(), "94712345678")
	require.NoError(t, err)

	st := waitEnded(t, h, res.SessionID)
	assert.Equal(t, model.StateFailed, st.State)
	assert.Equal(t, model.RExpired, st.Reason)
	assert.Equal(t, int32(1), h.dialer.conn(t, res.SessionID).closeCnt.Load())
	assert.Empty(t, h.storageIDs(t))
}

func TestLifecycle_ExpiryDoesNotInterruptExportedSession(t *testing.T) {
	conf := fastConfig()
	conf.SessionTTL = 40 * time.Millisecond
	conf.StabilizationDelay = 0
	conf.CloseDelay = 100 * time.Millisecond
	h := newHarness(t, conf, nil, nil)
	res, err := h.coord.StartPairing(context.Background(), "94712345678")
	require.NoError(t, err)

	h.dialer.conn(t, res.SessionID).link(t)

	st := waitEnded(t, h, res.SessionID)
	assert.Equal(t, model.StateClosed, st.State)
	assert.Equal(t, model.RCompleted, st.Reason)
}

func TestLifecycle_EventsForTerminalSessionAreIgnored(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	res, err := h.coord.StartPairing(context.Background(), "94712345678")
	require.NoError(t, err)
	rec, err := h.coord.Store().Get(context.Background(), res.SessionID)
	require.NoError(t, err)

	_, err = h.coord.Scheduler().Advance(context.Background(), res.SessionID, rec.Generation, lifecycle.EvExpired)
	require.NoError(t, err)

	_, err = h.coord.Scheduler().Advance(context.Background(), res.SessionID, rec.Generation, lifecycle.EvLinkOpened)
	require.Error(t, err, "second event after terminal is reported, not applied")

	st, err := h.coord.Status(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Equal(t, model.StateFailed, st.State)
}

func TestRelease_IsIdempotent(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	res, err := h.coord.StartPairing(context.Background(), "94712345678")
	require.NoError(t, err)
	rec, err := h.coord.Store().Get(context.Background(), res.SessionID)
	require.NoError(t, err)

	sched := h.coord.Scheduler()
	var wg sync.WaitGroup
	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- sched.Release(context.Background(), res.SessionID, rec.Generation)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, int32(1), h.dialer.conn(t, res.SessionID).closeCnt.Load())
	assert.False(t, sched.Release(context.Background(), res.SessionID, rec.Generation))
}

func TestRelease_RacingTimerAndEvent(t *testing.T) {
	for i := 0; i < 20; i++ {
		conf := fastConfig()
		conf.SessionTTL = 5 * time.Millisecond
		h := newHarness(t, conf, nil, nil)
		res, err := h.coord.StartPairing(context.Background(), "94712345678")
		require.NoError(t, err)

		conn := h.dialer.conn(t, res.SessionID)
		time.Sleep(4 * time.Millisecond)
		conn.dropLink(nil)

		waitEnded(t, h, res.SessionID)
		assert.Equal(t, int32(1), conn.closeCnt.Load(), "exactly one release")
	}
}

func TestScheduler_StaleGenerationIsIgnored(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	ctx := context.Background()
	res, err := h.coord.StartPairing(ctx, "94712345678")
	require.NoError(t, err)
	rec, err := h.coord.Store().Get(ctx, res.SessionID)
	require.NoError(t, err)

	_, err = h.coord.Scheduler().Advance(ctx, res.SessionID, rec.Generation+100, lifecycle.EvExpired)
	require.ErrorIs(t, err, errStale)
	assert.False(t, h.coord.Scheduler().Release(ctx, res.SessionID, rec.Generation+100))
	assert.False(t, h.coord.Scheduler().ArmGrace(res.SessionID, rec.Generation+100))

	still, err := h.coord.Store().Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCodeIssued, still.State)
}

func TestScheduler_TimersCancelledWhenRecordLeaves(t *testing.T) {
	h := newHarness(t, fastConfig(), nil, nil)
	ctx := context.Background()
	res, err := h.coord.StartPairing(ctx, "94712345678")
	require.NoError(t, err)
	rec, err := h.coord.Store().Get(ctx, res.SessionID)
	require.NoError(t, err)

	sched := h.coord.Scheduler()
	require.True(t, sched.ArmGrace(res.SessionID, rec.Generation))
	require.True(t, sched.Release(ctx, res.SessionID, rec.Generation))
	assert.Equal(t, 0, sched.Pending())
	assert.False(t, sched.ArmExpiry(res.SessionID, rec.Generation), "nothing can be armed for a released id")
}
