// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(created time.Time) *model.SessionRecord {
	return &model.SessionRecord{
		State:       model.StateCodeIssued,
		PhoneNumber: "94712345678",
		PairingCode: "ABCD-EFGH",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := newRecord(time.Now())
	require.NoError(t, s.Create(ctx, "s1", rec))
	assert.Equal(t, "s1", rec.ID)
	assert.NotZero(t, rec.Generation)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "ABCD-EFGH", got.PairingCode)

	// Returned records are copies.
	got.State = model.StateFailed
	again, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StateCodeIssued, again.State)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, "dup", newRecord(time.Now())))
	err := s.Create(ctx, "dup", newRecord(time.Now()))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, "s1", newRecord(time.Now())))

	rec, ok := s.Delete(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, "s1", rec.ID)

	rec, ok = s.Delete(ctx, "s1")
	assert.False(t, ok)
	assert.Nil(t, rec)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_ConcurrentDeleteSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, "race", newRecord(time.Now())))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Delete(ctx, "race"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_DeleteGenerationIgnoresReusedID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := newRecord(time.Now())
	require.NoError(t, s.Create(ctx, "reuse", first))
	_, ok := s.Delete(ctx, "reuse")
	require.True(t, ok)

	second := newRecord(time.Now())
	require.NoError(t, s.Create(ctx, "reuse", second))
	require.NotEqual(t, first.Generation, second.Generation)

	_, ok = s.DeleteGeneration(ctx, "reuse", first.Generation)
	assert.False(t, ok, "stale generation must not remove the new session")
	assert.True(t, s.Has(ctx, "reuse"))

	_, ok = s.DeleteGeneration(ctx, "reuse", second.Generation)
	assert.True(t, ok)
}

func TestMemoryStore_Update(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := newRecord(time.Now())
	require.NoError(t, s.Create(ctx, "s1", rec))

	updated, err := s.Update(ctx, "s1", func(r *model.SessionRecord) error {
		r.State = model.StateConnected
		r.Generation = 999
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.StateConnected, updated.State)
	assert.Equal(t, rec.Generation, updated.Generation, "generation is owned by the store")

	boom := fmt.Errorf("boom")
	_, err = s.Update(ctx, "s1", func(r *model.SessionRecord) error {
		r.State = model.StateFailed
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, _ := s.Get(ctx, "s1")
	assert.Equal(t, model.StateConnected, got.State, "failed update must not be stored")

	_, err = s.Update(ctx, "missing", func(*model.SessionRecord) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.Create(ctx, "old-a", newRecord(now.Add(-20*time.Minute))))
	require.NoError(t, s.Create(ctx, "old-b", newRecord(now.Add(-11*time.Minute))))
	require.NoError(t, s.Create(ctx, "fresh", newRecord(now.Add(-time.Minute))))

	seq := s.ListExpired(ctx, now, 10*time.Minute)

	var first []string
	for id := range seq {
		first = append(first, id)
	}
	assert.Equal(t, []string{"old-a", "old-b"}, first)

	// Deleting while ranging is safe and the sequence is restartable.
	for id := range seq {
		s.Delete(ctx, id)
	}
	var second []string
	for id := range seq {
		second = append(second, id)
	}
	assert.Empty(t, second)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i)
			_ = s.Create(ctx, id, newRecord(time.Now()))
			_, _ = s.Update(ctx, id, func(r *model.SessionRecord) error {
				r.State = model.StateConnected
				return nil
			})
			_ = s.List(ctx)
			for range s.ListExpired(ctx, time.Now(), 0) {
			}
			if i%2 == 0 {
				s.Delete(ctx, id)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, s.Len())
}
