// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package credstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerFactory func(t *testing.T) ports.CredentialProvider

func backends() map[string]providerFactory {
	return map[string]providerFactory{
		BackendMemory: func(t *testing.T) ports.CredentialProvider {
			return NewMemoryProvider()
		},
		BackendFS: func(t *testing.T) ports.CredentialProvider {
			p, err := NewFSProvider(t.TempDir())
			require.NoError(t, err)
			return p
		},
		BackendBadger: func(t *testing.T) ports.CredentialProvider {
			p, err := OpenBadgerProvider(t.TempDir())
			require.NoError(t, err)
			return p
		},
		BackendSQLite: func(t *testing.T) ports.CredentialProvider {
			p, err := OpenSQLiteProvider(context.Background(), filepath.Join(t.TempDir(), "creds.sqlite"))
			require.NoError(t, err)
			return p
		},
		BackendRedis: func(t *testing.T) ports.CredentialProvider {
			mr := miniredis.RunT(t)
			return newRedisProviderFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		},
	}
}

func sessionIDs(t *testing.T, p ports.CredentialProvider) []string {
	t.Helper()
	infos, err := p.Sessions(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.SessionID)
	}
	return ids
}

func TestProviders_Conformance(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := factory(t)
			defer func() { _ = p.Close() }()

			assert.Equal(t, name, p.Backend())
			require.NoError(t, p.Ping(ctx))

			st, err := p.Open(ctx, "sess-a")
			require.NoError(t, err)
			assert.Equal(t, "sess-a", st.SessionID())
			assert.Contains(t, sessionIDs(t, p), "sess-a", "opened session must be enumerable")

			require.NoError(t, st.Put(ctx, "pre-key-2.json", []byte(`{"k":2}`)))
			require.NoError(t, st.Put(ctx, "creds.json", []byte(`{"me":"x"}`)))
			require.NoError(t, st.Put(ctx, "creds.json", []byte(`{"me":"y"}`)))

			got, err := st.Get(ctx, "creds.json")
			require.NoError(t, err)
			assert.Equal(t, `{"me":"y"}`, string(got))

			_, err = st.Get(ctx, "missing.json")
			assert.ErrorIs(t, err, ports.ErrFragmentNotFound)

			frags, err := st.List(ctx)
			require.NoError(t, err)
			require.Len(t, frags, 2)
			assert.Equal(t, "creds.json", frags[0].Name)
			assert.Equal(t, "pre-key-2.json", frags[1].Name)

			other, err := p.Open(ctx, "sess-b")
			require.NoError(t, err)
			require.NoError(t, other.Put(ctx, "creds.json", []byte("b")))

			require.NoError(t, st.Delete(ctx))
			require.NoError(t, st.Delete(ctx), "second delete is a no-op")
			assert.NotContains(t, sessionIDs(t, p), "sess-a")

			frags, err = st.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, frags)

			// A late write from a connection still flushing must not
			// recreate the deleted session.
			assert.ErrorIs(t, st.Put(ctx, "creds.json", []byte(`{"me":"late"}`)), ports.ErrStoreDeleted)
			assert.NotContains(t, sessionIDs(t, p), "sess-a")

			// Other sessions are untouched.
			data, err := other.Get(ctx, "creds.json")
			require.NoError(t, err)
			assert.Equal(t, "b", string(data))

			require.NoError(t, p.Purge(ctx, "sess-b"))
			require.NoError(t, p.Purge(ctx, "sess-b"))
			assert.Empty(t, sessionIDs(t, p))
		})
	}
}

func TestProviders_RejectUnsafeNames(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := factory(t)
			defer func() { _ = p.Close() }()

			_, err := p.Open(ctx, "../escape")
			assert.ErrorIs(t, err, ErrUnsafeSession)

			st, err := p.Open(ctx, "safe")
			require.NoError(t, err)
			for _, bad := range []string{"", "../creds.json", "a/b", ".hidden"} {
				assert.ErrorIs(t, st.Put(ctx, bad, []byte("x")), ErrUnsafeName, "name %q", bad)
			}
		})
	}
}

func TestProviders_ConcurrentSessions(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := factory(t)
			defer func() { _ = p.Close() }()

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					sid := "sess-" + string(rune('a'+i))
					st, err := p.Open(ctx, sid)
					if !assert.NoError(t, err) {
						return
					}
					assert.NoError(t, st.Put(ctx, "creds.json", []byte(sid)))
					if i%2 == 0 {
						assert.NoError(t, st.Delete(ctx))
					}
				}(i)
			}
			wg.Wait()
			assert.Len(t, sessionIDs(t, p), 4)
		})
	}
}

func TestProviders_WritesRacingDeleteDoNotResurrect(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := factory(t)
			defer func() { _ = p.Close() }()

			st, err := p.Open(ctx, "sess-race")
			require.NoError(t, err)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					if err := st.Put(ctx, "pre-key-1.json", []byte("k")); err != nil {
						assert.ErrorIs(t, err, ports.ErrStoreDeleted)
						return
					}
				}
			}()
			require.NoError(t, st.Delete(ctx))
			wg.Wait()

			assert.NotContains(t, sessionIDs(t, p), "sess-race")
		})
	}
}

func TestMemoryProvider_UpdatedAtUsesClock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p := NewMemoryProvider().WithClock(func() time.Time { return now })

	st, err := p.Open(ctx, "clocked")
	require.NoError(t, err)
	now = now.Add(time.Minute)
	require.NoError(t, st.Put(ctx, "creds.json", []byte("{}")))

	infos, err := p.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, now, infos[0].UpdatedAt)
}

func TestFSProvider_IgnoresTempFiles(t *testing.T) {
	ctx := context.Background()
	p, err := NewFSProvider(t.TempDir())
	require.NoError(t, err)

	st, err := p.Open(ctx, "fs-sess")
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, "creds.json", []byte("{}")))
	require.NoError(t, writeRaw(filepath.Join(p.Root(), "fs-sess", ".creds.json12345"), []byte("partial")))

	frags, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "creds.json", frags[0].Name)
}

func TestOpen_Factory(t *testing.T) {
	ctx := context.Background()

	p, err := Open(ctx, Config{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "nested")}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, p.Backend())
	require.NoError(t, p.Close())

	mr := miniredis.RunT(t)
	p, err = Open(ctx, Config{Backend: BackendRedis, Redis: RedisConfig{Addr: mr.Addr()}}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, p.Backend())
	require.NoError(t, p.Close())

	_, err = Open(ctx, Config{Backend: "tape"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
