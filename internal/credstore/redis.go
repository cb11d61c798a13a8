// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package credstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "webpair:cred:"
	redisIndexKey  = "webpair:cred-sessions"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
}

// RedisProvider keeps one hash per session (field = fragment name) and a
// sorted set indexing session ids by last update (unix millis).
type RedisProvider struct {
	client *redis.Client
	now    clock
}

// NewRedisProvider connects to Redis and verifies the connection.
func NewRedisProvider(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("credstore: redis connection failed: %w", err)
	}
	return newRedisProviderFromClient(client), nil
}

func newRedisProviderFromClient(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client, now: time.Now}
}

func (p *RedisProvider) Backend() string { return BackendRedis }

func redisSessionKey(sid string) string { return redisKeyPrefix + sid }

func (p *RedisProvider) touch(ctx context.Context, pipe redis.Pipeliner, sid string) {
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(p.now().UnixMilli()), Member: sid})
}

func (p *RedisProvider) Open(ctx context.Context, sid string) (ports.CredentialStore, error) {
	if err := validSessionID(sid); err != nil {
		return nil, err
	}
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		p.touch(ctx, pipe, sid)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("credstore: register session %s: %w", sid, err)
	}
	return &redisStore{p: p, sid: sid}, nil
}

func (p *RedisProvider) Sessions(ctx context.Context) ([]ports.StorageInfo, error) {
	zs, err := p.client.ZRangeWithScores(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("credstore: list redis sessions: %w", err)
	}
	out := make([]ports.StorageInfo, 0, len(zs))
	for _, z := range zs {
		sid, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, ports.StorageInfo{SessionID: sid, UpdatedAt: time.UnixMilli(int64(z.Score))})
	}
	return out, nil
}

func (p *RedisProvider) Purge(ctx context.Context, sid string) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisSessionKey(sid))
		pipe.ZRem(ctx, redisIndexKey, sid)
		return nil
	})
	if err != nil {
		return fmt.Errorf("credstore: purge %s: %w", sid, err)
	}
	return nil
}

func (p *RedisProvider) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func (p *RedisProvider) Close() error { return p.client.Close() }

type redisStore struct {
	p   *RedisProvider
	sid string

	tomb tombstone
}

func (s *redisStore) SessionID() string { return s.sid }

func (s *redisStore) Put(ctx context.Context, name string, data []byte) error {
	return s.tomb.write(func() error { return s.put(ctx, name, data) })
}

func (s *redisStore) put(ctx context.Context, name string, data []byte) error {
	if err := validFragmentName(name); err != nil {
		return err
	}
	_, err := s.p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisSessionKey(s.sid), name, data)
		s.p.touch(ctx, pipe, s.sid)
		return nil
	})
	if err != nil {
		return fmt.Errorf("credstore: write fragment %s: %w", name, err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.p.client.HGet(ctx, redisSessionKey(s.sid), name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrFragmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *redisStore) List(ctx context.Context) ([]ports.Fragment, error) {
	all, err := s.p.client.HGetAll(ctx, redisSessionKey(s.sid)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ports.Fragment, 0, len(all))
	for name, data := range all {
		out = append(out, ports.Fragment{Name: name, Data: []byte(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *redisStore) Delete(ctx context.Context) error {
	return s.tomb.delete(func() error { return s.p.Purge(ctx, s.sid) })
}
