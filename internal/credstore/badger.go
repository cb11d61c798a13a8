// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package credstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/dgraph-io/badger/v4"
)

// BadgerProvider keeps fragments in an embedded badger database:
//   - fragments: key = "frag:<sid>:<name>" (raw bytes)
//   - sessions:  key = "sess:<sid>" (updated-at, unix nanos, big endian)
type BadgerProvider struct {
	db  *badger.DB
	now clock
}

// OpenBadgerProvider opens (or creates) the database at path. An empty path
// opens an in-memory database.
func OpenBadgerProvider(path string) (*BadgerProvider, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("credstore: open badger: %w", err)
	}
	return &BadgerProvider{db: db, now: time.Now}, nil
}

func (p *BadgerProvider) Backend() string { return BackendBadger }

func sessKey(sid string) []byte { return []byte("sess:" + sid) }

func fragPrefix(sid string) []byte { return []byte("frag:" + sid + ":") }

func fragKey(sid, name string) []byte { return []byte("frag:" + sid + ":" + name) }

func (p *BadgerProvider) touch(txn *badger.Txn, sid string) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(p.now().UnixNano()))
	return txn.Set(sessKey(sid), buf[:])
}

func (p *BadgerProvider) Open(_ context.Context, sid string) (ports.CredentialStore, error) {
	if err := validSessionID(sid); err != nil {
		return nil, err
	}
	err := p.db.Update(func(txn *badger.Txn) error {
		return p.touch(txn, sid)
	})
	if err != nil {
		return nil, fmt.Errorf("credstore: register session %s: %w", sid, err)
	}
	return &badgerStore{p: p, sid: sid}, nil
}

func (p *BadgerProvider) Sessions(_ context.Context) ([]ports.StorageInfo, error) {
	var out []ports.StorageInfo
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("sess:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			sid := strings.TrimPrefix(string(item.Key()), "sess:")
			var updated time.Time
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					updated = time.Unix(0, int64(binary.BigEndian.Uint64(val)))
				}
				return nil
			}); err != nil {
				return err
			}
			out = append(out, ports.StorageInfo{SessionID: sid, UpdatedAt: updated})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("credstore: list badger sessions: %w", err)
	}
	return out, nil
}

func (p *BadgerProvider) Purge(_ context.Context, sid string) error {
	if err := validSessionID(sid); err != nil {
		return err
	}
	err := p.db.Update(func(txn *badger.Txn) error {
		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		prefix := fragPrefix(sid)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Delete(sessKey(sid))
	})
	if err != nil {
		return fmt.Errorf("credstore: purge %s: %w", sid, err)
	}
	return nil
}

func (p *BadgerProvider) Ping(context.Context) error {
	if p.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (p *BadgerProvider) Close() error { return p.db.Close() }

type badgerStore struct {
	p   *BadgerProvider
	sid string

	tomb tombstone
}

func (s *badgerStore) SessionID() string { return s.sid }

func (s *badgerStore) Put(ctx context.Context, name string, data []byte) error {
	return s.tomb.write(func() error { return s.put(ctx, name, data) })
}

func (s *badgerStore) put(_ context.Context, name string, data []byte) error {
	if err := validFragmentName(name); err != nil {
		return err
	}
	return s.p.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(fragKey(s.sid, name), append([]byte(nil), data...)); err != nil {
			return err
		}
		return s.p.touch(txn, s.sid)
	})
}

func (s *badgerStore) Get(_ context.Context, name string) ([]byte, error) {
	var out []byte
	err := s.p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fragKey(s.sid, name))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ports.ErrFragmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List relies on badger's lexicographic key order for name sorting.
func (s *badgerStore) List(_ context.Context) ([]ports.Fragment, error) {
	var out []ports.Fragment
	err := s.p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := fragPrefix(s.sid)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, ports.Fragment{
				Name: strings.TrimPrefix(string(item.Key()), string(prefix)),
				Data: data,
			})
		}
		return nil
	})
	return out, err
}

func (s *badgerStore) Delete(ctx context.Context) error {
	return s.tomb.delete(func() error { return s.p.Purge(ctx, s.sid) })
}
