// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package credstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/model"
	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	"github.com/google/renameio/v2"
)

// FSProvider stores one directory per session below root, one file per
// fragment. Writes are atomic and durable (temp file, fsync, rename).
type FSProvider struct {
	root string
}

func NewFSProvider(root string) (*FSProvider, error) {
	if root == "" {
		return nil, errors.New("credstore: fs root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("credstore: resolve fs root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("credstore: create fs root: %w", err)
	}
	return &FSProvider{root: abs}, nil
}

func (p *FSProvider) Backend() string { return BackendFS }

func (p *FSProvider) Root() string { return p.root }

func (p *FSProvider) sessionDir(sid string) string {
	return filepath.Join(p.root, sid)
}

func (p *FSProvider) Open(_ context.Context, sid string) (ports.CredentialStore, error) {
	if err := validSessionID(sid); err != nil {
		return nil, err
	}
	dir := p.sessionDir(sid)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("credstore: create session dir: %w", err)
	}
	return &fsStore{dir: dir, sid: sid}, nil
}

func (p *FSProvider) Sessions(_ context.Context) ([]ports.StorageInfo, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("credstore: list fs root: %w", err)
	}
	out := make([]ports.StorageInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !model.IsSafeSessionID(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, ports.StorageInfo{SessionID: e.Name(), UpdatedAt: info.ModTime()})
	}
	return out, nil
}

func (p *FSProvider) Purge(_ context.Context, sid string) error {
	if err := validSessionID(sid); err != nil {
		return err
	}
	if err := os.RemoveAll(p.sessionDir(sid)); err != nil {
		return fmt.Errorf("credstore: purge %s: %w", sid, err)
	}
	return nil
}

func (p *FSProvider) Ping(context.Context) error {
	info, err := os.Stat(p.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("credstore: %s is not a directory", p.root)
	}
	return nil
}

func (p *FSProvider) Close() error { return nil }

type fsStore struct {
	dir string
	sid string

	tomb tombstone
}

func (s *fsStore) SessionID() string { return s.sid }

func (s *fsStore) Put(ctx context.Context, name string, data []byte) error {
	return s.tomb.write(func() error { return s.put(ctx, name, data) })
}

func (s *fsStore) put(_ context.Context, name string, data []byte) error {
	if err := validFragmentName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("credstore: create session dir: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(s.dir, name), data, 0o600); err != nil {
		return fmt.Errorf("credstore: write fragment %s: %w", name, err)
	}
	return nil
}

func (s *fsStore) Get(_ context.Context, name string) ([]byte, error) {
	if err := validFragmentName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.ErrFragmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: read fragment %s: %w", name, err)
	}
	return data, nil
}

func (s *fsStore) List(_ context.Context) ([]ports.Fragment, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: list session dir: %w", err)
	}
	out := make([]ports.Fragment, 0, len(entries))
	for _, e := range entries {
		// renameio temp files are dot-prefixed
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("credstore: read fragment %s: %w", e.Name(), err)
		}
		out = append(out, ports.Fragment{Name: e.Name(), Data: data})
	}
	return out, nil
}

func (s *fsStore) Delete(context.Context) error {
	return s.tomb.delete(func() error {
		if err := os.RemoveAll(s.dir); err != nil {
			return fmt.Errorf("credstore: delete %s: %w", s.sid, err)
		}
		return nil
	})
}
