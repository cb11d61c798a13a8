// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alpha-x-team-ofc/web-pair/internal/domain/pairing/ports"
	_ "modernc.org/sqlite" // Pure Go driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credential_sessions (
	session_id TEXT PRIMARY KEY,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS credential_fragments (
	session_id TEXT NOT NULL REFERENCES credential_sessions(session_id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	data       BLOB NOT NULL,
	PRIMARY KEY (session_id, name)
);
`

// SQLiteProvider keeps fragments in a single SQLite database file.
type SQLiteProvider struct {
	db  *sql.DB
	now clock
}

// OpenSQLiteProvider opens dbPath with WAL mode and a busy timeout applied
// to every pooled connection, then ensures the schema exists.
func OpenSQLiteProvider(ctx context.Context, dbPath string) (*SQLiteProvider, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, (5 * time.Second).Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("credstore: sqlite open failed: %w", err)
	}
	// Single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("credstore: sqlite ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("credstore: sqlite schema: %w", err)
	}
	return &SQLiteProvider{db: db, now: time.Now}, nil
}

func (p *SQLiteProvider) Backend() string { return BackendSQLite }

const upsertSession = `INSERT INTO credential_sessions (session_id, updated_at) VALUES (?, ?)
ON CONFLICT(session_id) DO UPDATE SET updated_at = excluded.updated_at`

func (p *SQLiteProvider) Open(ctx context.Context, sid string) (ports.CredentialStore, error) {
	if err := validSessionID(sid); err != nil {
		return nil, err
	}
	if _, err := p.db.ExecContext(ctx, upsertSession, sid, p.now().UnixNano()); err != nil {
		return nil, fmt.Errorf("credstore: register session %s: %w", sid, err)
	}
	return &sqliteStore{p: p, sid: sid}, nil
}

func (p *SQLiteProvider) Sessions(ctx context.Context) ([]ports.StorageInfo, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT session_id, updated_at FROM credential_sessions ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("credstore: list sqlite sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ports.StorageInfo
	for rows.Next() {
		var (
			sid     string
			updated int64
		)
		if err := rows.Scan(&sid, &updated); err != nil {
			return nil, err
		}
		out = append(out, ports.StorageInfo{SessionID: sid, UpdatedAt: time.Unix(0, updated)})
	}
	return out, rows.Err()
}

// Purge relies on ON DELETE CASCADE to drop the fragments.
func (p *SQLiteProvider) Purge(ctx context.Context, sid string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM credential_sessions WHERE session_id = ?`, sid); err != nil {
		return fmt.Errorf("credstore: purge %s: %w", sid, err)
	}
	return nil
}

func (p *SQLiteProvider) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *SQLiteProvider) Close() error { return p.db.Close() }

type sqliteStore struct {
	p   *SQLiteProvider
	sid string

	tomb tombstone
}

func (s *sqliteStore) SessionID() string { return s.sid }

func (s *sqliteStore) Put(ctx context.Context, name string, data []byte) error {
	return s.tomb.write(func() error { return s.put(ctx, name, data) })
}

func (s *sqliteStore) put(ctx context.Context, name string, data []byte) error {
	if err := validFragmentName(name); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	tx, err := s.p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsertSession, s.sid, s.p.now().UnixNano()); err != nil {
		return fmt.Errorf("credstore: touch session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO credential_fragments (session_id, name, data) VALUES (?, ?, ?)
ON CONFLICT(session_id, name) DO UPDATE SET data = excluded.data`, s.sid, name, data); err != nil {
		return fmt.Errorf("credstore: write fragment %s: %w", name, err)
	}
	return tx.Commit()
}

func (s *sqliteStore) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.p.db.QueryRowContext(ctx,
		`SELECT data FROM credential_fragments WHERE session_id = ? AND name = ?`, s.sid, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrFragmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]ports.Fragment, error) {
	rows, err := s.p.db.QueryContext(ctx,
		`SELECT name, data FROM credential_fragments WHERE session_id = ? ORDER BY name`, s.sid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ports.Fragment
	for rows.Next() {
		var f ports.Fragment
		if err := rows.Scan(&f.Name, &f.Data); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Delete(ctx context.Context) error {
	return s.tomb.delete(func() error { return s.p.Purge(ctx, s.sid) })
}
