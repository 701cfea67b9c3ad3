// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

// Package sqlite implements the record store on a single SQLite database.
//
// Unflushed work lives in one long-lived write transaction; each
// Transaction call runs inside a savepoint so a failing operation rolls
// back alone without discarding earlier unflushed writes. Flush commits
// the write transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shale-db/shale/record"
)

// Compile-time interface check.
var _ record.Store = (*Store)(nil)

// Store implements record.Store backed by SQLite.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	tx    *sql.Tx // holds unflushed work, begun lazily
	spSeq int
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// records table.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// The lazily-begun write transaction must always land on the same
	// connection as the savepoint statements.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS records (
	type        TEXT NOT NULL,
	id          TEXT NOT NULL,
	version     INTEGER NOT NULL DEFAULT 0,
	blob        TEXT NOT NULL DEFAULT '',
	sync_status TEXT NOT NULL DEFAULT 'undetermined',
	created_at  TEXT NOT NULL,
	modified_at TEXT NOT NULL,
	PRIMARY KEY (type, id)
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(sync_status, type);
`
	_, err := db.Exec(ddl)
	return err
}

func (s *Store) Transaction(ctx context.Context, fn func(tx record.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureTx(ctx); err != nil {
		return err
	}

	s.spSeq++
	sp := fmt.Sprintf("sp_%d", s.spSeq)
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("opening savepoint %s: %w", sp, err)
	}

	if err := fn(&tx{s: s}); err != nil {
		if _, rbErr := s.tx.ExecContext(ctx, "ROLLBACK TO "+sp); rbErr != nil {
			return fmt.Errorf("rolling back savepoint %s after %v: %w", sp, err, rbErr)
		}
		if _, relErr := s.tx.ExecContext(ctx, "RELEASE "+sp); relErr != nil {
			return fmt.Errorf("releasing savepoint %s after %v: %w", sp, err, relErr)
		}
		return err
	}

	if _, err := s.tx.ExecContext(ctx, "RELEASE "+sp); err != nil {
		return fmt.Errorf("releasing savepoint %s: %w", sp, err)
	}
	return nil
}

// Flush commits the pending write transaction, making all work since the
// previous flush durable.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}

	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("committing pending work: %w", err)
	}
	return nil
}

// Close discards unflushed work and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}

// ensureTx begins the long-lived write transaction if none is open.
// Callers must hold s.mu.
func (s *Store) ensureTx(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}

	btx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	s.tx = btx
	return nil
}

type tx struct {
	s *Store
}

func (t *tx) Upsert(ctx context.Context, typ, id string) (record.Handle, error) {
	h, err := t.Fetch(ctx, typ, id)
	if err != nil {
		return nil, err
	}
	if h != nil {
		return h, nil
	}

	now := time.Now().UTC()
	const q = `INSERT INTO records (type, id, version, blob, sync_status, created_at, modified_at)
VALUES (?, ?, 0, '', ?, ?, ?)`
	_, err = t.s.tx.ExecContext(ctx, q, typ, id, string(record.StatusUndetermined), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("inserting record %s/%s: %w", typ, id, err)
	}

	return &handle{
		s: t.s, ctx: ctx, typ: typ, id: id,
		status: record.StatusUndetermined, createdAt: now, modifiedAt: now,
	}, nil
}

func (t *tx) Fetch(ctx context.Context, typ, id string) (record.Handle, error) {
	const q = `SELECT blob, sync_status, created_at, modified_at FROM records WHERE type = ? AND id = ?`

	h := handle{s: t.s, ctx: ctx, typ: typ, id: id}
	var status, createdAt, modifiedAt string
	err := t.s.tx.QueryRowContext(ctx, q, typ, id).Scan(&h.blob, &status, &createdAt, &modifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching record %s/%s: %w", typ, id, err)
	}

	h.status = record.SyncStatus(status)
	h.createdAt = parseTime(createdAt)
	h.modifiedAt = parseTime(modifiedAt)
	return &h, nil
}

func (t *tx) FetchAll(ctx context.Context, typ string) ([]record.Handle, error) {
	const q = `SELECT type, id, blob, sync_status, created_at, modified_at
FROM records WHERE type = ? ORDER BY id`

	rows, err := t.s.tx.QueryContext(ctx, q, typ)
	if err != nil {
		return nil, fmt.Errorf("listing records of type %s: %w", typ, err)
	}
	return t.scanHandles(ctx, rows)
}

func (t *tx) FetchByStatus(ctx context.Context, status record.SyncStatus, typ string) ([]record.Handle, error) {
	q := `SELECT type, id, blob, sync_status, created_at, modified_at
FROM records WHERE sync_status = ?`
	args := []any{string(status)}
	if typ != "" {
		q += ` AND type = ?`
		args = append(args, typ)
	}
	q += ` ORDER BY type, id`

	rows, err := t.s.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records with status %s: %w", status, err)
	}
	return t.scanHandles(ctx, rows)
}

func (t *tx) scanHandles(ctx context.Context, rows *sql.Rows) ([]record.Handle, error) {
	defer rows.Close()

	var hs []record.Handle
	for rows.Next() {
		h := handle{s: t.s, ctx: ctx}
		var status, createdAt, modifiedAt string
		if err := rows.Scan(&h.typ, &h.id, &h.blob, &status, &createdAt, &modifiedAt); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		h.status = record.SyncStatus(status)
		h.createdAt = parseTime(createdAt)
		h.modifiedAt = parseTime(modifiedAt)
		hs = append(hs, &h)
	}
	return hs, rows.Err()
}

func (t *tx) Delete(ctx context.Context, h record.Handle) error {
	_, err := t.s.tx.ExecContext(ctx, `DELETE FROM records WHERE type = ? AND id = ?`, h.Type(), h.ID())
	if err != nil {
		return fmt.Errorf("deleting record %s/%s: %w", h.Type(), h.ID(), err)
	}
	return nil
}

func (t *tx) DeleteAll(ctx context.Context, hs []record.Handle) error {
	for _, h := range hs {
		if err := t.Delete(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Retype(ctx context.Context, oldType, newType string) (int, error) {
	res, err := t.s.tx.ExecContext(ctx, `UPDATE records SET type = ? WHERE type = ?`, newType, oldType)
	if err != nil {
		return 0, fmt.Errorf("retyping records %s -> %s: %w", oldType, newType, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected for retype %s -> %s: %w", oldType, newType, err)
	}
	return int(n), nil
}

// handle caches the row as loaded; writes go through to the open
// transaction and refresh the cached fields. Single-writer semantics make
// the cache safe within a Transaction call.
type handle struct {
	s          *Store
	ctx        context.Context // the creating operation's context; handles do not outlive it
	typ, id    string
	blob       string
	status     record.SyncStatus
	createdAt  time.Time
	modifiedAt time.Time
}

func (h *handle) Type() string { return h.typ }
func (h *handle) ID() string   { return h.id }

func (h *handle) Blob() (string, error) { return h.blob, nil }

func (h *handle) SetBlob(blob string) error {
	now := time.Now().UTC()
	const q = `UPDATE records SET blob = ?, modified_at = ? WHERE type = ? AND id = ?`
	if _, err := h.s.tx.ExecContext(h.ctx, q, blob, formatTime(now), h.typ, h.id); err != nil {
		return fmt.Errorf("writing blob for %s/%s: %w", h.typ, h.id, err)
	}
	h.blob = blob
	h.modifiedAt = now
	return nil
}

func (h *handle) SyncStatus() (record.SyncStatus, error) { return h.status, nil }

func (h *handle) SetSyncStatus(status record.SyncStatus) error {
	const q = `UPDATE records SET sync_status = ? WHERE type = ? AND id = ?`
	if _, err := h.s.tx.ExecContext(h.ctx, q, string(status), h.typ, h.id); err != nil {
		return fmt.Errorf("writing sync status for %s/%s: %w", h.typ, h.id, err)
	}
	h.status = status
	return nil
}

func (h *handle) CreatedAt() time.Time  { return h.createdAt }
func (h *handle) ModifiedAt() time.Time { return h.modifiedAt }

// formatTime serialises a time.Time to RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		slog.Warn("unparseable timestamp in records table", "value", s, "error", err)
		return time.Time{}
	}
	return t
}
