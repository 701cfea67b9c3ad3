// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

// Package memory provides an in-memory record store for tests and
// ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shale-db/shale/record"
)

// Compile-time interface check.
var _ record.Store = (*Store)(nil)

type key struct {
	typ string
	id  string
}

type row struct {
	version    int64
	blob       string
	status     record.SyncStatus
	createdAt  time.Time
	modifiedAt time.Time
}

// Store keeps records in a map keyed by (type, id). A single mutex
// serializes transactions; rollback restores a pre-transaction snapshot.
type Store struct {
	mu   sync.Mutex
	rows map[key]*row
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{rows: make(map[key]*row)}
}

func (s *Store) Transaction(ctx context.Context, fn func(tx record.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[key]*row, len(s.rows))
	for k, r := range s.rows {
		cp := *r
		snapshot[k] = &cp
	}

	if err := fn(&tx{s: s}); err != nil {
		s.rows = snapshot
		return err
	}
	return nil
}

// Flush is a no-op: committed transactions are already visible.
func (s *Store) Flush(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// Len returns the total number of records. Test helper.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type tx struct {
	s *Store
}

func (t *tx) Upsert(ctx context.Context, typ, id string) (record.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := key{typ: typ, id: id}
	if _, ok := t.s.rows[k]; !ok {
		now := time.Now().UTC()
		t.s.rows[k] = &row{
			status:     record.StatusUndetermined,
			createdAt:  now,
			modifiedAt: now,
		}
	}
	return &handle{s: t.s, k: k}, nil
}

func (t *tx) Fetch(ctx context.Context, typ, id string) (record.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := key{typ: typ, id: id}
	if _, ok := t.s.rows[k]; !ok {
		return nil, nil
	}
	return &handle{s: t.s, k: k}, nil
}

func (t *tx) FetchAll(ctx context.Context, typ string) ([]record.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []key
	for k := range t.s.rows {
		if k.typ == typ {
			keys = append(keys, k)
		}
	}
	return t.handles(keys), nil
}

func (t *tx) FetchByStatus(ctx context.Context, status record.SyncStatus, typ string) ([]record.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []key
	for k, r := range t.s.rows {
		if r.status != status {
			continue
		}
		if typ != "" && k.typ != typ {
			continue
		}
		keys = append(keys, k)
	}
	return t.handles(keys), nil
}

func (t *tx) Delete(ctx context.Context, h record.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delete(t.s.rows, key{typ: h.Type(), id: h.ID()})
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
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	moved := 0
	for k, r := range t.s.rows {
		if k.typ != oldType {
			continue
		}
		delete(t.s.rows, k)
		t.s.rows[key{typ: newType, id: k.id}] = r
		moved++
	}
	return moved, nil
}

func (t *tx) handles(keys []key) []record.Handle {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].typ != keys[j].typ {
			return keys[i].typ < keys[j].typ
		}
		return keys[i].id < keys[j].id
	})

	hs := make([]record.Handle, 0, len(keys))
	for _, k := range keys {
		hs = append(hs, &handle{s: t.s, k: k})
	}
	return hs
}

// handle reads through to the live row so concurrent handles to the same
// record observe each other's writes within a transaction.
type handle struct {
	s *Store
	k key
}

func (h *handle) Type() string { return h.k.typ }
func (h *handle) ID() string   { return h.k.id }

func (h *handle) row() (*row, error) {
	r, ok := h.s.rows[h.k]
	if !ok {
		return nil, fmt.Errorf("record %s/%s no longer exists", h.k.typ, h.k.id)
	}
	return r, nil
}

func (h *handle) Blob() (string, error) {
	r, err := h.row()
	if err != nil {
		return "", err
	}
	return r.blob, nil
}

func (h *handle) SetBlob(blob string) error {
	r, err := h.row()
	if err != nil {
		return err
	}
	r.blob = blob
	r.modifiedAt = time.Now().UTC()
	return nil
}

func (h *handle) SyncStatus() (record.SyncStatus, error) {
	r, err := h.row()
	if err != nil {
		return record.StatusUndetermined, err
	}
	return r.status, nil
}

func (h *handle) SetSyncStatus(status record.SyncStatus) error {
	r, err := h.row()
	if err != nil {
		return err
	}
	r.status = status
	return nil
}

func (h *handle) CreatedAt() time.Time {
	if r, err := h.row(); err == nil {
		return r.createdAt
	}
	return time.Time{}
}

func (h *handle) ModifiedAt() time.Time {
	if r, err := h.row(); err == nil {
		return r.modifiedAt
	}
	return time.Time{}
}
