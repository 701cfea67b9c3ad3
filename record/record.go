// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

// Package record defines the opaque-blob record model and the store
// contract consumed by the codec and coordinator layers. A record is the
// sole physical unit of persistence: one (type, identifier) key, one blob,
// timestamps, and an orthogonal sync status.
package record

import (
	"context"
	"time"
)

// SyncStatus tracks external synchronization progress for a record,
// independent of its content.
type SyncStatus string

const (
	StatusUndetermined SyncStatus = "undetermined"
	StatusNotSynced    SyncStatus = "not_synced"
	StatusSyncing      SyncStatus = "syncing"
	StatusSynced       SyncStatus = "synced"
)

// Valid reports whether s is one of the defined statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusUndetermined, StatusNotSynced, StatusSyncing, StatusSynced:
		return true
	}
	return false
}

// Handle is a live view of one stored record. SetBlob bumps ModifiedAt.
// Handles are only valid inside the Transaction call that produced them.
type Handle interface {
	Type() string
	ID() string
	Blob() (string, error)
	SetBlob(blob string) error
	SyncStatus() (SyncStatus, error)
	SetSyncStatus(status SyncStatus) error
	CreatedAt() time.Time
	ModifiedAt() time.Time
}

// Tx exposes record operations inside one store transaction. An error
// returned from the enclosing Transaction func rolls back every operation
// performed through the Tx.
type Tx interface {
	// Upsert returns the handle for (typ, id), creating the record if it
	// does not exist yet.
	Upsert(ctx context.Context, typ, id string) (Handle, error)

	// Fetch returns the handle for (typ, id), or (nil, nil) when absent.
	Fetch(ctx context.Context, typ, id string) (Handle, error)

	// FetchAll returns every record of the given type.
	FetchAll(ctx context.Context, typ string) ([]Handle, error)

	// FetchByStatus returns every record with the given sync status. An
	// empty typ spans all types.
	FetchByStatus(ctx context.Context, status SyncStatus, typ string) ([]Handle, error)

	Delete(ctx context.Context, h Handle) error
	DeleteAll(ctx context.Context, hs []Handle) error

	// Retype relabels every record under oldType to newType and returns
	// the number of records moved. Used by the migration bridge.
	Retype(ctx context.Context, oldType, newType string) (int, error)
}

// Store is the backing record store. Implementations serialize all work
// through a single writer; this layer adds no locking of its own.
type Store interface {
	// Transaction runs fn inside one logical transaction. When fn returns
	// an error the transaction's writes are discarded and the error is
	// returned unchanged; otherwise the writes become part of the store's
	// unflushed work.
	Transaction(ctx context.Context, fn func(tx Tx) error) error

	// Flush makes all unflushed work durable.
	Flush(ctx context.Context) error

	Close() error
}
