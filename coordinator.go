// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package shale

import (
	"context"
	"reflect"
	"sync"

	"github.com/shale-db/shale/codec"
	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
)

// Coordinator owns the record store connection and exposes the public
// store/retrieve/delete/sync-status surface. Each public operation runs
// in one store transaction; with autosave on (the default) every
// mutating operation also flushes.
type Coordinator struct {
	store record.Store
	reg   *codec.Registry

	mu       sync.Mutex
	dates    codec.DateCodec
	cipher   codec.Cipher
	autosave bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRegistry shares an existing type registry.
func WithRegistry(reg *codec.Registry) Option {
	return func(c *Coordinator) { c.reg = reg }
}

// WithDateCodec sets the date transform. Default: fixed ISO-8601.
func WithDateCodec(dates codec.DateCodec) Option {
	return func(c *Coordinator) { c.dates = dates }
}

// WithCipher sets the blob transform. Default: identity.
func WithCipher(cipher codec.Cipher) Option {
	return func(c *Coordinator) { c.cipher = cipher }
}

// WithAutosave sets the initial autosave flag. Default: on.
func WithAutosave(on bool) Option {
	return func(c *Coordinator) { c.autosave = on }
}

// New creates a Coordinator on top of a record store.
func New(store record.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		reg:      codec.NewRegistry(),
		dates:    codec.ISO8601(),
		cipher:   codec.NoCipher(),
		autosave: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a type to the coordinator's registry. See codec.Register.
func (c *Coordinator) Register(name string, prototype any, opts ...codec.RegisterOption) error {
	return c.reg.Register(name, prototype, opts...)
}

// Registry returns the coordinator's type registry.
func (c *Coordinator) Registry() *codec.Registry { return c.reg }

// Store persists v and everything identified or hashable reachable from
// it, in one transaction.
func (c *Coordinator) Store(ctx context.Context, v any) error {
	return c.StoreAll(ctx, []any{v})
}

// StoreAll persists every value in one transaction: either all of them
// are written or none.
func (c *Coordinator) StoreAll(ctx context.Context, vs []any) error {
	enc := c.encoder()
	err := c.store.Transaction(ctx, func(tx record.Tx) error {
		for _, v := range vs {
			if _, err := enc.Store(ctx, tx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.maybeFlush(ctx)
}

// Retrieve decodes the object stored under (typeName, id). A missing
// record returns (nil, nil); a dangling reference inside the stored
// graph is an error.
func (c *Coordinator) Retrieve(ctx context.Context, typeName, id string) (any, error) {
	dec := c.decoder()
	var out any
	err := c.store.Transaction(ctx, func(tx record.Tx) error {
		v, err := dec.Retrieve(ctx, tx, typeName, id)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RetrieveAll decodes every object of the named type.
func (c *Coordinator) RetrieveAll(ctx context.Context, typeName string) ([]any, error) {
	dec := c.decoder()
	var out []any
	err := c.store.Transaction(ctx, func(tx record.Tx) error {
		vs, err := dec.RetrieveAll(ctx, tx, typeName)
		if err != nil {
			return err
		}
		out = vs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RetrieveAllWithStatus decodes every object whose record carries the
// given sync status. An empty typeName spans all registered types.
func (c *Coordinator) RetrieveAllWithStatus(ctx context.Context, status record.SyncStatus, typeName string) ([]any, error) {
	dec := c.decoder()
	var out []any
	err := c.store.Transaction(ctx, func(tx record.Tx) error {
		hs, err := tx.FetchByStatus(ctx, status, typeName)
		if err != nil {
			return err
		}
		for _, h := range hs {
			v, err := dec.DecodeHandle(ctx, tx, h)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes v's own record. Records it references stay; no cascade
// and no reference counting. Deleting an object that was never stored is
// a no-op.
func (c *Coordinator) Delete(ctx context.Context, v any) error {
	return c.DeleteAll(ctx, []any{v})
}

// DeleteByID removes the record under (typeName, id), if present.
func (c *Coordinator) DeleteByID(ctx context.Context, typeName, id string) error {
	err := c.store.Transaction(ctx, func(tx record.Tx) error {
		h, err := tx.Fetch(ctx, typeName, id)
		if err != nil || h == nil {
			return err
		}
		return tx.Delete(ctx, h)
	})
	if err != nil {
		return err
	}
	return c.maybeFlush(ctx)
}

// DeleteAll removes every value's record in one transaction.
func (c *Coordinator) DeleteAll(ctx context.Context, vs []any) error {
	enc := c.encoder()
	err := c.store.Transaction(ctx, func(tx record.Tx) error {
		for _, v := range vs {
			typ, id, err := enc.Key(ctx, v)
			if err != nil {
				return err
			}
			h, err := tx.Fetch(ctx, typ, id)
			if err != nil {
				return err
			}
			if h == nil {
				continue
			}
			if err := tx.Delete(ctx, h); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.maybeFlush(ctx)
}

// DeleteAllOfType removes every record of the named type.
func (c *Coordinator) DeleteAllOfType(ctx context.Context, typeName string) error {
	err := c.store.Transaction(ctx, func(tx record.Tx) error {
		hs, err := tx.FetchAll(ctx, typeName)
		if err != nil {
			return err
		}
		return tx.DeleteAll(ctx, hs)
	})
	if err != nil {
		return err
	}
	return c.maybeFlush(ctx)
}

// GetSyncStatus reads the sync status of v's record.
func (c *Coordinator) GetSyncStatus(ctx context.Context, v any) (record.SyncStatus, error) {
	enc := c.encoder()
	status := record.StatusUndetermined
	err := c.store.Transaction(ctx, func(tx record.Tx) error {
		typ, id, err := enc.Key(ctx, v)
		if err != nil {
			return err
		}
		h, err := tx.Fetch(ctx, typ, id)
		if err != nil {
			return err
		}
		if h == nil {
			return shaleerr.New(shaleerr.CodeRecordFetchNotFound, "object has no record",
				shaleerr.FieldRecordType(typ), shaleerr.FieldIdentifier(id))
		}
		status, err = h.SyncStatus()
		return err
	})
	return status, err
}

// SetSyncStatus writes the sync status on every value's record, in one
// transaction. All targets must already be stored.
func (c *Coordinator) SetSyncStatus(ctx context.Context, status record.SyncStatus, vs ...any) error {
	if !status.Valid() {
		return shaleerr.New(shaleerr.CodeConfigValidateInvalidValue, "unknown sync status",
			shaleerr.Field("status", string(status)))
	}

	enc := c.encoder()
	err := c.store.Transaction(ctx, func(tx record.Tx) error {
		for _, v := range vs {
			typ, id, err := enc.Key(ctx, v)
			if err != nil {
				return err
			}
			h, err := tx.Fetch(ctx, typ, id)
			if err != nil {
				return err
			}
			if h == nil {
				return shaleerr.New(shaleerr.CodeRecordFetchNotFound, "object has no record",
					shaleerr.FieldRecordType(typ), shaleerr.FieldIdentifier(id))
			}
			if err := h.SetSyncStatus(status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.maybeFlush(ctx)
}

// Flush makes all unflushed work durable. Only needed after suspending
// autosave.
func (c *Coordinator) Flush(ctx context.Context) error {
	return c.store.Flush(ctx)
}

// WithoutAutosave runs fn with autosave suspended, restoring the prior
// setting on every exit path. The caller must Flush afterwards.
func (c *Coordinator) WithoutAutosave(fn func() error) error {
	c.mu.Lock()
	prev := c.autosave
	c.autosave = false
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.autosave = prev
		c.mu.Unlock()
	}()

	return fn()
}

// WithTransforms runs fn with the date codec and cipher swapped,
// restoring the previous transforms on every exit path including
// failure. A nil argument keeps the current transform.
func (c *Coordinator) WithTransforms(dates codec.DateCodec, cipher codec.Cipher, fn func() error) error {
	c.mu.Lock()
	prevDates, prevCipher := c.dates, c.cipher
	if dates != nil {
		c.dates = dates
	}
	if cipher != nil {
		c.cipher = cipher
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.dates, c.cipher = prevDates, prevCipher
		c.mu.Unlock()
	}()

	return fn()
}

// Close closes the underlying record store.
func (c *Coordinator) Close() error {
	return c.store.Close()
}

// encoder snapshots the current transforms into a per-operation encoder.
func (c *Coordinator) encoder() *codec.Encoder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return codec.NewEncoder(c.reg, c.dates, c.cipher)
}

func (c *Coordinator) decoder() *codec.Decoder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return codec.NewDecoder(c.reg, c.dates, c.cipher)
}

func (c *Coordinator) maybeFlush(ctx context.Context) error {
	c.mu.Lock()
	autosave := c.autosave
	c.mu.Unlock()

	if !autosave {
		return nil
	}
	return c.store.Flush(ctx)
}

// Retrieve decodes one object of type T by identifier. A missing record
// returns (nil, nil).
func Retrieve[T any](ctx context.Context, c *Coordinator, id string) (*T, error) {
	name, err := nameFor[T](c)
	if err != nil {
		return nil, err
	}

	v, err := c.Retrieve(ctx, name, id)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*T), nil
}

// RetrieveAll decodes every stored object of type T.
func RetrieveAll[T any](ctx context.Context, c *Coordinator) ([]*T, error) {
	name, err := nameFor[T](c)
	if err != nil {
		return nil, err
	}

	vs, err := c.RetrieveAll(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.(*T))
	}
	return out, nil
}

// RetrieveAllWithStatus decodes every object of type T whose record
// carries the given sync status.
func RetrieveAllWithStatus[T any](ctx context.Context, c *Coordinator, status record.SyncStatus) ([]*T, error) {
	name, err := nameFor[T](c)
	if err != nil {
		return nil, err
	}

	vs, err := c.RetrieveAllWithStatus(ctx, status, name)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.(*T))
	}
	return out, nil
}

func nameFor[T any](c *Coordinator) (string, error) {
	info, err := c.reg.LookupGoType(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return "", err
	}
	return info.Name(), nil
}
