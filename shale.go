// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

// Package shale persists arbitrary registered Go object graphs in a flat
// opaque-blob record store without a fixed storage schema. Identified
// objects are deduplicated and referenced by identifier across their
// containers; anonymous objects either collapse by content hash or live
// inline in their container's blob.
//
// Typical use:
//
//	st, _ := sqlite.New("app.db")
//	c := shale.New(st)
//	c.Register("Person", Person{}, codec.WithIdentity("ID"))
//	c.Register("Address", Address{}, codec.WithContentHash())
//
//	_ = c.Store(ctx, &Person{ID: "sam", Name: "Sam"})
//	sam, _ := shale.Retrieve[Person](ctx, c, "sam")
package shale

import "github.com/google/uuid"

// NewID mints a durable identifier for callers that do not have a
// natural one.
func NewID() string {
	return uuid.NewString()
}
