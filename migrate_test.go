// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package shale_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shale-db/shale"
	"github.com/shale-db/shale/codec"
	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
	"github.com/shale-db/shale/record/memory"
)

// seedLegacy writes hand-built records the way an older release of the
// codec would have: verbose reference descriptors carrying the old type
// tag and structured date descriptors.
func seedLegacy(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()

	blobs := map[string]string{
		"sam": `{
			"identifier": "sam",
			"name": "Sam",
			"born": {"type": "transformable", "format": "date", "payload": "1986-03-14T09:26:53.589Z"},
			"sibling": {"type": "PersonV1", "identifier": "nick"}
		}`,
		"nick": `{
			"identifier": "nick",
			"name": "Nick",
			"sibling": {"type": "PersonV1", "identifier": "sam"}
		}`,
		"lone": `{"identifier": "lone", "name": "Lone"}`,
	}

	err := st.Transaction(ctx, func(tx record.Tx) error {
		for id, blob := range blobs {
			h, err := tx.Upsert(ctx, "PersonV1", id)
			if err != nil {
				return err
			}
			if err := h.SetBlob(blob); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func blobOf(t *testing.T, st *memory.Store, typ, id string) string {
	t.Helper()
	var blob string
	err := st.Transaction(context.Background(), func(tx record.Tx) error {
		h, err := tx.Fetch(context.Background(), typ, id)
		require.NoError(t, err)
		require.NotNil(t, h, "record %s/%s missing", typ, id)
		blob, err = h.Blob()
		return err
	})
	require.NoError(t, err)
	return blob
}

func TestMigrateAllConvertsLegacyRecords(t *testing.T) {
	st := memory.New()
	c := shale.New(st)
	require.NoError(t, c.Register("Person", Person{}, codec.WithIdentity("ID")))
	ctx := context.Background()

	seedLegacy(t, st)
	require.NoError(t, c.MigrateAll(ctx, "PersonV1", "Person"))

	// Nothing is left under the old tag.
	err := st.Transaction(ctx, func(tx record.Tx) error {
		hs, err := tx.FetchAll(ctx, "PersonV1")
		require.NoError(t, err)
		assert.Empty(t, hs)
		return nil
	})
	require.NoError(t, err)

	// Every record decodes under the new tag, graph intact.
	sam, err := shale.Retrieve[Person](ctx, c, "sam")
	require.NoError(t, err)
	require.NotNil(t, sam)
	assert.Equal(t, "Sam", sam.Name)
	assert.Equal(t, 1986, sam.Born.Year())
	require.NotNil(t, sam.Sibling)
	assert.Equal(t, "Nick", sam.Sibling.Name)
	assert.Same(t, sam, sam.Sibling.Sibling)

	// Blobs were rewritten to the current wire format.
	blob := blobOf(t, st, "Person", "sam")
	assert.Contains(t, blob, `"sibling":"nick"`)
	assert.Contains(t, blob, `"born":"1986-03-14T09:26:53.589Z"`)
	assert.NotContains(t, blob, "transformable")
	assert.NotContains(t, blob, "PersonV1")
}

func TestMigrateAllIsIdempotent(t *testing.T) {
	st := memory.New()
	c := shale.New(st)
	require.NoError(t, c.Register("Person", Person{}, codec.WithIdentity("ID")))
	ctx := context.Background()

	seedLegacy(t, st)
	require.NoError(t, c.MigrateAll(ctx, "PersonV1", "Person"))
	first := blobOf(t, st, "Person", "sam")

	// Re-running after success finds nothing under the old tag.
	require.NoError(t, c.MigrateAll(ctx, "PersonV1", "Person"))
	assert.Equal(t, first, blobOf(t, st, "Person", "sam"))
	assert.Equal(t, 3, st.Len())
}

func TestMigrateAllWithEmptyOldTagIsNoOp(t *testing.T) {
	st := memory.New()
	c := shale.New(st)
	require.NoError(t, c.Register("Person", Person{}, codec.WithIdentity("ID")))

	require.NoError(t, c.MigrateAll(context.Background(), "NothingHere", "Person"))
	assert.Equal(t, 0, st.Len())
}

func TestMigrateAllRequiresRegisteredTarget(t *testing.T) {
	st := memory.New()
	c := shale.New(st)

	err := c.MigrateAll(context.Background(), "PersonV1", "Person")
	require.Error(t, err)
	assert.Equal(t, shaleerr.CodeRegistryTypeUnknown, shaleerr.CodeOf(err))
}

func TestMigrateAllFailsAtomicallyOnBadBlob(t *testing.T) {
	st := memory.New()
	c := shale.New(st)
	require.NoError(t, c.Register("Person", Person{}, codec.WithIdentity("ID")))
	ctx := context.Background()

	seedLegacy(t, st)
	err := st.Transaction(ctx, func(tx record.Tx) error {
		h, err := tx.Upsert(ctx, "PersonV1", "broken")
		require.NoError(t, err)
		return h.SetBlob("{not json")
	})
	require.NoError(t, err)

	err = c.MigrateAll(ctx, "PersonV1", "Person")
	require.Error(t, err)
	assert.Equal(t, shaleerr.CodeMigrateConvertFailure, shaleerr.CodeOf(err))

	// The failed run changed nothing: everything is still under the old tag.
	err = st.Transaction(ctx, func(tx record.Tx) error {
		hs, err := tx.FetchAll(ctx, "PersonV1")
		require.NoError(t, err)
		assert.Len(t, hs, 4)
		return nil
	})
	require.NoError(t, err)
}
