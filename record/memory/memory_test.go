// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shale-db/shale/record"
	"github.com/shale-db/shale/record/memory"
)

func TestUpsertThenFetch(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	err := st.Transaction(ctx, func(tx record.Tx) error {
		h, err := tx.Upsert(ctx, "Person", "sam")
		require.NoError(t, err)
		require.NoError(t, h.SetBlob(`{"name":"Sam"}`))

		got, err := tx.Fetch(ctx, "Person", "sam")
		require.NoError(t, err)
		require.NotNil(t, got)

		blob, err := got.Blob()
		require.NoError(t, err)
		assert.Equal(t, `{"name":"Sam"}`, blob)

		status, err := got.SyncStatus()
		require.NoError(t, err)
		assert.Equal(t, record.StatusUndetermined, status)
		return nil
	})
	require.NoError(t, err)
}

func TestFetchMissReturnsNil(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	err := st.Transaction(ctx, func(tx record.Tx) error {
		h, err := tx.Fetch(ctx, "Person", "nobody")
		require.NoError(t, err)
		assert.Nil(t, h)
		return nil
	})
	require.NoError(t, err)
}

func TestUpsertIsIdempotent(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	err := st.Transaction(ctx, func(tx record.Tx) error {
		h, err := tx.Upsert(ctx, "Person", "sam")
		require.NoError(t, err)
		require.NoError(t, h.SetBlob("first"))

		again, err := tx.Upsert(ctx, "Person", "sam")
		require.NoError(t, err)

		blob, err := again.Blob()
		require.NoError(t, err)
		assert.Equal(t, "first", blob, "second upsert must not clear the blob")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())
}

func TestSetBlobBumpsModifiedAt(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	err := st.Transaction(ctx, func(tx record.Tx) error {
		h, err := tx.Upsert(ctx, "Person", "sam")
		require.NoError(t, err)
		created := h.CreatedAt()

		require.NoError(t, h.SetBlob("x"))
		assert.False(t, h.ModifiedAt().Before(created))
		assert.Equal(t, created, h.CreatedAt())
		return nil
	})
	require.NoError(t, err)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.Transaction(ctx, func(tx record.Tx) error {
		if _, err := tx.Upsert(ctx, "Person", "sam"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, st.Len())
}

func TestFetchAllIsSortedAndScoped(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	err := st.Transaction(ctx, func(tx record.Tx) error {
		for _, id := range []string{"c", "a", "b"} {
			if _, err := tx.Upsert(ctx, "Person", id); err != nil {
				return err
			}
		}
		if _, err := tx.Upsert(ctx, "Pet", "rex"); err != nil {
			return err
		}

		hs, err := tx.FetchAll(ctx, "Person")
		require.NoError(t, err)
		require.Len(t, hs, 3)
		assert.Equal(t, "a", hs[0].ID())
		assert.Equal(t, "b", hs[1].ID())
		assert.Equal(t, "c", hs[2].ID())
		return nil
	})
	require.NoError(t, err)
}

func TestFetchByStatus(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	err := st.Transaction(ctx, func(tx record.Tx) error {
		synced, err := tx.Upsert(ctx, "Person", "sam")
		require.NoError(t, err)
		require.NoError(t, synced.SetSyncStatus(record.StatusSynced))

		if _, err := tx.Upsert(ctx, "Person", "nick"); err != nil {
			return err
		}
		pet, err := tx.Upsert(ctx, "Pet", "rex")
		require.NoError(t, err)
		require.NoError(t, pet.SetSyncStatus(record.StatusSynced))

		// Typed query.
		hs, err := tx.FetchByStatus(ctx, record.StatusSynced, "Person")
		require.NoError(t, err)
		require.Len(t, hs, 1)
		assert.Equal(t, "sam", hs[0].ID())

		// Untyped query spans all types.
		hs, err = tx.FetchByStatus(ctx, record.StatusSynced, "")
		require.NoError(t, err)
		assert.Len(t, hs, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestDelete(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	err := st.Transaction(ctx, func(tx record.Tx) error {
		h, err := tx.Upsert(ctx, "Person", "sam")
		require.NoError(t, err)
		require.NoError(t, tx.Delete(ctx, h))

		got, err := tx.Fetch(ctx, "Person", "sam")
		require.NoError(t, err)
		assert.Nil(t, got)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())
}

func TestRetype(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	err := st.Transaction(ctx, func(tx record.Tx) error {
		for _, id := range []string{"a", "b"} {
			h, err := tx.Upsert(ctx, "OldPerson", id)
			require.NoError(t, err)
			require.NoError(t, h.SetBlob("blob-"+id))
		}

		moved, err := tx.Retype(ctx, "OldPerson", "Person")
		require.NoError(t, err)
		assert.Equal(t, 2, moved)

		old, err := tx.FetchAll(ctx, "OldPerson")
		require.NoError(t, err)
		assert.Empty(t, old)

		hs, err := tx.FetchAll(ctx, "Person")
		require.NoError(t, err)
		require.Len(t, hs, 2)
		blob, err := hs[0].Blob()
		require.NoError(t, err)
		assert.Equal(t, "blob-a", blob)
		return nil
	})
	require.NoError(t, err)
}

func TestContextCancellation(t *testing.T) {
	st := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := st.Transaction(ctx, func(record.Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, st.Flush(ctx), context.Canceled)
}
