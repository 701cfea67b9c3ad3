// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package shale

import (
	"context"

	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
)

// MigrateAll bulk-converts every record stored under oldTypeTag to the
// registered type newTypeName, in one transaction:
//
//  1. fetch all records under oldTypeTag — nothing there means nothing
//     to do;
//  2. relabel them all to the new tag first, so reference resolution
//     (which looks records up by the new tag) succeeds mid-migration;
//  3. decode each blob through the legacy-tolerant path, re-encode with
//     the current wire format, and overwrite the blob in place.
//
// One flush at the end. Re-running after success is a no-op.
func (c *Coordinator) MigrateAll(ctx context.Context, oldTypeTag, newTypeName string) error {
	if _, err := c.reg.Lookup(newTypeName); err != nil {
		return err
	}

	enc := c.encoder()
	dec := c.decoder()

	err := c.store.Transaction(ctx, func(tx record.Tx) error {
		old, err := tx.FetchAll(ctx, oldTypeTag)
		if err != nil {
			return err
		}
		if len(old) == 0 {
			return nil
		}

		if _, err := tx.Retype(ctx, oldTypeTag, newTypeName); err != nil {
			return err
		}

		// Re-fetch under the new tag: the old handles carry stale keys.
		hs, err := tx.FetchAll(ctx, newTypeName)
		if err != nil {
			return err
		}

		for _, h := range hs {
			v, err := dec.DecodeHandleAs(ctx, tx, h, newTypeName)
			if err != nil {
				return shaleerr.Wrap(err, shaleerr.CodeMigrateConvertFailure,
					"decoding legacy record",
					shaleerr.FieldRecordType(h.Type()), shaleerr.FieldIdentifier(h.ID()))
			}
			blob, err := enc.EncodeBlob(ctx, tx, v)
			if err != nil {
				return shaleerr.Wrap(err, shaleerr.CodeMigrateConvertFailure,
					"re-encoding record",
					shaleerr.FieldRecordType(h.Type()), shaleerr.FieldIdentifier(h.ID()))
			}
			if err := h.SetBlob(blob); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.store.Flush(ctx)
}
