// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
)

// recordRow is the CLI projection of a stored record.
type recordRow struct {
	Type       string    `json:"type" yaml:"type"`
	ID         string    `json:"id" yaml:"id"`
	Status     string    `json:"status" yaml:"status"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	ModifiedAt time.Time `json:"modified_at" yaml:"modified_at"`
}

func rowFromHandle(h record.Handle) (recordRow, error) {
	status, err := h.SyncStatus()
	if err != nil {
		return recordRow{}, err
	}
	return recordRow{
		Type:       h.Type(),
		ID:         h.ID(),
		Status:     string(status),
		CreatedAt:  h.CreatedAt(),
		ModifiedAt: h.ModifiedAt(),
	}, nil
}

// renderRows writes rows in the selected output format.
func renderRows(w io.Writer, format string, rows []recordRow) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		return yaml.NewEncoder(w).Encode(rows)
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tID\tSTATUS\tMODIFIED")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				r.Type, r.ID, r.Status, r.ModifiedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	}
}

// collectRows runs fn inside a read transaction and projects the handles it
// returns into display rows.
func collectRows(ctx context.Context, st record.Store, fn func(record.Tx) ([]record.Handle, error)) ([]recordRow, error) {
	var rows []recordRow
	err := st.Transaction(ctx, func(tx record.Tx) error {
		handles, err := fn(tx)
		if err != nil {
			return err
		}
		for _, h := range handles {
			row, err := rowFromHandle(h)
			if err != nil {
				return shaleerr.Wrap(err, shaleerr.CodeRecordDatabaseFailure, "reading record",
					shaleerr.FieldRecordType(h.Type()), shaleerr.FieldIdentifier(h.ID()))
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
