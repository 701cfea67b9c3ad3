// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete TYPE [ID]",
		Short: "Delete a record, or every record of a type",
		Long:  "Delete a single record by type and identifier, or all records of a type with --all.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runDelete,
	}

	cmd.Flags().Bool("all", false, "delete every record of the type")

	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	typ := args[0]
	all, _ := cmd.Flags().GetBool("all")
	out := cmd.OutOrStdout()

	if all == (len(args) == 2) {
		return shaleerr.New(shaleerr.CodeConfigValidateInvalidValue,
			"provide exactly one of ID or --all")
	}

	var deleted int
	err = st.Transaction(cmd.Context(), func(tx record.Tx) error {
		if all {
			handles, err := tx.FetchAll(cmd.Context(), typ)
			if err != nil {
				return err
			}
			deleted = len(handles)
			return tx.DeleteAll(cmd.Context(), handles)
		}

		h, err := tx.Fetch(cmd.Context(), typ, args[1])
		if err != nil {
			return err
		}
		if h == nil {
			return nil // already gone
		}
		deleted = 1
		return tx.Delete(cmd.Context(), h)
	})
	if err != nil {
		return err
	}

	if err := st.Flush(cmd.Context()); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "deleted %d record(s)\n", deleted)
	return err
}
