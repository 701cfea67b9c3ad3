// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status TYPE ID",
		Short: "Show or change a record's sync status",
		Long:  "Print the sync status of a record, or update it with --set.",
		Args:  cobra.ExactArgs(2),
		RunE:  runStatus,
	}

	cmd.Flags().String("set", "", "new sync status to apply")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	typ, id := args[0], args[1]
	newStatus, _ := cmd.Flags().GetString("set")
	out := cmd.OutOrStdout()

	if newStatus != "" && !record.SyncStatus(newStatus).Valid() {
		return shaleerr.New(shaleerr.CodeConfigValidateInvalidValue,
			"unsupported sync status", shaleerr.Field("status", newStatus))
	}

	err = st.Transaction(cmd.Context(), func(tx record.Tx) error {
		h, err := tx.Fetch(cmd.Context(), typ, id)
		if err != nil {
			return err
		}
		if h == nil {
			return shaleerr.Errorf(shaleerr.CodeRecordFetchNotFound,
				"no record %s/%s", typ, id)
		}

		if newStatus != "" {
			return h.SetSyncStatus(record.SyncStatus(newStatus))
		}

		status, err := h.SyncStatus()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(status))
		return err
	})
	if err != nil {
		return err
	}

	if newStatus != "" {
		return st.Flush(cmd.Context())
	}
	return nil
}
