// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/shale-db/shale/record"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list TYPE",
		Short: "List records of a type",
		Long:  "List every record stored under the given type tag, with identifier, sync status and timestamps.",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}

	cmd.Flags().String("status", "", "only show records with this sync status")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	typ := args[0]
	statusFilter, _ := cmd.Flags().GetString("status")

	rows, err := collectRows(cmd.Context(), st, func(tx record.Tx) ([]record.Handle, error) {
		if statusFilter != "" {
			return tx.FetchByStatus(cmd.Context(), record.SyncStatus(statusFilter), typ)
		}
		return tx.FetchAll(cmd.Context(), typ)
	})
	if err != nil {
		return err
	}

	return renderRows(cmd.OutOrStdout(), cfg.Output.Format, rows)
}
