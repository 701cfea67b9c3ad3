// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get TYPE ID",
		Short: "Print a record's blob",
		Long:  "Fetch a single record and print its stored document.",
		Args:  cobra.ExactArgs(2),
		RunE:  runGet,
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	typ, id := args[0], args[1]
	out := cmd.OutOrStdout()

	return st.Transaction(cmd.Context(), func(tx record.Tx) error {
		h, err := tx.Fetch(cmd.Context(), typ, id)
		if err != nil {
			return err
		}
		if h == nil {
			return shaleerr.Errorf(shaleerr.CodeRecordFetchNotFound,
				"no record %s/%s", typ, id)
		}

		blob, err := h.Blob()
		if err != nil {
			return err
		}

		// Pretty-print when the blob is JSON, pass through otherwise.
		var pretty bytes.Buffer
		if json.Indent(&pretty, []byte(blob), "", "  ") == nil {
			_, err = fmt.Fprintln(out, pretty.String())
			return err
		}
		_, err = fmt.Fprintln(out, blob)
		return err
	})
}
