// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shale-db/shale/internal/config"
	shaleerr "github.com/shale-db/shale/pkg/errors"
	"github.com/shale-db/shale/record"
	"github.com/shale-db/shale/record/memory"
	"github.com/shale-db/shale/record/sqlite"
)

// NewRootCmd creates the root shale command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shale",
		Short:         "Shale — schema-less record store inspector",
		Long:          "Inspect and maintain shale record stores: list records, read and update sync status, and delete records.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("db", "", "path to the sqlite database file")
	root.PersistentFlags().StringP("output", "o", "", "output format: table, json or yaml")

	root.AddCommand(
		newListCmd(),
		newGetCmd(),
		newStatusCmd(),
		newDeleteCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return shaleerr.Wrap(err, shaleerr.CodeConfigLoadFailure, "reading config file")
		}
	} else {
		v.SetConfigName("shale")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/shale")
		// No config file is fine — defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return shaleerr.Wrap(err, shaleerr.CodeConfigLoadFailure, "reading config")
			}
		}
	}

	if err := v.BindPFlag("storage.path", cmd.Root().PersistentFlags().Lookup("db")); err != nil {
		return shaleerr.Wrap(err, shaleerr.CodeConfigLoadFailure, "binding db flag")
	}
	if err := v.BindPFlag("output.format", cmd.Root().PersistentFlags().Lookup("output")); err != nil {
		return shaleerr.Wrap(err, shaleerr.CodeConfigLoadFailure, "binding output flag")
	}

	return nil
}

// openStore builds the record store selected by the effective config.
func openStore() (record.Store, *config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Storage.Backend {
	case "memory":
		return memory.New(), cfg, nil
	default:
		st, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, cfg, nil
	}
}
