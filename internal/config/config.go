// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shale Contributors

// Package config loads the shale CLI configuration with the standard
// precedence: flags > environment (SHALE_ prefix) > config file >
// defaults.
package config

import (
	"strings"

	"github.com/spf13/viper"

	shaleerr "github.com/shale-db/shale/pkg/errors"
)

// Config is the top-level CLI configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Output  OutputConfig  `mapstructure:"output"`
}

// StorageConfig selects the record store backend and location.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "sqlite" or "memory"
	Path    string `mapstructure:"path"`
}

// OutputConfig controls CLI rendering.
type OutputConfig struct {
	Format string `mapstructure:"format"` // "table", "json", "yaml"
}

// SetDefaults installs default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "shale.db")
	v.SetDefault("output.format", "table")
}

// SetupEnv binds SHALE_-prefixed environment variables.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("SHALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper unmarshals and validates the effective configuration.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, shaleerr.Wrap(err, shaleerr.CodeConfigLoadFailure, "unmarshalling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "memory":
	default:
		return shaleerr.New(shaleerr.CodeConfigValidateInvalidValue,
			"unsupported storage backend",
			shaleerr.Field("backend", c.Storage.Backend))
	}

	switch c.Output.Format {
	case "table", "json", "yaml":
	default:
		return shaleerr.New(shaleerr.CodeConfigValidateInvalidValue,
			"unsupported output format",
			shaleerr.Field("format", c.Output.Format))
	}

	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		return shaleerr.New(shaleerr.CodeConfigValidateInvalidValue,
			"sqlite backend requires storage.path")
	}
	return nil
}
