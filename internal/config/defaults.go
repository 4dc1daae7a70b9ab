// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes the environment variables read by LoadEnv.
const EnvPrefix = "NLXCONV"

// FileConfig represents the TOML defaults file.
type FileConfig struct {
	Convert ConvertConfig `toml:"convert"`
}

// ConvertConfig maps convert-related settings. Nil fields are unset.
type ConvertConfig struct {
	LogLevel  *string `toml:"log-level"`
	LogFormat *string `toml:"log-format"`
	Stream    *bool   `toml:"stream"`
	Manifest  *string `toml:"manifest"`
}

// Env holds the settings read from the environment.
type Env struct {
	LogLevel  string `envconfig:"LOG_LEVEL"`
	LogFormat string `envconfig:"LOG_FORMAT"`
	Manifest  string `envconfig:"MANIFEST"`
}

// Settings are the resolved defaults of the convert command, before flags.
type Settings struct {
	LogLevel  string
	LogFormat string
	Stream    bool
	Manifest  string
}

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), "nlxconv", "config.toml")
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("error reading config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("error decoding config: %w", err)
	}
	return cfg, nil
}

// LoadEnv reads the NLXCONV_* environment variables.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("error reading environment: %w", err)
	}
	return env, nil
}

// Resolve layers the environment over the file config over built-in defaults.
func Resolve(file FileConfig, env Env) Settings {
	s := Settings{
		LogLevel:  "info",
		LogFormat: "text",
	}

	c := file.Convert
	if c.LogLevel != nil {
		s.LogLevel = *c.LogLevel
	}
	if c.LogFormat != nil {
		s.LogFormat = *c.LogFormat
	}
	if c.Stream != nil {
		s.Stream = *c.Stream
	}
	if c.Manifest != nil {
		s.Manifest = *c.Manifest
	}

	if env.LogLevel != "" {
		s.LogLevel = env.LogLevel
	}
	if env.LogFormat != "" {
		s.LogFormat = env.LogFormat
	}
	if env.Manifest != "" {
		s.Manifest = env.Manifest
	}

	return s
}
