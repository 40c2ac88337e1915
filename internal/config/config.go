// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

// Package config loads server configuration from flags and an optional
// YAML file. Precedence: explicit flags beat the file, the file beats
// flag defaults.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Hasher names accepted by the hasher setting.
const (
	HasherDigest   = "digest"
	HasherArgon2id = "argon2id"
)

// Config holds the runtime configuration for the server.
type Config struct {
	ListenAddr  string `koanf:"listen-addr"`
	MetricsAddr string `koanf:"metrics-addr"`
	DatabaseURL string `koanf:"database-url"`
	RedisAddr   string `koanf:"redis-addr"`
	Hasher      string `koanf:"hasher"`
	TokenSecret string `koanf:"token-secret"`
	TokenTTL    int64  `koanf:"token-ttl"`
	LogFormat   string `koanf:"log-format"`
	LogLevel    string `koanf:"log-level"`
}

// Load builds a Config from the flag set and, when path is non-empty,
// a YAML config file. Flags left at their default are overridden by
// file values; flags set explicitly win.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen-addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database-url is required")
	}
	switch c.Hasher {
	case HasherDigest, HasherArgon2id:
	default:
		return oops.Code("CONFIG_INVALID").
			With("hasher", c.Hasher).
			Errorf("hasher must be %q or %q", HasherDigest, HasherArgon2id)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("log-format must be \"json\" or \"text\"")
	}
	if c.TokenSecret != "" && c.TokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("token_ttl", c.TokenTTL).
			Errorf("token-ttl must be positive when token-secret is set")
	}
	return nil
}

// ResumeEnabled reports whether resume tokens are configured.
func (c *Config) ResumeEnabled() bool {
	return c.TokenSecret != ""
}

// CacheEnabled reports whether the Redis leaderboard cache is
// configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}
