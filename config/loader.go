// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"github.com/spf13/viper"

	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/values"
)

// Load reads the yaml file at path on top of the defaults, applies the
// environment overrides and validates the result. An empty path skips
// the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(errors.InvalidArgument, "failed to read config file %s: %s", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, errors.Wrapf(errors.InvalidArgument, "failed to unmarshal config: %s", err)
		}
	}

	// environment variables take precedence over the file
	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(errors.GetErrCode(err), "configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to config
func applyEnvironmentOverrides(cfg *Config) {
	if uri, ok := values.GetDatabaseURI(); ok {
		cfg.Database.URI = uri
	}
	if cfg.Database.URI == "" || cfg.Database.URI == values.PlaceholderDatabaseURI {
		cfg.Database.URI = values.PlaceholderDatabaseURI
		cfg.Database.Configured = false
	} else {
		cfg.Database.Configured = true
	}
	if user, pass, ok := values.GetMongoConfigDBCredentials(); ok {
		cfg.Database.Username = user
		cfg.Database.Password = pass
	}

	cfg.Session.Secret = values.Lookup(values.SessionSecretEnv, cfg.Session.Secret)
	cfg.Redis.Addr = values.Lookup(values.RedisAddrEnv, cfg.Redis.Addr)
	cfg.Redis.Password = values.Lookup(values.RedisPasswordEnv, cfg.Redis.Password)
	cfg.RateLimit.Backend = values.Lookup(values.RateLimitBackendEnv, cfg.RateLimit.Backend)
	cfg.Server.Addr = values.Lookup(values.HTTPAddrEnv, cfg.Server.Addr)
	cfg.Server.GrpcAddr = values.Lookup(values.GRPCAddrEnv, cfg.Server.GrpcAddr)
	cfg.Logging.Level = values.Lookup(values.LogLevelEnv, cfg.Logging.Level)
}
