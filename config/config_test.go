// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/values"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		values.DatabaseURIEnv,
		values.SessionSecretEnv,
		values.RedisAddrEnv,
		values.RedisPasswordEnv,
		values.RateLimitBackendEnv,
		values.HTTPAddrEnv,
		values.GRPCAddrEnv,
		values.LogLevelEnv,
		values.MongoConfigDBUserNameEnv,
		values.MongoConfigDBPasswordEnv,
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "governor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_LoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(values.SessionSecretEnv, "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, values.PlaceholderDatabaseURI, cfg.Database.URI)
	assert.False(t, cfg.Database.Configured, "placeholder uri is not a configured database")
	assert.Equal(t, BackendMemory, cfg.RateLimit.Backend)
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)

	opts, err := cfg.Txn.Options()
	require.NoError(t, err)
	assert.Equal(t, db.ReadCommitted, opts.Isolation)
	assert.Equal(t, 2*time.Second, opts.MaxWait)
	assert.Equal(t, 5*time.Second, opts.Timeout)
}

func Test_LoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  addr: ":7000"
database:
  uri: "mongodb://db-1:27017"
  name: "billing"
txn:
  isolation: "snapshot"
  maxWait: 500ms
rateLimit:
  backend: redis
  maxRequests: 5
  window: 1s
redis:
  addr: "cache:6379"
session:
  secret: "from-file"
  ttl: 1h
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, ":9090", cfg.Server.GrpcAddr, "keys absent from the file keep defaults")
	assert.True(t, cfg.Database.Configured)
	assert.Equal(t, "billing", cfg.Database.Name)
	assert.Equal(t, BackendRedis, cfg.RateLimit.Backend)
	assert.Equal(t, 5, cfg.RateLimit.Limit().MaxRequests)
	assert.Equal(t, time.Second, cfg.RateLimit.Limit().Window)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Session.TTL)

	opts, err := cfg.Txn.Options()
	require.NoError(t, err)
	assert.Equal(t, db.Snapshot, opts.Isolation)
	assert.Equal(t, 500*time.Millisecond, opts.MaxWait)

	mongo := cfg.Database.MongoConfig()
	assert.Equal(t, "mongodb://db-1:27017", mongo.Uri)
	assert.Equal(t, uint64(100), mongo.MaxPoolSize)

	ac := cfg.Session.AuthConfig()
	assert.Equal(t, []byte("from-file"), ac.Secret)
}

func Test_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  uri: "mongodb://db-1:27017"
session:
  secret: "from-file"
`)
	t.Setenv(values.DatabaseURIEnv, "mongodb://db-2:27017")
	t.Setenv(values.SessionSecretEnv, "from-env")
	t.Setenv(values.LogLevelEnv, "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db-2:27017", cfg.Database.URI)
	assert.Equal(t, "from-env", cfg.Session.Secret)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func Test_Validate(t *testing.T) {
	clearEnv(t)
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Session.Secret = "s3cret"
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"missing secret":    func(c *Config) { c.Session.Secret = "" },
		"zero wait":         func(c *Config) { c.Txn.MaxWait = 0 },
		"zero timeout":      func(c *Config) { c.Txn.Timeout = 0 },
		"dirty isolation":   func(c *Config) { c.Txn.Isolation = "read-uncommitted" },
		"unbounded retries": func(c *Config) { c.Txn.MaxRetries = 50 },
		"unknown backend":   func(c *Config) { c.RateLimit.Backend = "etcd" },
		"negative window":   func(c *Config) { c.RateLimit.Window = -time.Second },
		"redis no address":  func(c *Config) { c.RateLimit.Backend = BackendRedis; c.Redis.Addr = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.True(t, errors.IsInvalidArgument(cfg.Validate()))
		})
	}

	_, err := Load("")
	assert.True(t, errors.IsInvalidArgument(err), "secret is required")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsInvalidArgument(err))
}
