// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"time"

	"github.com/go-core-stack/governor/auth"
	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/rate"
	"github.com/go-core-stack/governor/txn"
)

// rate limiter backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config of the governor process
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Txn       TxnConfig       `mapstructure:"txn"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Session   SessionConfig   `mapstructure:"session"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	GrpcAddr        string        `mapstructure:"grpcAddr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type DatabaseConfig struct {
	URI                    string        `mapstructure:"uri"`
	Name                   string        `mapstructure:"name"`
	Username               string        `mapstructure:"username"`
	Password               string        `mapstructure:"password"`
	MaxPoolSize            uint64        `mapstructure:"maxPoolSize"`
	ServerSelectionTimeout time.Duration `mapstructure:"serverSelectionTimeout"`

	// false while the uri is the inert placeholder
	Configured bool `mapstructure:"-"`
}

type TxnConfig struct {
	MaxWait    time.Duration `mapstructure:"maxWait"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Isolation  string        `mapstructure:"isolation"`
	Slots      int64         `mapstructure:"slots"`
	MaxRetries int           `mapstructure:"maxRetries"`
	BaseDelay  time.Duration `mapstructure:"baseDelay"`
}

type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend"`
	MaxRequests   int           `mapstructure:"maxRequests"`
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookieName"`
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the configuration used for every key absent
// from the file and the environment
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			GrpcAddr:        ":9090",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Name:                   "governor",
			MaxPoolSize:            100,
			ServerSelectionTimeout: 5 * time.Second,
		},
		Txn: TxnConfig{
			MaxWait:    2 * time.Second,
			Timeout:    5 * time.Second,
			Isolation:  db.ReadCommitted.String(),
			MaxRetries: 3,
			BaseDelay:  100 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Backend:       BackendMemory,
			MaxRequests:   rate.DefaultMaxRequests,
			Window:        rate.DefaultWindow,
			SweepInterval: rate.DefaultSweepInterval,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Session: SessionConfig{
			CookieName: auth.DefaultCookieName,
			Issuer:     auth.DefaultIssuer,
			TTL:        12 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func parseIsolation(name string) (db.Isolation, error) {
	switch name {
	case db.ReadCommitted.String():
		return db.ReadCommitted, nil
	case db.Snapshot.String():
		return db.Snapshot, nil
	}
	return 0, errors.Wrapf(errors.InvalidArgument, "unknown isolation level %q", name)
}

// Validate checks the configuration for values the process can not
// run with
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.Wrap(errors.InvalidArgument, "server address is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.Wrapf(errors.InvalidArgument, "invalid shutdown timeout %s", c.Server.ShutdownTimeout)
	}
	if c.Database.Name == "" {
		return errors.Wrap(errors.InvalidArgument, "database name is required")
	}
	if c.Txn.MaxWait <= 0 || c.Txn.Timeout <= 0 {
		return errors.Wrapf(errors.InvalidArgument, "transaction bounds must be positive, got wait %s timeout %s",
			c.Txn.MaxWait, c.Txn.Timeout)
	}
	if _, err := parseIsolation(c.Txn.Isolation); err != nil {
		return err
	}
	if c.Txn.MaxRetries < 0 || c.Txn.MaxRetries > txn.MaxRetriesLimit || c.Txn.BaseDelay < 0 {
		return errors.Wrap(errors.InvalidArgument, "invalid transaction retry policy")
	}
	switch c.RateLimit.Backend {
	case BackendMemory, BackendRedis:
	default:
		return errors.Wrapf(errors.InvalidArgument, "unknown rate limit backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		return errors.Wrapf(errors.InvalidArgument, "rate limit must be positive, got %d per %s",
			c.RateLimit.MaxRequests, c.RateLimit.Window)
	}
	if c.RateLimit.Backend == BackendRedis && c.Redis.Addr == "" {
		return errors.Wrap(errors.InvalidArgument, "redis address is required by the redis backend")
	}
	if c.Session.Secret == "" {
		return errors.Wrap(errors.InvalidArgument, "session secret is required")
	}
	if c.Session.TTL <= 0 {
		return errors.Wrapf(errors.InvalidArgument, "invalid session ttl %s", c.Session.TTL)
	}
	return nil
}

// MongoConfig returns the store client configuration
func (c *DatabaseConfig) MongoConfig() *db.MongoConfig {
	return &db.MongoConfig{
		Uri:                    c.URI,
		Username:               c.Username,
		Password:               c.Password,
		MaxPoolSize:            c.MaxPoolSize,
		ServerSelectionTimeout: c.ServerSelectionTimeout,
	}
}

// Options returns the transaction runner bounds
func (c *TxnConfig) Options() (txn.Options, error) {
	isolation, err := parseIsolation(c.Isolation)
	if err != nil {
		return txn.Options{}, err
	}
	return txn.Options{
		MaxWait:    c.MaxWait,
		Timeout:    c.Timeout,
		Isolation:  isolation,
		Slots:      c.Slots,
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BaseDelay,
	}, nil
}

// Limit returns the default route budget
func (c *RateLimitConfig) Limit() rate.Config {
	return rate.Config{MaxRequests: c.MaxRequests, Window: c.Window}
}

// AuthConfig returns the session token configuration
func (c *SessionConfig) AuthConfig() auth.Config {
	return auth.Config{
		Secret:     []byte(c.Secret),
		Issuer:     c.Issuer,
		CookieName: c.CookieName,
		TTL:        c.TTL,
	}
}
