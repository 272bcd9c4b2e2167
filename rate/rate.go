// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package rate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/go-core-stack/governor/errors"
)

const (
	DefaultMaxRequests = 100
	DefaultWindow      = 60 * time.Second

	// default cadence of the memory limiter sweep
	DefaultSweepInterval = 60 * time.Second

	// default prefix of the redis keys holding the counters
	DefaultKeyPrefix = "ratelimit:"
)

// Config is the budget of one route, zero fields take the defaults
type Config struct {
	MaxRequests int           `mapstructure:"maxRequests"`
	Window      time.Duration `mapstructure:"window"`
}

// DefaultConfig is 100 requests per 60 second window
func DefaultConfig() Config {
	return Config{MaxRequests: DefaultMaxRequests, Window: DefaultWindow}
}

// WithDefaults returns the config with zero fields replaced by defaults
func (c Config) WithDefaults() Config {
	if c.MaxRequests == 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Validate rejects negative budgets and windows below a millisecond
func (c Config) Validate() error {
	if c.MaxRequests < 0 {
		return errors.Wrapf(errors.InvalidArgument, "invalid max requests %d", c.MaxRequests)
	}
	if c.Window < 0 || (c.Window > 0 && c.Window < time.Millisecond) {
		return errors.Wrapf(errors.InvalidArgument, "invalid window %s", c.Window)
	}
	return nil
}

// Result of one check
type Result struct {
	Allowed bool

	// configured maximum of the window
	Limit int

	// requests left in the window, never negative
	Remaining int

	// end of the window, identical for every check of the window
	ResetAt time.Time
}

// RetryAfter is the time left until the window ends, zero once it has
func (r *Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RetryAfterSeconds is RetryAfter rounded up to whole seconds, at least
// one, as carried by the Retry-After header
func (r *Result) RetryAfterSeconds(now time.Time) int64 {
	d := r.RetryAfter(now)
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

func newResult(count int, limit int, resetAt time.Time) *Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Limiter counts requests per identifier in fixed windows. Every check
// is one atomic check-and-increment for its identifier.
type Limiter interface {
	Check(ctx context.Context, id string, cfg Config) (*Result, error)
}

type options struct {
	now           func() time.Time
	sweepInterval time.Duration
	logger        *zap.Logger
	keyPrefix     string
}

// Option customizes a limiter
type Option func(*options)

// WithClock replaces the clock, used by tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithSweepInterval sets the cadence of the memory limiter sweep
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = d
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithKeyPrefix sets the prefix of the redis keys
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		keyPrefix:     DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.sweepInterval <= 0 {
		o.sweepInterval = DefaultSweepInterval
	}
	return o
}

func prepare(id string, cfg Config) (Config, error) {
	if id == "" {
		return cfg, errors.Wrap(errors.InvalidArgument, "rate limit identifier is empty")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg.WithDefaults(), nil
}
