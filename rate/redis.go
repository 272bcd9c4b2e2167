// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package rate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/go-core-stack/governor/errors"
)

// fixedWindow opens or advances the window of KEYS[1] and returns the
// count and the stored reset instant (epoch ms). ARGV[1] is the current
// instant and ARGV[2] the window length, both in milliseconds.
var fixedWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local reset = nil
local stored = redis.call('HGET', KEYS[1], 'reset')
if stored then
	reset = tonumber(stored)
end
if (not reset) or reset <= now then
	reset = now + window
	redis.call('HSET', KEYS[1], 'count', 1, 'reset', reset)
	redis.call('PEXPIREAT', KEYS[1], reset)
	return {1, reset}
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {count, reset}
`)

// RedisLimiter keeps the counters in redis, every instance sharing the
// redis shares the budgets. Each check is a single script execution so
// the check-and-increment is atomic across instances.
type RedisLimiter struct {
	opts   *options
	client redis.UniversalClient
}

func NewRedisLimiter(client redis.UniversalClient, opts ...Option) *RedisLimiter {
	return &RedisLimiter{
		opts:   buildOptions(opts),
		client: client,
	}
}

// Check counts one request of id against cfg
func (l *RedisLimiter) Check(ctx context.Context, id string, cfg Config) (*Result, error) {
	cfg, err := prepare(id, cfg)
	if err != nil {
		return nil, err
	}
	now := l.opts.now().UnixMilli()
	vals, err := fixedWindow.Run(ctx, l.client, []string{l.opts.keyPrefix + id}, now, cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, errors.Wrapf(errors.Unavailable, "rate limit check for %s failed: %w", id, err)
	}
	if len(vals) != 2 {
		return nil, errors.Wrapf(errors.Unknown, "unexpected rate limit reply %v", vals)
	}
	return newResult(int(vals[0]), cfg.MaxRequests, time.UnixMilli(vals[1])), nil
}
