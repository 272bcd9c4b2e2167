// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-core-stack/governor/errors"
)

// manual clock shared by the limiter under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

type limiterCase struct {
	name  string
	build func(t *testing.T, clock *testClock) Limiter
}

func limiterCases() []limiterCase {
	return []limiterCase{
		{
			name: "memory",
			build: func(t *testing.T, clock *testClock) Limiter {
				return NewMemoryLimiter(WithClock(clock.Now))
			},
		},
		{
			name: "redis",
			build: func(t *testing.T, clock *testClock) Limiter {
				mr := newMiniredis(t)
				mr.SetTime(clock.Now())
				client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = client.Close() })
				return NewRedisLimiter(client, WithClock(clock.Now))
			},
		},
	}
}

func Test_FixedWindow(t *testing.T) {
	cfg := Config{MaxRequests: 5, Window: time.Second}
	for _, lc := range limiterCases() {
		t.Run(lc.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newTestClock()
			lim := lc.build(t, clock)

			var first *Result
			for i, want := range []int{4, 3, 2, 1, 0} {
				res, err := lim.Check(ctx, "tenant-a", cfg)
				require.NoError(t, err)
				assert.True(t, res.Allowed, "call %d must be allowed", i+1)
				assert.Equal(t, 5, res.Limit)
				assert.Equal(t, want, res.Remaining)
				if first == nil {
					first = res
					assert.Equal(t, clock.Now().Add(time.Second).UnixMilli(), res.ResetAt.UnixMilli())
				} else {
					assert.True(t, first.ResetAt.Equal(res.ResetAt), "reset must not move within the window")
				}
				clock.Advance(10 * time.Millisecond)
			}

			denied, err := lim.Check(ctx, "tenant-a", cfg)
			require.NoError(t, err)
			assert.False(t, denied.Allowed)
			assert.Equal(t, 0, denied.Remaining)
			assert.True(t, first.ResetAt.Equal(denied.ResetAt))

			other, err := lim.Check(ctx, "tenant-b", cfg)
			require.NoError(t, err)
			assert.True(t, other.Allowed, "identifiers are counted independently")
			assert.Equal(t, 4, other.Remaining)

			// rollover
			clock.Advance(time.Second)
			res, err := lim.Check(ctx, "tenant-a", cfg)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, 4, res.Remaining, "a new window starts with count one")
			assert.True(t, res.ResetAt.After(first.ResetAt))
		})
	}
}

func Test_RejectedRequestsCount(t *testing.T) {
	for _, lc := range limiterCases() {
		t.Run(lc.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newTestClock()
			lim := lc.build(t, clock)
			cfg := Config{MaxRequests: 1, Window: time.Minute}

			res, err := lim.Check(ctx, "tenant-a", cfg)
			require.NoError(t, err)
			require.True(t, res.Allowed)
			resetAt := res.ResetAt

			for i := 0; i < 10; i++ {
				clock.Advance(time.Second)
				res, err = lim.Check(ctx, "tenant-a", cfg)
				require.NoError(t, err)
				assert.False(t, res.Allowed)
				assert.True(t, resetAt.Equal(res.ResetAt), "rejections must not extend the window")
			}
		})
	}
}

func Test_InvalidInput(t *testing.T) {
	lim := NewMemoryLimiter()
	_, err := lim.Check(context.Background(), "", DefaultConfig())
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = lim.Check(context.Background(), "tenant-a", Config{MaxRequests: -1})
	assert.True(t, errors.IsInvalidArgument(err))

	res, err := lim.Check(context.Background(), "tenant-a", Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRequests, res.Limit, "zero config takes the defaults")
}

func Test_MemorySweep(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	lim := NewMemoryLimiter(WithClock(clock.Now))

	_, err := lim.Check(ctx, "short", Config{MaxRequests: 1, Window: time.Second})
	require.NoError(t, err)
	_, err = lim.Check(ctx, "long", Config{MaxRequests: 1, Window: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 2, lim.Len())

	assert.Equal(t, 0, lim.Sweep())
	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, lim.Sweep())
	assert.Equal(t, 1, lim.Len())
}

func Test_MemoryStartStops(t *testing.T) {
	lim := NewMemoryLimiter(WithSweepInterval(time.Millisecond))
	_, err := lim.Check(context.Background(), "tenant-a", Config{MaxRequests: 1, Window: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		lim.Start(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return lim.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweep loop did not stop")
	}
}

func Test_ConcurrentChecks(t *testing.T) {
	for _, lc := range limiterCases() {
		t.Run(lc.name, func(t *testing.T) {
			clock := newTestClock()
			lim := lc.build(t, clock)
			cfg := Config{MaxRequests: 50, Window: time.Minute}

			var allowed atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 200; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := lim.Check(context.Background(), "tenant-a", cfg)
					if err == nil && res.Allowed {
						allowed.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int64(50), allowed.Load())
		})
	}
}

func Test_RedisUnavailable(t *testing.T) {
	mr := newMiniredis(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	lim := NewRedisLimiter(client, WithKeyPrefix("test:"))

	_, err := lim.Check(context.Background(), "tenant-a", DefaultConfig())
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:tenant-a"))

	mr.Close()
	_, err = lim.Check(context.Background(), "tenant-a", DefaultConfig())
	assert.Equal(t, errors.Unavailable, errors.GetErrCode(err))
}

func Test_RetryAfter(t *testing.T) {
	now := time.Now()
	res := &Result{ResetAt: now.Add(59*time.Second + 200*time.Millisecond)}
	assert.Equal(t, int64(60), res.RetryAfterSeconds(now))

	res = &Result{ResetAt: now.Add(-time.Second)}
	assert.Equal(t, time.Duration(0), res.RetryAfter(now))
	assert.Equal(t, int64(1), res.RetryAfterSeconds(now))
}
