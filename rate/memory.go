// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package rate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps the counters in process memory. Counters are not
// shared between processes, see RedisLimiter for that.
type MemoryLimiter struct {
	opts    *options
	mu      sync.Mutex // protects entries
	entries map[string]*entry
}

func NewMemoryLimiter(opts ...Option) *MemoryLimiter {
	return &MemoryLimiter{
		opts:    buildOptions(opts),
		entries: make(map[string]*entry),
	}
}

// Check counts one request of id against cfg
func (l *MemoryLimiter) Check(ctx context.Context, id string, cfg Config) (*Result, error) {
	cfg, err := prepare(id, cfg)
	if err != nil {
		return nil, err
	}
	now := l.opts.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok || !now.Before(e.resetAt) {
		// replace, never increment, an elapsed window
		e = &entry{count: 1, resetAt: now.Add(cfg.Window)}
		l.entries[id] = e
	} else {
		e.count++
	}
	return newResult(e.count, cfg.MaxRequests, e.resetAt), nil
}

// Sweep deletes the entries whose window has elapsed, returns the
// number of entries deleted
func (l *MemoryLimiter) Sweep() int {
	now := l.opts.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Start runs the periodic sweep until ctx is done, it blocks and is
// expected to run in its own goroutine
func (l *MemoryLimiter) Start(ctx context.Context) {
	ticker := time.NewTicker(l.opts.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n != 0 {
				l.opts.logger.Debug("swept elapsed rate limit windows",
					zap.Int("removed", n), zap.Int("remaining", l.Len()))
			}
		}
	}
}
