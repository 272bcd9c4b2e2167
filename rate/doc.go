// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package rate provides fixed window request budgets keyed by an
// identifier, typically the tenant a request is acting for.
//
// # Overview
//
// Each identifier owns one counter and the instant its window ends. The
// first request of an identifier, or the first one after its window has
// elapsed, opens a fresh window with a count of one. Every later request
// in the window increments the counter and is allowed while the count
// does not exceed the configured maximum. Rejected requests are counted
// too, a flood of rejected requests does not extend the window.
//
// # Implementations
//
//   - MemoryLimiter: counters kept in process memory, swept periodically.
//     Suitable for a single instance and for tests.
//   - RedisLimiter: counters kept in redis and updated by a server side
//     script, shared by every instance pointing at the same redis.
//
// Both implement Limiter and are selected by configuration at startup,
// nothing in the package is a process wide singleton.
//
// # Usage
//
//	lim := rate.NewMemoryLimiter(rate.WithSweepInterval(time.Minute))
//	go lim.Start(ctx)
//
//	res, err := lim.Check(ctx, tenantID, rate.Config{MaxRequests: 5, Window: time.Second})
//	if err != nil {
//	    // backend failure
//	}
//	if !res.Allowed {
//	    retry := res.RetryAfter(time.Now())
//	}
package rate
