// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package txn

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/go-core-stack/governor/errors"
)

const (
	// upper bound of the retries a policy may ask for
	MaxRetriesLimit = 10

	// longest wait between two attempts
	MaxBackoff = time.Minute
)

// Op is one attempt of an operation, each attempt is independent
type Op[T any] func(ctx context.Context) (T, error)

// RetryHook is invoked before every wait with the attempt that failed
// (starting at zero), the delay and the failure
type RetryHook func(attempt int, delay time.Duration, err error)

type retryOptions struct {
	hooks []RetryHook
}

// RetryOption customizes WithRetry
type RetryOption func(*retryOptions)

// WithRetryHook adds hook to the hooks run before every wait, hooks
// run in the order they were added
func WithRetryHook(hook RetryHook) RetryOption {
	return func(o *retryOptions) {
		if hook != nil {
			o.hooks = append(o.hooks, hook)
		}
	}
}

// newPolicy returns the exponential policy baseDelay * 2^attempt,
// without jitter and capped at MaxBackoff
func newPolicy(baseDelay time.Duration) *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = max(MaxBackoff, baseDelay)
	policy.Reset()
	return policy
}

// Backoff returns the delay following the given failed attempt,
// baseDelay * 2^attempt capped at MaxBackoff
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	policy := newPolicy(baseDelay)
	delay := policy.NextBackOff()
	for i := 0; i < attempt && delay < policy.MaxInterval; i++ {
		delay = policy.NextBackOff()
	}
	return delay
}

// WithRetry runs op and retries it up to maxRetries times as long as it
// fails with a transient error (Conflict, Timeout or Deadlock), waiting
// Backoff(baseDelay, attempt) before each retry. Any other failure is
// returned right away. Once retries are exhausted the last failure is
// returned unchanged. A done ctx interrupts the wait and its error is
// returned.
func WithRetry[T any](ctx context.Context, op Op[T], maxRetries int, baseDelay time.Duration, opts ...RetryOption) (T, error) {
	o := &retryOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var zero T
	if maxRetries < 0 || maxRetries > MaxRetriesLimit || baseDelay < 0 {
		return zero, errors.Wrapf(errors.InvalidArgument, "invalid retry policy %d/%s", maxRetries, baseDelay)
	}

	attempt := 0
	val, err := backoff.Retry(ctx, func() (T, error) {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}
		if !errors.IsTransient(err) {
			return zero, backoff.Permanent(err)
		}
		if cerr := ctx.Err(); cerr != nil {
			return zero, backoff.Permanent(cerr)
		}
		return zero, err
	},
		backoff.WithBackOff(newPolicy(baseDelay)),
		backoff.WithMaxTries(uint(maxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			for _, hook := range o.hooks {
				hook(attempt, delay, err)
			}
			attempt++
		}),
	)
	if err != nil {
		// the last attempt may still carry the permanent marker
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		return zero, err
	}
	return val, nil
}
