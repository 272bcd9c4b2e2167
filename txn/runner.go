// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package txn

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/metrics"
)

const (
	// transactions admitted concurrently when no slot count is given
	DefaultSlots = 64
)

// Options bounding every transaction of a Runner
type Options struct {
	// maximum time spent waiting for a transaction slot, mandatory
	MaxWait time.Duration

	// maximum execution time of one attempt, mandatory
	Timeout time.Duration

	Isolation db.Isolation

	// number of transactions running concurrently, DefaultSlots when zero
	Slots int64

	// retry policy applied by Do
	MaxRetries int
	BaseDelay  time.Duration
}

func (o Options) validate() error {
	if o.MaxWait <= 0 {
		return errors.Wrapf(errors.InvalidArgument, "transaction max wait must be positive, got %s", o.MaxWait)
	}
	if o.Timeout <= 0 {
		return errors.Wrapf(errors.InvalidArgument, "transaction timeout must be positive, got %s", o.Timeout)
	}
	if o.Isolation != db.ReadCommitted && o.Isolation != db.Snapshot {
		return errors.Wrapf(errors.InvalidArgument, "unsupported isolation level %d", o.Isolation)
	}
	if o.Slots < 0 {
		return errors.Wrapf(errors.InvalidArgument, "invalid transaction slots %d", o.Slots)
	}
	if o.MaxRetries < 0 || o.MaxRetries > MaxRetriesLimit || o.BaseDelay < 0 {
		return errors.Wrapf(errors.InvalidArgument, "invalid retry policy %d/%s", o.MaxRetries, o.BaseDelay)
	}
	return nil
}

// Runner executes units of work in bounded transactions. Admission is
// limited to a fixed number of slots, a unit that can not get a slot
// within MaxWait fails with Timeout, as does one that runs past Timeout.
type Runner struct {
	client  db.StoreClient
	opts    Options
	slots   *semaphore.Weighted
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewRunner(client db.StoreClient, opts Options, logger *zap.Logger, m *metrics.Metrics) (*Runner, error) {
	if client == nil {
		return nil, errors.Wrap(errors.InvalidArgument, "store client is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Slots == 0 {
		opts.Slots = DefaultSlots
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		client:  client,
		opts:    opts,
		slots:   semaphore.NewWeighted(opts.Slots),
		logger:  logger,
		metrics: m,
	}, nil
}

// Options returns the bounds the runner was built with
func (r *Runner) Options() Options {
	return r.opts
}

// Run executes unit once inside a transaction. The unit must use the
// context it is handed for every store operation. Nothing is retried
// here, see Do.
func Run[T any](ctx context.Context, r *Runner, unit Op[T]) (T, error) {
	var zero T

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.MaxWait)
	err := r.slots.Acquire(waitCtx, 1)
	cancel()
	if err != nil {
		if perr := ctx.Err(); perr != nil {
			return zero, perr
		}
		r.metrics.ObserveTxnAttempt(metrics.OutcomeTransient)
		return zero, errors.Wrapf(errors.Timeout, "no transaction slot within %s", r.opts.MaxWait)
	}
	defer r.slots.Release(1)

	execCtx, cancelExec := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancelExec()

	var result T
	err = r.client.Transact(execCtx, &db.TxOptions{Isolation: r.opts.Isolation, Timeout: r.opts.Timeout}, func(tctx context.Context) error {
		val, err := unit(tctx)
		if err != nil {
			return err
		}
		result = val
		return nil
	})
	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !errors.IsTransient(err) {
			err = errors.Wrapf(errors.Timeout, "transaction exceeded %s: %w", r.opts.Timeout, err)
		}
		if errors.IsTransient(err) {
			r.metrics.ObserveTxnAttempt(metrics.OutcomeTransient)
		} else {
			r.metrics.ObserveTxnAttempt(metrics.OutcomeFailed)
		}
		return zero, err
	}
	r.metrics.ObserveTxnAttempt(metrics.OutcomeCommitted)
	return result, nil
}

// Do runs unit with Run and retries transient failures with the retry
// policy of the runner. Hooks passed in opts run after the runner's own
// accounting hook.
func Do[T any](ctx context.Context, r *Runner, unit Op[T], opts ...RetryOption) (T, error) {
	hook := WithRetryHook(func(attempt int, delay time.Duration, err error) {
		r.metrics.ObserveTxnRetry()
		r.logger.Warn("retrying transaction after transient failure",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
	})
	return WithRetry(ctx, func(ctx context.Context) (T, error) {
		return Run(ctx, r, unit)
	}, r.opts.MaxRetries, r.opts.BaseDelay, append([]RetryOption{hook}, opts...)...)
}
