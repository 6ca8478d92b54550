// Package retry runs an operation a bounded number of times with a delay
// between attempts, independent of what the operation does.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes how many times an operation is attempted and how long to
// wait between attempts.
type Policy struct {
	Attempts int
	Delay    time.Duration
	// Linear makes the n-th wait n*Delay instead of a constant Delay
	Linear bool
}

// ConstantPolicy waits the same delay before every retry
func ConstantPolicy(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay}
}

// LinearPolicy waits step, 2*step, 3*step, ... before successive retries
func LinearPolicy(attempts int, step time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: step, Linear: true}
}

func (p Policy) tries() uint {
	if p.Attempts < 1 {
		return 1
	}
	return uint(p.Attempts)
}

func (p Policy) backOff() backoff.BackOff {
	if p.Linear {
		return &linearBackOff{step: p.Delay}
	}
	return backoff.NewConstantBackOff(p.Delay)
}

// NotifyFunc is called after each failed attempt that will be retried
type NotifyFunc func(attempt int, err error, wait time.Duration)

// Do runs op until it succeeds, returns a permanent error, the policy's
// attempts are exhausted or ctx is done. The last error is returned.
func Do[T any](ctx context.Context, p Policy, notify NotifyFunc, op func() (T, error)) (T, error) {
	attempt := 0
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.tries()),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}))
	}
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		return op()
	}, opts...)
}

// Run is Do for operations without a result
func Run(ctx context.Context, p Policy, notify NotifyFunc, op func() error) error {
	_, err := Do(ctx, p, notify, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() {
	b.n = 0
}
