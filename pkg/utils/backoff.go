package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 5 * time.Second
)

// RetryPolicy bounds how many times an operation is attempted and how long to
// wait between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultRetryAttempts, Delay: DefaultRetryDelay}
}

// BackOff returns a constant backoff allowing MaxAttempts-1 retries that stops
// as soon as ctx is done.
func (p RetryPolicy) BackOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

// Retry runs op until it succeeds or the policy is exhausted. notify is called
// after every failed attempt that will be retried. The returned error is the
// last failure, or the context error when ctx ended first.
func (p RetryPolicy) Retry(ctx context.Context, op func(attempt int) error, notify func(attempt int, err error, wait time.Duration)) error {
	attempt := 0
	operation := func() error {
		attempt++
		return op(attempt)
	}
	var n backoff.Notify
	if notify != nil {
		n = func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}
	}
	return backoff.RetryNotify(operation, p.BackOff(ctx), n)
}
