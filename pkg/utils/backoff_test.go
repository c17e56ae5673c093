package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyExhausts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Delay: 0}
	calls := 0
	notified := []int{}

	err := policy.Retry(context.Background(), func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		return errors.New("connection refused")
	}, func(attempt int, err error, _ time.Duration) {
		notified = append(notified, attempt)
	})

	assert.EqualError(t, err, "connection refused")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
	calls := 0

	err := policy.Retry(context.Background(), func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("timeout")
		}
		return nil
	}, nil)

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicyZeroAttemptsRunsOnce(t *testing.T) {
	policy := RetryPolicy{}
	calls := 0
	err := policy.Retry(context.Background(), func(int) error {
		calls++
		return errors.New("nope")
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, Delay: time.Hour}
	calls := 0

	err := policy.Retry(ctx, func(int) error {
		calls++
		cancel()
		return errors.New("unreachable")
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
