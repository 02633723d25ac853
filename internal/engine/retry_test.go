package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestRetryWithBackoff_SucceedsFirstTry(t *testing.T) {
	calls := 0
	attempts, err := RetryWithBackoff(context.Background(), quickPolicy(3), func() error {
		calls++
		return nil
	}, func(error) bool { return true })

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_RetriesTransient(t *testing.T) {
	calls := 0
	attempts, err := RetryWithBackoff(context.Background(), quickPolicy(4), func() error {
		calls++
		if calls < 3 {
			return errors.New("throttled")
		}
		return nil
	}, func(error) bool { return true })

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_StopsOnPermanent(t *testing.T) {
	permanent := errors.New("access denied")
	calls := 0
	attempts, err := RetryWithBackoff(context.Background(), quickPolicy(4), func() error {
		calls++
		return permanent
	}, func(error) bool { return false })

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	transient := errors.New("service unavailable")
	calls := 0
	attempts, err := RetryWithBackoff(context.Background(), quickPolicy(3), func() error {
		calls++
		return transient
	}, func(error) bool { return true })

	require.ErrorIs(t, err, transient)
	assert.ErrorContains(t, err, "max attempts (3) exhausted")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := &RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}
	calls := 0
	_, err := RetryWithBackoff(ctx, policy, func() error {
		calls++
		cancel()
		return errors.New("throttled")
	}, func(error) bool { return true })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffDelay_Bounded(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 20; i++ {
			d := backoffDelay(attempt, base, max)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, max)
		}
	}
}
