package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient failure")

func fastOpts() []Option {
	return []Option{
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
		WithJitter(0),
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errTransient)
		}
		return nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustedRetriesReturnUnwrapped(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errTransient)
	}, fastOpts()...)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// the wrapper is stripped before the error reaches the caller
	assert.Equal(t, errTransient, err)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	permanent := errors.New("no such record")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(permanent)
	}, fastOpts()...)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, permanent, err)
}

func TestDo_UnwrappedErrorsAreNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, fastOpts()...)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIfOverridesWrapping(t *testing.T) {
	calls := 0
	opts := append(fastOpts(), WithRetryIf(func(err error) bool {
		return errors.Is(err, errTransient)
	}))
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errTransient
		}
		return nil
	}, opts...)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return Retryable(errTransient)
	}, WithMaxAttempts(5), WithInitialDelay(time.Minute))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	opts := append(fastOpts(), WithOnRetry(func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
		assert.True(t, errors.Is(err, errTransient))
	}))

	_ = Do(context.Background(), func(context.Context) error {
		return Retryable(errTransient)
	}, opts...)

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	got, err := DoWithData(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", Retryable(errTransient)
		}
		return "value", nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, "value", got)
	assert.Equal(t, 2, calls)
}

func TestIsRetryableAndIsPermanent(t *testing.T) {
	assert.True(t, IsRetryable(Retryable(errTransient)))
	assert.False(t, IsRetryable(errTransient))
	assert.False(t, IsRetryable(nil))

	assert.True(t, IsPermanent(Permanent(errTransient)))
	assert.False(t, IsPermanent(errTransient))

	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))
}

func TestCalculateDelay_Backoff(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(40*time.Millisecond),
		WithMultiplier(2.0),
		WithJitter(0),
	)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(3))
	// capped at MaxDelay
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(4))
}
