package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rohmanhakim/threadwatch/pkg/failure"
	"github.com/rohmanhakim/threadwatch/pkg/retry"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultBackoffParam() timeutil.BackoffParam {
	return timeutil.NewBackoffParam(10*time.Millisecond, 2.0, 30*time.Second)
}

func newParams(maxAttempts int, clock timeutil.Clock) retry.RetryParam {
	return retry.NewRetryParam(0, 0, 42, maxAttempts, defaultBackoffParam()).WithClock(clock)
}

// mockError is a mock implementation of failure.ClassifiedError for testing
type mockError struct {
	msg       string
	retryable bool
	severity  failure.Severity
}

func (m *mockError) Error() string              { return m.msg }
func (m *mockError) Severity() failure.Severity { return m.severity }
func (m *mockError) IsRetryable() bool          { return m.retryable }

// plainClassified does not report retryability.
type plainClassified struct{}

func (plainClassified) Error() string              { return "plain" }
func (plainClassified) Severity() failure.Severity { return failure.SeverityRecoverable }

func transient() *mockError {
	return &mockError{msg: "transient error", retryable: true, severity: failure.SeverityRecoverable}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Unix(0, 0))
	callCount := 0

	result := retry.Retry(context.Background(), newParams(3, clock), func() (string, failure.ClassifiedError) {
		callCount++
		return "success", nil
	})

	require.True(t, result.IsSuccess())
	assert.Equal(t, "success", result.Value())
	assert.Equal(t, 1, result.Attempts())
	assert.Equal(t, 1, callCount)
	assert.Empty(t, clock.Sleeps())
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Unix(0, 0))
	callCount := 0

	result := retry.Retry(context.Background(), newParams(5, clock), func() (string, failure.ClassifiedError) {
		callCount++
		if callCount < 3 {
			return "", transient()
		}
		return "success", nil
	})

	require.True(t, result.IsSuccess())
	assert.Equal(t, 3, result.Attempts())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, clock.Sleeps())
}

func TestRetry_NonRetryableErrorReturnsImmediately(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Unix(0, 0))
	expectedErr := &mockError{msg: "fatal error", retryable: false, severity: failure.SeverityFatal}
	callCount := 0

	result := retry.Retry(context.Background(), newParams(5, clock), func() (string, failure.ClassifiedError) {
		callCount++
		return "", expectedErr
	})

	require.True(t, result.IsFailure())
	assert.Equal(t, 1, callCount)
	assert.Equal(t, 1, result.Attempts())
	assert.Same(t, expectedErr, result.Err())
}

func TestRetry_ExhaustedAttempts(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Unix(0, 0))
	last := transient()
	callCount := 0

	result := retry.Retry(context.Background(), newParams(3, clock), func() (int, failure.ClassifiedError) {
		callCount++
		return 0, last
	})

	require.True(t, result.IsFailure())
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, result.Attempts())
	assert.Equal(t, failure.SeverityRecoverable, result.Err().Severity())

	var retryErr *retry.RetryError
	require.True(t, errors.As(result.Err(), &retryErr))
	assert.Equal(t, retry.RetryErrorCause(retry.ErrExhaustedAttempts), retryErr.Cause)

	var lastErr *mockError
	require.True(t, errors.As(result.Err(), &lastErr))
	assert.Same(t, last, lastErr)
}

func TestRetry_MaxAttemptsLessThanOne(t *testing.T) {
	result := retry.Retry(context.Background(), newParams(0, nil), func() (string, failure.ClassifiedError) {
		return "success", nil
	})

	require.True(t, result.IsFailure())
	var retryErr *retry.RetryError
	require.True(t, errors.As(result.Err(), &retryErr))
	assert.Equal(t, retry.RetryErrorCause(retry.ErrZeroAttempt), retryErr.Cause)
	assert.Zero(t, result.Attempts())
}

func TestRetry_DefaultRetryableWhenNoIsRetryable(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Unix(0, 0))
	callCount := 0

	result := retry.Retry(context.Background(), newParams(2, clock), func() (string, failure.ClassifiedError) {
		callCount++
		return "", plainClassified{}
	})

	require.True(t, result.IsFailure())
	assert.Equal(t, 2, callCount)
}

func TestRetry_BaseDelayIsFloor(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Unix(0, 0))
	params := retry.NewRetryParam(time.Second, 0, 42, 2, defaultBackoffParam()).WithClock(clock)

	_ = retry.Retry(context.Background(), params, func() (string, failure.ClassifiedError) {
		return "", transient()
	})

	assert.Equal(t, []time.Duration{time.Second}, clock.Sleeps())
}

func TestRetry_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	result := retry.Retry(ctx, newParams(5, timeutil.NewFakeClock(time.Unix(0, 0))), func() (string, failure.ClassifiedError) {
		callCount++
		cancel()
		return "", transient()
	})

	require.True(t, result.IsFailure())
	assert.Equal(t, 1, callCount)
	var retryErr *retry.RetryError
	require.True(t, errors.As(result.Err(), &retryErr))
	assert.Equal(t, retry.RetryErrorCause(retry.ErrCancelled), retryErr.Cause)
	assert.Equal(t, failure.SeverityFatal, retryErr.Severity())
}

func TestRetryErrorType(t *testing.T) {
	err := &retry.RetryError{Message: "m", Cause: retry.ErrExhaustedAttempts, Retryable: true}

	assert.True(t, errors.Is(err, &retry.RetryError{}))
	assert.True(t, err.IsRetryable())
	assert.Contains(t, err.Error(), "exhausted attempt")
}
