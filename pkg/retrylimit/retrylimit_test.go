package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpErr struct{ code int }

func (e httpErr) Error() string   { return "http error" }
func (e httpErr) StatusCode() int { return e.code }

func fastConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		RateLimitDelay: time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil, fastConfig(10))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnFatal(t *testing.T) {
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return &FatalError{Err: errors.New("bad token")}
	}, nil, fastConfig(10))

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var fatal *FatalError
	assert.True(t, errors.As(err, &fatal))
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return errors.New("always")
	}, nil, fastConfig(4))

	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetryConfig(ctx, func() error {
		return errors.New("never reached after cancel")
	}, nil, fastConfig(0))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiterAdjustsOnOutcome(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1, 20, 2, 0.5)

	lim.RateLimited()
	assert.InDelta(t, 5.0, lim.CurrentLimit(), 0.01)

	lim.RateLimited()
	lim.RateLimited()
	lim.RateLimited()
	assert.InDelta(t, 1.0, lim.CurrentLimit(), 0.01, "never drops below min")
}

func TestLimiterRecoversAfterQuietPeriod(t *testing.T) {
	lim := NewAdaptiveLimiter(5, 1, 20, 1, 0.5)

	// Success right after an error must not raise the limit.
	lim.RateLimited()
	floor := lim.CurrentLimit()
	lim.Success()
	assert.InDelta(t, floor, lim.CurrentLimit(), 0.01)

	// After the hold-off window passes, success raises it again.
	lim.lastError = time.Now().Add(-time.Minute)
	lim.Success()
	assert.InDelta(t, floor+1, lim.CurrentLimit(), 0.01)
}

func TestRateLimitErrorClassification(t *testing.T) {
	assert.True(t, DefaultClassifier(httpErr{code: 429}))
	assert.True(t, DefaultClassifier(httpErr{code: 503}))
	assert.False(t, DefaultClassifier(httpErr{code: 404}))
	assert.False(t, DefaultClassifier(errors.New("plain")))
}

func TestWithRetryRateLimitPath(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1, 20, 1, 0.5)

	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		if calls == 1 {
			return httpErr{code: 429}
		}
		return nil
	}, lim, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Less(t, lim.CurrentLimit(), 10.0)
}
