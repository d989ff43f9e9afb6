package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

func TestBreakerOpensAfterFailures(t *testing.T) {
	b := NewBreaker("redis", BreakerConfig{Failures: 2, Cooldown: time.Minute})
	calls := 0
	fail := func() error { calls++; return errDown }

	assert.ErrorIs(t, b.Do(fail), errDown)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Do(fail), errDown)
	assert.Equal(t, StateOpen, b.State())

	err := b.Do(fail)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, calls)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker("redis", BreakerConfig{Failures: 2, Cooldown: time.Minute})
	b.Do(func() error { return errDown })
	require.NoError(t, b.Do(func() error { return nil }))
	b.Do(func() error { return errDown })
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker("redis", BreakerConfig{Failures: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return now }

	b.Do(func() error { return errDown })
	require.Equal(t, StateOpen, b.State())

	now = now.Add(11 * time.Second)
	assert.ErrorIs(t, b.Do(func() error { return errDown }), errDown)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrOpen)

	now = now.Add(11 * time.Second)
	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "connect", RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errDown
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryGivesUp(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "connect", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		return errDown
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 2, attempts)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Retry(ctx, "connect", RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, func(context.Context) error {
		attempts++
		cancel()
		return errDown
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDelayGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, cfg.Delay(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Delay(2))
	assert.Equal(t, 350*time.Millisecond, cfg.Delay(3))
}
