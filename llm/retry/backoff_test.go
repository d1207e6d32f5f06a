package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryer_FirstAttemptSuccess(t *testing.T) {
	retryer := NewRetryer(&Policy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(10 * time.Millisecond),
	}, zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryer_RetryThenSuccess(t *testing.T) {
	retryer := NewRetryer(&Policy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(5 * time.Millisecond),
	}, zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

// 三次连续失败后错误浮出，总共恰好 3 次尝试，退避延迟近似 1x、2x 基准。
func TestRetryer_ExhaustedSurfacesLastError(t *testing.T) {
	base := 20 * time.Millisecond
	var delays []time.Duration
	retryer := NewRetryer(&Policy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(base),
		OnRetry: func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		},
	}, zap.NewNop())

	lastErr := errors.New("upstream unavailable")
	callCount := 0
	start := time.Now()
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return lastErr
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, lastErr)
	assert.Equal(t, 3, callCount)
	require.Len(t, delays, 2)
	assert.Equal(t, base, delays[0])
	assert.Equal(t, 2*base, delays[1])
	// 总耗时至少覆盖两次退避等待
	assert.GreaterOrEqual(t, elapsed, 3*base)
}

func TestRetryer_RetryIfStopsEarly(t *testing.T) {
	permanent := errors.New("permanent")
	retryer := NewRetryer(&Policy{
		MaxAttempts: 5,
		Backoff:     LinearBackoff(time.Millisecond),
		RetryIf:     func(err error) bool { return !errors.Is(err, permanent) },
	}, zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, callCount)
}

func TestRetryer_ContextCancelDuringBackoff(t *testing.T) {
	retryer := NewRetryer(&Policy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(time.Second),
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := retryer.Do(ctx, func() error {
		callCount++
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
}

func TestDoWithResultTyped(t *testing.T) {
	retryer := NewRetryer(&Policy{
		MaxAttempts: 2,
		Backoff:     LinearBackoff(time.Millisecond),
	}, zap.NewNop())

	calls := 0
	val, err := DoWithResultTyped[int](retryer, context.Background(), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestExponentialBackoff(t *testing.T) {
	fn := ExponentialBackoff(time.Second, 2.0, 5*time.Second)

	assert.Equal(t, time.Second, fn(1))
	assert.Equal(t, 2*time.Second, fn(2))
	assert.Equal(t, 4*time.Second, fn(3))
	assert.Equal(t, 5*time.Second, fn(4)) // capped
}
