package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// BackoffFunc 根据已失败的尝试次数（从 1 开始）计算下一次等待时长。
type BackoffFunc func(failures int) time.Duration

// LinearBackoff 线性退避：base, 2*base, 3*base, ...
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(failures int) time.Duration {
		if failures < 1 {
			failures = 1
		}
		return time.Duration(failures) * base
	}
}

// ExponentialBackoff 指数退避：initial, initial*multiplier, ... 上限 max。
func ExponentialBackoff(initial time.Duration, multiplier float64, max time.Duration) BackoffFunc {
	return func(failures int) time.Duration {
		delay := float64(initial)
		for i := 1; i < failures; i++ {
			delay *= multiplier
			if delay >= float64(max) {
				return max
			}
		}
		return time.Duration(delay)
	}
}

// Policy 定义重试策略：最大尝试次数 + 退避函数 + 错误过滤。
// 策略对象与被重试的调用本身解耦，由通用的重试器执行。
type Policy struct {
	MaxAttempts int                                               // 总尝试次数（含首次），最小 1
	Backoff     BackoffFunc                                       // 退避函数，nil 使用线性 1s 基准
	RetryIf     func(err error) bool                              // 返回 false 时立即放弃，nil 重试所有错误
	OnRetry     func(attempt int, err error, delay time.Duration) // 重试回调
}

// DefaultPolicy 返回默认策略：3 次尝试，线性退避 1s 基准。
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(time.Second),
	}
}

// Retryer 重试器接口。
type Retryer interface {
	// Do 执行函数，失败时根据策略重试
	Do(ctx context.Context, fn func() error) error

	// DoWithResult 执行函数并返回结果，失败时根据策略重试
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger
}

// NewRetryer 创建基于策略的重试器。
func NewRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Backoff == nil {
		policy.Backoff = LinearBackoff(time.Second)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{policy: policy, logger: logger}
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// DoWithResult 核心重试逻辑：退避等待期间监听 ctx 取消。
// 重试次数耗尽后返回最后一次的错误。
func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.policy.Backoff(attempt - 1)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if r.policy.RetryIf != nil && !r.policy.RetryIf(err) {
			r.logger.Debug("error not retryable", zap.Error(err))
			return nil, err
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return nil, lastErr
}
