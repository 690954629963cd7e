package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy 外部调用的重试策略；MaxAttempts<=1 表示不重试
type RetryPolicy struct {
	MaxAttempts uint
	Initial     time.Duration
}

// callWithRetry 每次尝试单独设置超时；父 context 取消后不再重试
func callWithRetry[T any](ctx context.Context, policy RetryPolicy, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, err := fn(callCtx)
		if err != nil && ctx.Err() != nil {
			return res, backoff.Permanent(errors.Join(ctx.Err(), err))
		}
		return res, err
	}

	if policy.MaxAttempts <= 1 {
		return attempt()
	}

	b := backoff.NewExponentialBackOff()
	if policy.Initial > 0 {
		b.InitialInterval = policy.Initial
	}
	b.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxAttempts),
		backoff.WithMaxElapsedTime(timeout*time.Duration(policy.MaxAttempts)),
	)
}
