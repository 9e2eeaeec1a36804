package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lcrs-go/internal/config"
	"lcrs-go/pkg/log"
)

// RetryPolicy 是对所有提供商调用统一生效的重试策略：
// 最多 MaxAttempts 次尝试，失败后按指数退避等待（BaseBackoff 起步，
// 每次翻倍，不超过 MaxBackoff）。上下文取消会立即中止等待且不再重试。
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// NewRetryPolicy 从配置构造重试策略，零值字段使用缺省值。
func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	policy := RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseBackoff: time.Duration(cfg.BaseBackoffSecond) * time.Second,
		MaxBackoff:  time.Duration(cfg.MaxBackoffSecond) * time.Second,
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = 2 * time.Second
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = 10 * time.Second
	}
	return policy
}

// Do 执行 op，失败后按策略重试。
// 上下文错误不重试；重试耗尽后返回的错误保留最后一次失败的错误链。
func (p RetryPolicy) Do(ctx context.Context, label string, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := p.BaseBackoff * time.Duration(1<<(attempt-2))
			if backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
			log.Warnf("[RetryPolicy] %s 第 %d 次尝试, 退避 %s", label, attempt, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		// 调用方已经离开，继续重试没有意义
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, p.MaxAttempts, lastErr)
}
