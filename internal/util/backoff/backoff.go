// Package backoff 计算断线重连的等待时间。
// 用于 feed 订阅端重连：指数增长、封顶、带抖动，避免所有订阅者同时重连。
package backoff

import (
	"context"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
)

// Backoff 指数退避计算器（非并发安全，每个连接持有一个）
// 间隔由 cenkalti ExponentialBackOff 计算，不设总时长上限
type Backoff struct {
	eb *cbackoff.ExponentialBackOff
	// attempt 连续失败次数
	attempt int
}

// New 创建退避计算器
// jitter 为抖动比例，0.2 表示 ±20%；超出 [0,1] 时被截断
func New(base, max time.Duration, jitter float64) *Backoff {
	if base <= 0 {
		base = time.Millisecond
	}
	if max < base {
		max = base
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	eb := cbackoff.NewExponentialBackOff()
	eb.InitialInterval = base
	eb.MaxInterval = max
	eb.Multiplier = 2
	eb.RandomizationFactor = jitter
	eb.MaxElapsedTime = 0
	eb.Reset()
	return &Backoff{eb: eb}
}

// NewDefault 基础 500ms，上限 15s，抖动 ±20%
func NewDefault() *Backoff {
	return New(500*time.Millisecond, 15*time.Second, 0.2)
}

// Next 返回下一次等待时间：min(base*2^attempt, max) 再乘以 (1±jitter)
func (b *Backoff) Next() time.Duration {
	b.attempt++
	return b.eb.NextBackOff()
}

// Wait 等待 Next() 时长；ctx 取消时立即返回 ctx 错误
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Reset 连接成功后调用
func (b *Backoff) Reset() {
	b.attempt = 0
	b.eb.Reset()
}

// Attempt 返回连续失败次数
func (b *Backoff) Attempt() int {
	return b.attempt
}
