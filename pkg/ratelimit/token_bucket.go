package ratelimit

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"
)

// ErrLimited 令牌不足且调用方选择不等待
var ErrLimited = errors.New("请求过于频繁")

// TokenBucket 实现令牌桶算法的限流器
type TokenBucket struct {
	rate           float64       // 每秒生成的令牌数
	capacity       float64       // 桶的容量
	tokens         float64       // 当前令牌数
	lastRefillTime time.Time     // 上次填充令牌的时间
	mutex          sync.Mutex    // 互斥锁，保证并发安全
	retryWaitTime  time.Duration // 首次重试等待时间，之后指数退避
	maxRetries     int           // 最大重试次数
	now            func() time.Time
}

// NewTokenBucket 创建一个新的令牌桶限流器，qpm 为每分钟请求数
func NewTokenBucket(qpm int, capacity int) *TokenBucket {
	if qpm <= 0 {
		qpm = 60
	}
	// 如果未指定容量，设置为QPM的一半
	if capacity <= 0 {
		capacity = qpm / 2
		if capacity <= 0 {
			capacity = 1
		}
	}

	return &TokenBucket{
		rate:           float64(qpm) / 60.0, // 转换为每秒速率
		capacity:       float64(capacity),
		tokens:         float64(capacity), // 初始填满
		lastRefillTime: time.Now(),
		retryWaitTime:  1 * time.Second,
		maxRetries:     3,
		now:            time.Now,
	}
}

// WithRetryPolicy 设置重试策略
func (tb *TokenBucket) WithRetryPolicy(waitTime time.Duration, maxRetries int) *TokenBucket {
	if waitTime > 0 {
		tb.retryWaitTime = waitTime
	}
	if maxRetries >= 0 {
		tb.maxRetries = maxRetries
	}
	return tb
}

// refill 根据经过的时间填充令牌，调用方持有锁
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	tb.lastRefillTime = now

	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

// Allow 判断是否允许通过一个请求，消耗一个令牌
func (tb *TokenBucket) Allow() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// RetryAfter 距离下一个令牌可用的时间，有令牌时返回0
func (tb *TokenBucket) RetryAfter() time.Duration {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		return 0
	}
	return time.Duration((1.0 - tb.tokens) / tb.rate * float64(time.Second))
}

// Wait 等待直到有令牌可用
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mutex.Lock()
		tb.refill()

		if tb.tokens >= 1.0 {
			tb.tokens -= 1.0
			tb.mutex.Unlock()
			return nil
		}

		waitTime := time.Duration((1.0 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mutex.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// RetryWithBackoff 取得令牌后执行 fn，可重试的错误按指数退避重试
func (tb *TokenBucket) RetryWithBackoff(ctx context.Context, fn func() error) error {
	var err error

	for retry := 0; retry <= tb.maxRetries; retry++ {
		if err = tb.Wait(ctx); err != nil {
			return err
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || retry >= tb.maxRetries {
			return err
		}

		backoffTime := tb.retryWaitTime * time.Duration(1<<uint(retry))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffTime):
		}
	}

	return err
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable 标记错误可重试，例如下游返回 429 或 503
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// 底层连接错误常被多层包装，只能按消息判断
	return containsAny(err.Error(), []string{
		"connection reset",
		"connection refused",
		"EOF",
		"no such host",
	})
}

func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if substr != "" && strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
