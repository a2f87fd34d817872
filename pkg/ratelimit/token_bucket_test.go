package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 手动推进的时钟
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBucket(qpm, capacity int) (*TokenBucket, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	tb := NewTokenBucket(qpm, capacity)
	tb.now = clock.now
	tb.lastRefillTime = clock.t
	return tb, clock
}

func TestAllowConsumesAndRefills(t *testing.T) {
	tb, clock := newTestBucket(60, 2) // 每秒一个令牌

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "容量耗尽")
	assert.Equal(t, time.Second, tb.RetryAfter())

	clock.t = clock.t.Add(1500 * time.Millisecond)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	// 长时间空闲后不超过容量
	clock.t = clock.t.Add(time.Hour)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestDefaults(t *testing.T) {
	tb := NewTokenBucket(0, 0)
	assert.InDelta(t, 1.0, tb.rate, 1e-9)
	assert.InDelta(t, 30.0, tb.capacity, 1e-9)

	tb = NewTokenBucket(1, 0)
	assert.InDelta(t, 1.0, tb.capacity, 1e-9)
}

func TestWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestRetryWithBackoff(t *testing.T) {
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("503"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	permanent := errors.New("bad request")
	err = tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)

	calls = 0
	err = tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return Retryable(errors.New("still down"))
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls, "首次调用加3次重试")
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("invalid input"), false},
		{Retryable(errors.New("429")), true},
		{errors.New("dial tcp: connection refused"), true},
		{context.Canceled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsRetryable(tc.err), "%v", tc.err)
	}
	assert.Nil(t, Retryable(nil))
}
