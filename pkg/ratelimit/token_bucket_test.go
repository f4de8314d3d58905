package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestTokenBucketAllowAndRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	tb := NewTokenBucket(60, 2).WithClock(clock.now) // 每秒一个令牌

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "桶已空")
	assert.Equal(t, time.Second, tb.RetryAfter())

	clock.t = clock.t.Add(500 * time.Millisecond)
	assert.False(t, tb.Allow())

	clock.t = clock.t.Add(500 * time.Millisecond)
	assert.True(t, tb.Allow())

	// 长时间空闲也不会超过容量
	clock.t = clock.t.Add(time.Hour)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucketDefaultCapacity(t *testing.T) {
	tb := NewTokenBucket(10, 0)
	assert.Equal(t, 5.0, tb.capacity)

	tb = NewTokenBucket(1, 0)
	assert.Equal(t, 1.0, tb.capacity)
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 1) // 每分钟一个
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}
