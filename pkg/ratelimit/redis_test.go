package ratelimit

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestLimiter(t *testing.T, requests int) *RedisLimiter {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping Redis tests")
	}

	l, err := NewRedisLimiter(&Config{
		Requests:  requests,
		Window:    time.Minute,
		RedisAddr: addr,
		KeyPrefix: "siting-test:ratelimit:" + strconv.FormatInt(time.Now().UnixNano(), 36) + ":",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRedisLimiter_Take(t *testing.T) {
	l := newRedisTestLimiter(t, 5)
	ctx := context.Background()

	d, err := l.Take(ctx, "client", 3)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)

	d, err = l.Take(ctx, "client", 3)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	d, err = l.Take(ctx, "client", 2)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestNewRedisLimiter_Unreachable(t *testing.T) {
	_, err := NewRedisLimiter(&Config{RedisAddr: "127.0.0.1:1", Requests: 1, Window: time.Second})
	assert.Error(t, err)
}
