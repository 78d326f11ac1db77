package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisCache_Unreachable(t *testing.T) {
	start := time.Now()
	_, err := NewRedisCache(&Options{RedisAddr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping 127.0.0.1:1")
	assert.Less(t, time.Since(start), pingTimeout+time.Second)
}

func TestUniversalOptions(t *testing.T) {
	o := universalOptions(&Options{RedisAddr: "r1:6379, r2:6379,", RedisDB: 3})
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, o.Addrs)
	assert.Equal(t, 3, o.DB)
	assert.Equal(t, 10, o.PoolSize)

	o = universalOptions(&Options{RedisAddr: "redis:6379", RedisPoolSize: 4})
	assert.Equal(t, []string{"redis:6379"}, o.Addrs)
	assert.Equal(t, 4, o.PoolSize)
}

func TestRedisCache_ErrorsAreNotMisses(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	c := newRedisCache(rdb, DefaultOptions())
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
}
