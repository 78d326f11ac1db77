package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// RedisCache общий для реплик кэш; все ключи получают KeyPrefix
type RedisCache struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisCache подключается и проверяет соединение PING
func NewRedisCache(opts *Options) (*RedisCache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	rdb := redis.NewUniversalClient(universalOptions(opts))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.RedisAddr, err)
	}
	return newRedisCache(rdb, opts), nil
}

// universalOptions один адрес даёт обычный клиент, несколько cluster клиент
func universalOptions(o *Options) *redis.UniversalOptions {
	var addrs []string
	for a := range strings.SplitSeq(o.RedisAddr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	pool := o.RedisPoolSize
	if pool <= 0 {
		pool = 10
	}
	return &redis.UniversalOptions{
		Addrs:    addrs,
		Password: o.RedisPassword,
		DB:       o.RedisDB,
		PoolSize: pool,
	}
}

func newRedisCache(rdb redis.UniversalClient, opts *Options) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: opts.DefaultTTL, prefix: opts.KeyPrefix}
}

// Get ошибки соединения возвращаются как есть, промахом считается только redis.Nil
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+key).Err()
}

func (c *RedisCache) Close() error { return c.rdb.Close() }
