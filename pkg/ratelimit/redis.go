package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingLogScript атомарно чистит окно и списывает cost единиц.
// Возвращает {allowed, занято после вызова, время самой старой записи в мс}.
var slidingLogScript = redis.NewScript(`
local key    = KEYS[1]
local limit  = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now    = tonumber(ARGV[3])
local cost   = tonumber(ARGV[4])
local nonce  = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local used = redis.call('ZCARD', key)
local allowed = 0
if used + cost <= limit then
	for i = 1, cost do
		redis.call('ZADD', key, now, nonce .. ':' .. i)
	end
	used = used + cost
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end
return {allowed, used, oldest}
`)

// RedisLimiter общий для нескольких реплик шлюза лимитер. Работает
// скользящим окном независимо от Strategy.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
}

// NewRedisLimiter подключается к Redis и проверяет соединение
func NewRedisLimiter(cfg *Config) (*RedisLimiter, error) {
	c := *DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.RedisAddr, err)
	}

	return &RedisLimiter{client: client, cfg: c}, nil
}

// Take реализует Limiter
func (l *RedisLimiter) Take(ctx context.Context, key string, cost int) (Decision, error) {
	cost = max(cost, 1)
	now := time.Now()
	nowMs := now.UnixMilli()
	windowMs := l.cfg.Window.Milliseconds()
	nonce := strconv.FormatInt(now.UnixNano(), 36)

	res, err := slidingLogScript.Run(ctx, l.client, []string{l.cfg.KeyPrefix + key},
		l.cfg.Requests, windowMs, nowMs, cost, nonce).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	resetAt := time.UnixMilli(res[2] + windowMs)
	d := Decision{
		Allowed:   res[0] == 1,
		Limit:     l.cfg.Requests,
		Remaining: max(0, l.cfg.Requests-int(res[1])),
		ResetAt:   resetAt,
	}
	if !d.Allowed {
		d.RetryAfter = max(0, resetAt.Sub(now))
	}
	return d, nil
}

// Close закрывает соединение
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
