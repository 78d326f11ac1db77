// Package cache байтовый кэш с TTL: LRU в памяти процесса или Redis.
// Поверх него ResultCache хранит ответы оптимизации, а провайдеры данных
// кэшируют свои выборки.
package cache

import (
	"context"
	"errors"
	"time"

	"siting/pkg/config"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var (
	ErrKeyNotFound = errors.New("cache: key not found")
	ErrCacheClosed = errors.New("cache: closed")
)

type Cache interface {
	// Get отдаёт ErrKeyNotFound для отсутствующей и просроченной записи
	Get(ctx context.Context, key string) ([]byte, error)
	// Set при ttl <= 0 берёт DefaultTTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Options struct {
	Backend    string
	DefaultTTL time.Duration

	// memory
	MaxEntries    int
	SweepInterval time.Duration

	// redis; несколько адресов через запятую дают cluster или sentinel клиента
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
	KeyPrefix     string
}

func DefaultOptions() *Options {
	return &Options{
		Backend:       BackendMemory,
		DefaultTTL:    15 * time.Minute,
		MaxEntries:    1000,
		SweepInterval: time.Minute,
		RedisAddr:     "localhost:6379",
		RedisPoolSize: 10,
		KeyPrefix:     "siting:",
	}
}

func FromConfig(cfg *config.CacheConfig) *Options {
	o := DefaultOptions()
	o.Backend = cfg.Driver
	o.DefaultTTL = cfg.DefaultTTL
	o.MaxEntries = cfg.MaxEntries
	o.RedisAddr = cfg.Address()
	o.RedisPassword = cfg.Password
	o.RedisDB = cfg.DB
	o.KeyPrefix = cfg.KeyPrefix
	return o
}

// New redis для BackendRedis, иначе память
func New(opts *Options) (Cache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Backend == BackendRedis {
		return NewRedisCache(opts)
	}
	return NewMemoryCache(opts), nil
}
