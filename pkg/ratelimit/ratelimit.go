// Package ratelimit ограничивает частоту вызовов API по ключу клиента.
// Вызов списывает из окна столько единиц, сколько стоит метод.
package ratelimit

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"siting/pkg/config"
)

// ErrClosed лимитер закрыт
var ErrClosed = errors.New("rate limiter is closed")

// Стратегии
const (
	SlidingWindow = "sliding_window"
	TokenBucket   = "token_bucket"
)

// Decision итог проверки. При отказе RetryAfter подсказывает, когда
// в окне освободится хотя бы cost единиц.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter общий интерфейс memory и redis лимитеров
type Limiter interface {
	// Take списывает cost единиц с ключа, если они есть
	Take(ctx context.Context, key string, cost int) (Decision, error)
	Close() error
}

// Config параметры лимитера
type Config struct {
	Requests        int
	Window          time.Duration
	Strategy        string
	BurstSize       int
	Backend         string
	CleanupInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// DefaultConfig 100 запросов в минуту на клиента
func DefaultConfig() *Config {
	return &Config{
		Requests:        100,
		Window:          time.Minute,
		Strategy:        SlidingWindow,
		Backend:         "memory",
		BurstSize:       10,
		CleanupInterval: 5 * time.Minute,
		KeyPrefix:       "siting:ratelimit:",
	}
}

// FromConfig переводит секцию rate_limit в параметры лимитера
func FromConfig(c config.RateLimitConfig) *Config {
	cfg := DefaultConfig()
	cfg.Requests = c.Requests
	cfg.Window = c.Window
	cfg.BurstSize = c.BurstSize
	cfg.RedisAddr = c.RedisAddr
	if c.Strategy != "" {
		cfg.Strategy = c.Strategy
	}
	if c.Backend != "" {
		cfg.Backend = c.Backend
	}
	if c.CleanupInterval > 0 {
		cfg.CleanupInterval = c.CleanupInterval
	}
	return cfg
}

// New выбирает реализацию по Backend; неизвестный backend работает в памяти
func New(cfg *Config) (Limiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Backend == "redis" {
		l, err := NewRedisLimiter(cfg)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return NewMemoryLimiter(cfg), nil
}

// Meta сведения о запросе в нижнем регистре: x-forwarded-for, x-real-ip,
// x-user-id, :authority (адрес пира)
type Meta map[string]string

// KeyFunc строит ключ лимита для вызова
type KeyFunc func(method string, md Meta) string

// KeyByIP адрес клиента с учётом прокси
func KeyByIP(_ string, md Meta) string {
	for _, h := range []string{"x-forwarded-for", "x-real-ip", ":authority"} {
		if v := md[h]; v != "" {
			return v
		}
	}
	return "unknown"
}

// KeyByUser пользователь, без него адрес
func KeyByUser(method string, md Meta) string {
	if id := md["x-user-id"]; id != "" {
		return "user:" + id
	}
	return KeyByIP(method, md)
}

// KeyByMethod один счётчик на метод для всех клиентов
func KeyByMethod(method string, _ Meta) string {
	return method
}

// JoinKeys склеивает ключи через ':'
func JoinKeys(fns ...KeyFunc) KeyFunc {
	return func(method string, md Meta) string {
		parts := make([]string, len(fns))
		for i, fn := range fns {
			parts[i] = fn(method, md)
		}
		return strings.Join(parts, ":")
	}
}

// KeyFuncFor ip (по умолчанию), user, method, ip_method
func KeyFuncFor(name string) KeyFunc {
	switch name {
	case "user":
		return KeyByUser
	case "method":
		return KeyByMethod
	case "ip_method":
		return JoinKeys(KeyByIP, KeyByMethod)
	default:
		return KeyByIP
	}
}

// MethodCosts стоимость метода по короткому имени. Прогоны оптимизации
// дороже чтения истории.
type MethodCosts map[string]int

// Cost стоимость полного имени метода, не меньше 1
func (m MethodCosts) Cost(fullMethod string) int {
	if c := m[path.Base(fullMethod)]; c > 0 {
		return c
	}
	return 1
}
