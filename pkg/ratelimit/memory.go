package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// meter состояние одного ключа
type meter interface {
	take(now time.Time, cost int) Decision
	idle(now time.Time) bool
}

// MemoryLimiter лимитер в памяти процесса
type MemoryLimiter struct {
	cfg    Config
	now    func() time.Time
	newFn  func(now time.Time) meter
	mu     sync.Mutex
	meters map[string]meter
	done   chan struct{}
	closed bool
}

// NewMemoryLimiter создаёт лимитер и запускает чистку простаивающих ключей
func NewMemoryLimiter(cfg *Config) *MemoryLimiter {
	c := *DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultConfig().CleanupInterval
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}

	l := &MemoryLimiter{
		cfg:    c,
		now:    time.Now,
		meters: make(map[string]meter),
		done:   make(chan struct{}),
	}
	switch c.Strategy {
	case TokenBucket:
		l.newFn = func(now time.Time) meter { return newBucket(c, now) }
	default:
		l.newFn = func(time.Time) meter { return &slidingLog{limit: c.Requests, window: c.Window} }
	}

	go l.sweep()
	return l
}

// Take реализует Limiter
func (l *MemoryLimiter) Take(_ context.Context, key string, cost int) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Decision{}, ErrClosed
	}

	cost = max(cost, 1)
	now := l.now()
	m, ok := l.meters[key]
	if !ok {
		m = l.newFn(now)
		l.meters[key] = m
	}
	return m.take(now, cost), nil
}

// Close останавливает чистку; повторный вызов безопасен
func (l *MemoryLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		l.closed = true
		l.meters = nil
		close(l.done)
	}
	return nil
}

func (l *MemoryLimiter) sweep() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, m := range l.meters {
				if m.idle(now) {
					delete(l.meters, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// slidingLog хранит время каждого списания в окне
type slidingLog struct {
	limit  int
	window time.Duration
	hits   []time.Time
}

func (s *slidingLog) evict(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.hits) && !s.hits[i].After(cutoff) {
		i++
	}
	s.hits = s.hits[i:]
}

func (s *slidingLog) take(now time.Time, cost int) Decision {
	s.evict(now)

	d := Decision{Limit: s.limit, ResetAt: now.Add(s.window)}
	if len(s.hits) > 0 {
		d.ResetAt = s.hits[0].Add(s.window)
	}

	if len(s.hits)+cost <= s.limit {
		for i := 0; i < cost; i++ {
			s.hits = append(s.hits, now)
		}
		d.Allowed = true
		d.Remaining = s.limit - len(s.hits)
		d.ResetAt = s.hits[0].Add(s.window)
		return d
	}

	d.Remaining = max(0, s.limit-len(s.hits))
	// освободиться должно столько старых списаний, чтобы влез cost
	need := len(s.hits) + cost - s.limit
	if need <= len(s.hits) {
		d.RetryAfter = s.hits[need-1].Add(s.window).Sub(now)
	} else {
		d.RetryAfter = s.window
	}
	return d
}

func (s *slidingLog) idle(now time.Time) bool {
	s.evict(now)
	return len(s.hits) == 0
}

// tokenBucket пополняется со скоростью Requests/Window, ёмкость Requests+BurstSize
type tokenBucket struct {
	capacity float64
	rate     float64 // токенов в секунду
	tokens   float64
	last     time.Time
}

func newBucket(c Config, now time.Time) *tokenBucket {
	capacity := float64(c.Requests + c.BurstSize)
	return &tokenBucket{
		capacity: capacity,
		rate:     float64(c.Requests) / c.Window.Seconds(),
		tokens:   capacity,
		last:     now,
	}
}

func (b *tokenBucket) refill(now time.Time) {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.rate)
	}
	b.last = now
}

func (b *tokenBucket) untilTokens(n float64) time.Duration {
	if b.tokens >= n || b.rate <= 0 {
		return 0
	}
	return time.Duration((n - b.tokens) / b.rate * float64(time.Second))
}

func (b *tokenBucket) take(now time.Time, cost int) Decision {
	b.refill(now)

	d := Decision{Limit: int(b.capacity)}
	if b.tokens >= float64(cost) {
		b.tokens -= float64(cost)
		d.Allowed = true
	} else {
		d.RetryAfter = b.untilTokens(float64(cost))
	}
	d.Remaining = int(b.tokens)
	d.ResetAt = now.Add(b.untilTokens(b.capacity))
	return d
}

func (b *tokenBucket) idle(now time.Time) bool {
	b.refill(now)
	return b.tokens >= b.capacity
}
