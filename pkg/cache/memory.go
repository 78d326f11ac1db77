package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// lru без синхронизации; front самая свежая запись
type lru struct {
	limit int
	order *list.List
	index map[string]*list.Element
}

type item struct {
	key     string
	value   []byte
	expires time.Time // zero без срока
}

func (it *item) stale(now time.Time) bool {
	return !it.expires.IsZero() && !now.Before(it.expires)
}

func newLRU(limit int) *lru {
	return &lru{limit: limit, order: list.New(), index: map[string]*list.Element{}}
}

func (l *lru) get(key string, now time.Time) (*item, bool) {
	el, ok := l.index[key]
	if !ok {
		return nil, false
	}
	it := el.Value.(*item)
	if it.stale(now) {
		l.remove(el)
		return nil, false
	}
	l.order.MoveToFront(el)
	return it, true
}

// put вытесняет хвост, пока не освободится место
func (l *lru) put(it *item) {
	if el, ok := l.index[it.key]; ok {
		el.Value = it
		l.order.MoveToFront(el)
		return
	}
	for l.order.Len() >= l.limit {
		l.remove(l.order.Back())
	}
	l.index[it.key] = l.order.PushFront(it)
}

func (l *lru) delete(key string) {
	if el, ok := l.index[key]; ok {
		l.remove(el)
	}
}

// sweep удаляет просроченные записи с хвоста к голове
func (l *lru) sweep(now time.Time) (removed int) {
	for el := l.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*item).stale(now) {
			l.remove(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (l *lru) remove(el *list.Element) {
	delete(l.index, l.order.Remove(el).(*item).key)
}

func (l *lru) len() int { return l.order.Len() }

// MemoryCache LRU с TTL для одного процесса. Просроченные записи удаляются
// при чтении и фоновым проходом раз в SweepInterval.
type MemoryCache struct {
	mu     sync.Mutex
	lru    *lru
	ttl    time.Duration
	closed bool

	stop chan struct{}
	done chan struct{}
	now  func() time.Time
}

func NewMemoryCache(opts *Options) *MemoryCache {
	if opts == nil {
		opts = DefaultOptions()
	}
	limit := opts.MaxEntries
	if limit <= 0 {
		limit = 1000
	}
	every := opts.SweepInterval
	if every <= 0 {
		every = time.Minute
	}

	c := &MemoryCache{
		lru:  newLRU(limit),
		ttl:  opts.DefaultTTL,
		stop: make(chan struct{}),
		done: make(chan struct{}),
		now:  time.Now,
	}
	go c.sweeper(every)
	return c
}

// Get отдаёт копию значения
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	it, ok := c.lru.get(key, c.now())
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), it.value...), nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	it := &item{key: key, value: append([]byte(nil), value...)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	if ttl > 0 {
		it.expires = c.now().Add(ttl)
	}
	c.lru.put(it)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	c.lru.delete(key)
	return nil
}

// Len число записей, включая ещё не убранные просроченные
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.len()
}

// Close останавливает фоновый проход; повторный вызов ничего не делает
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.lru = newLRU(1)
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

func (c *MemoryCache) sweeper(every time.Duration) {
	defer close(c.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.mu.Lock()
			c.lru.sweep(c.now())
			c.mu.Unlock()
		}
	}
}
