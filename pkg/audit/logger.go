package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"siting/pkg/config"
	"siting/pkg/logger"
)

// ErrClosed запись в закрытый журнал
var ErrClosed = errors.New("audit: logger closed")

// New создаёт журнал по конфигурации. Выключенный аудит даёт Discard,
// неизвестный backend пишет в stdout.
func New(cfg config.AuditConfig) (Logger, error) {
	if !cfg.Enabled {
		return Discard, nil
	}
	switch cfg.Backend {
	case "file":
		return NewFileLogger(cfg)
	case "memory":
		return NewMemoryLogger(cfg.BufferSize), nil
	case "", "stdout":
	default:
		logger.Log.Warn("Unknown audit backend, using stdout", "backend", cfg.Backend)
	}
	return NewStreamLogger(os.Stdout, "[AUDIT] "), nil
}

// StreamLogger пишет записи JSON строками. Синхронно пишет сразу в
// поток, асинхронный вариант копит записи в очереди и сбрасывает по таймеру.
type StreamLogger struct {
	mu     sync.Mutex
	out    *bufio.Writer
	closer io.Closer
	prefix string

	queue  chan *Entry
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	closed bool
}

// NewStreamLogger синхронный журнал поверх w
func NewStreamLogger(w io.Writer, prefix string) *StreamLogger {
	return &StreamLogger{out: bufio.NewWriter(w), prefix: prefix}
}

// NewFileLogger асинхронный журнал в файл с ротацией lumberjack
func NewFileLogger(cfg config.AuditConfig) (*StreamLogger, error) {
	path := cfg.FilePath
	if path == "" {
		path = "audit.log"
	}
	// lumberjack открывает файл лениво
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	_ = f.Close()

	rotating := &lumberjack.Logger{
		Filename: path,
		MaxSize:  orDefault(cfg.MaxSizeMB, 100),
		MaxAge:   cfg.MaxAgeDays,
		Compress: cfg.Compress,
	}
	l := &StreamLogger{
		out:    bufio.NewWriter(rotating),
		closer: rotating,
		queue:  make(chan *Entry, orDefault(cfg.BufferSize, 1000)),
		stop:   make(chan struct{}),
	}
	flush := cfg.FlushPeriod
	if flush <= 0 {
		flush = 5 * time.Second
	}
	l.wg.Add(1)
	go l.drain(flush)
	return l, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Log ставит запись в очередь; при переполненной очереди пишет сразу
func (l *StreamLogger) Log(_ context.Context, e *Entry) error {
	if l.queue == nil {
		return l.write(e, true)
	}
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case l.queue <- e:
		return nil
	default:
		return l.write(e, false)
	}
}

func (l *StreamLogger) write(e *Entry, flush bool) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if _, err := l.out.WriteString(l.prefix); err != nil {
		return err
	}
	if _, err := l.out.Write(append(line, '\n')); err != nil {
		return err
	}
	if flush {
		return l.out.Flush()
	}
	return nil
}

func (l *StreamLogger) drain(every time.Duration) {
	defer l.wg.Done()
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case e := <-l.queue:
			if err := l.write(e, false); err != nil {
				logger.Log.Warn("Failed to write audit entry", "error", err)
			}
		case <-tick.C:
			l.mu.Lock()
			err := l.out.Flush()
			l.mu.Unlock()
			if err != nil {
				logger.Log.Warn("Failed to flush audit log", "error", err)
			}
		case <-l.stop:
			return
		}
	}
}

// Close дописывает очередь, сбрасывает буфер и закрывает файл.
// Повторный вызов ничего не делает.
func (l *StreamLogger) Close() error {
	var err error
	l.once.Do(func() {
		if l.stop != nil {
			close(l.stop)
			l.wg.Wait()
		rest:
			for {
				select {
				case e := <-l.queue:
					if werr := l.write(e, false); werr != nil {
						logger.Log.Warn("Failed to write audit entry on close", "error", werr)
					}
				default:
					break rest
				}
			}
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		l.closed = true
		err = l.out.Flush()
		if l.closer != nil {
			err = errors.Join(err, l.closer.Close())
		}
	})
	return err
}

// MemoryLogger хранит последние записи в кольцевом буфере и умеет Query
type MemoryLogger struct {
	mu      sync.RWMutex
	entries []*Entry
	next    int
	full    bool
}

// NewMemoryLogger журнал на size записей (по умолчанию 1000)
func NewMemoryLogger(size int) *MemoryLogger {
	return &MemoryLogger{entries: make([]*Entry, orDefault(size, 1000))}
}

// Log вытесняет самую старую запись при заполнении
func (l *MemoryLogger) Log(_ context.Context, e *Entry) error {
	l.mu.Lock()
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()
	return nil
}

// Query записи по фильтру от старых к новым
func (l *MemoryLogger) Query(_ context.Context, f Filter) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ordered := l.entries[:l.next]
	if l.full {
		ordered = append(append([]*Entry(nil), l.entries[l.next:]...), l.entries[:l.next]...)
	}

	var out []*Entry
	skip := f.Offset
	for _, e := range ordered {
		if !f.match(e) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Close ничего не освобождает; записи остаются доступны для Query
func (l *MemoryLogger) Close() error { return nil }
