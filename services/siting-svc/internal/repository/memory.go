package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository хранит прогоны в памяти; используется без базы данных
type MemoryRepository struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]*Run
	order []uuid.UUID
	// limit 0 без ограничения; при переполнении вытесняется самый старый
	limit int
}

// NewMemoryRepository создаёт хранилище на не более limit прогонов
func NewMemoryRepository(limit int) *MemoryRepository {
	return &MemoryRepository{
		runs:  make(map[uuid.UUID]*Run),
		limit: limit,
	}
}

// Save сохраняет копию прогона
func (r *MemoryRepository) Save(_ context.Context, run *Run) error {
	prepare(run)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		r.order = append(r.order, run.ID)
	}
	r.runs[run.ID] = clone(run)

	if r.limit > 0 && len(r.order) > r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.runs, oldest)
	}
	return nil
}

// Get возвращает копию прогона
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return clone(run), nil
}

// List возвращает прогоны от новых к старым
func (r *MemoryRepository) List(_ context.Context, opts ListOptions) ([]*Run, int64, error) {
	opts.normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Run
	for i := len(r.order) - 1; i >= 0; i-- {
		run := r.runs[r.order[i]]
		if len(opts.Modes) > 0 && !slices.Contains(opts.Modes, run.Mode) {
			continue
		}
		matched = append(matched, run)
	}

	total := int64(len(matched))
	if opts.Offset >= len(matched) {
		return nil, total, nil
	}
	end := min(opts.Offset+opts.Limit, len(matched))

	out := make([]*Run, 0, end-opts.Offset)
	for _, run := range matched[opts.Offset:end] {
		out = append(out, clone(run))
	}
	return out, total, nil
}

// Ping всегда успешен
func (r *MemoryRepository) Ping(context.Context) error { return nil }

// Close ничего не освобождает
func (r *MemoryRepository) Close() error { return nil }

func clone(run *Run) *Run {
	c := *run
	c.Result = slices.Clone(run.Result)
	return &c
}
