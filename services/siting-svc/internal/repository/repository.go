// Package repository хранит историю прогонов оптимизации.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"siting/pkg/domain"
)

// Стандартные ошибки
var (
	ErrRunNotFound = errors.New("run not found")
	ErrInvalidID   = errors.New("invalid run ID")
)

// Run сохранённый прогон. Result содержит JSON ответа целиком.
type Run struct {
	ID             uuid.UUID
	Mode           string
	RequestHash    string
	BoundingBox    domain.BoundingBox
	MaxFacilities  int
	SelectedSites  int
	CoverageBefore float64
	CoverageAfter  float64
	Reason         string
	Seed           int64
	ComputationMs  float64
	Result         []byte
	CreatedAt      time.Time
}

// ListOptions опции для списка
type ListOptions struct {
	Limit  int
	Offset int
	// Modes пустой список означает все режимы
	Modes []string
}

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

func (o *ListOptions) normalize() {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// RunRepository интерфейс репозитория прогонов
type RunRepository interface {
	// Save сохраняет прогон; пустой ID и CreatedAt заполняются
	Save(ctx context.Context, run *Run) error

	// Get возвращает прогон по ID
	Get(ctx context.Context, id uuid.UUID) (*Run, error)

	// List возвращает прогоны от новых к старым и общее число подходящих
	List(ctx context.Context, opts ListOptions) ([]*Run, int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ParseID разбирает строковый идентификатор прогона
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

func prepare(run *Run) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}
