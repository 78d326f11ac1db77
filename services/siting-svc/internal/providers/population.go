// Package providers поставляет данные о населении и существующих объектах.
// Все источники разрешаются до запуска движка; движок работает только
// с готовыми значениями.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"siting/pkg/cache"
	"siting/pkg/domain"
	"siting/pkg/logger"
	"siting/services/siting-svc/internal/demand"
)

// ErrNoData источник не имеет данных для области
var ErrNoData = errors.New("no data for area")

// PopulationProvider источник сетки спроса
type PopulationProvider interface {
	Name() string
	Population(ctx context.Context, bbox domain.BoundingBox) ([]domain.DemandCell, error)
}

// StaticPopulation сетка, переданная в запросе
type StaticPopulation struct {
	Cells []domain.DemandCell
}

// Name реализует PopulationProvider
func (StaticPopulation) Name() string { return "request" }

// Population реализует PopulationProvider
func (s StaticPopulation) Population(context.Context, domain.BoundingBox) ([]domain.DemandCell, error) {
	if len(s.Cells) == 0 {
		return nil, ErrNoData
	}
	out := make([]domain.DemandCell, len(s.Cells))
	copy(out, s.Cells)
	return out, nil
}

// AreaDensity равномерная плотность по области; последний источник в цепочке
type AreaDensity struct {
	DensityPerKm2 float64
	ResolutionKm  float64
}

// Name реализует PopulationProvider
func (AreaDensity) Name() string { return "area_density" }

// Population реализует PopulationProvider
func (a AreaDensity) Population(_ context.Context, bbox domain.BoundingBox) ([]domain.DemandCell, error) {
	g, err := demand.Build(bbox, a.DensityPerKm2, a.ResolutionKm)
	if err != nil {
		return nil, err
	}
	return g.Cells(), nil
}

// FallbackPopulation опрашивает источники по порядку; следующий
// используется только при ошибке предыдущего
type FallbackPopulation struct {
	providers []PopulationProvider
}

// NewFallbackPopulation создаёт цепочку источников
func NewFallbackPopulation(providers ...PopulationProvider) *FallbackPopulation {
	return &FallbackPopulation{providers: providers}
}

// Name реализует PopulationProvider
func (f *FallbackPopulation) Name() string { return "fallback" }

// Population реализует PopulationProvider
func (f *FallbackPopulation) Population(ctx context.Context, bbox domain.BoundingBox) ([]domain.DemandCell, error) {
	cells, _, err := f.Resolve(ctx, bbox)
	return cells, err
}

// Resolve возвращает данные и имя сработавшего источника
func (f *FallbackPopulation) Resolve(ctx context.Context, bbox domain.BoundingBox) ([]domain.DemandCell, string, error) {
	var errs []error
	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		cells, err := p.Population(ctx, bbox)
		if err == nil {
			return cells, p.Name(), nil
		}
		logger.WithContext(ctx, "provider", p.Name()).Debug("population provider failed", "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if len(errs) == 0 {
		return nil, "", ErrNoData
	}
	return nil, "", errors.Join(errs...)
}

// CachedPopulation кэширует ответы источника по ключу области
type CachedPopulation struct {
	next  PopulationProvider
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedPopulation оборачивает источник кэшем
func NewCachedPopulation(next PopulationProvider, c cache.Cache, ttl time.Duration) *CachedPopulation {
	return &CachedPopulation{next: next, cache: c, ttl: ttl}
}

// Name реализует PopulationProvider
func (c *CachedPopulation) Name() string { return c.next.Name() }

// Population реализует PopulationProvider
func (c *CachedPopulation) Population(ctx context.Context, bbox domain.BoundingBox) ([]domain.DemandCell, error) {
	key := cache.ProviderKey("population", c.next.Name(), bbox.Key())

	if data, err := c.cache.Get(ctx, key); err == nil {
		var cells []domain.DemandCell
		if err := json.Unmarshal(data, &cells); err == nil {
			return cells, nil
		}
		// Повреждённая запись, удаляем
		_ = c.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
	}

	cells, err := c.next.Population(ctx, bbox)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cells); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			logger.WithContext(ctx).Warn("failed to cache population", "key", key, "error", err)
		}
	}
	return cells, nil
}
