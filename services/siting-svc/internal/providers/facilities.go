package providers

import (
	"context"
	"errors"
	"fmt"

	"siting/pkg/domain"
	"siting/pkg/logger"
)

// DuplicateDistanceKm объекты одного типа ближе этого считаются одним
const DuplicateDistanceKm = 0.05

// FacilityProvider реестр существующих объектов
type FacilityProvider interface {
	Name() string
	Facilities(ctx context.Context, bbox domain.BoundingBox) ([]domain.Facility, error)
}

// StaticFacilities объекты, переданные в запросе
type StaticFacilities struct {
	Source string
	Items  []domain.Facility
}

// Name реализует FacilityProvider
func (s StaticFacilities) Name() string {
	if s.Source == "" {
		return "request"
	}
	return s.Source
}

// Facilities реализует FacilityProvider; возвращает объекты внутри области
func (s StaticFacilities) Facilities(_ context.Context, bbox domain.BoundingBox) ([]domain.Facility, error) {
	out := make([]domain.Facility, 0, len(s.Items))
	for _, f := range s.Items {
		if bbox.Contains(f.Coords) {
			out = append(out, f)
		}
	}
	return out, nil
}

// MergedFacilities объединяет несколько реестров с дедупликацией
type MergedFacilities struct {
	providers []FacilityProvider
	// Strict ошибка любого реестра прерывает объединение
	Strict bool
}

// NewMergedFacilities создаёт объединение реестров в порядке приоритета
func NewMergedFacilities(providers ...FacilityProvider) *MergedFacilities {
	return &MergedFacilities{providers: providers}
}

// Name реализует FacilityProvider
func (m *MergedFacilities) Name() string { return "merged" }

// Facilities реализует FacilityProvider. Недоступный реестр пропускается,
// если хотя бы один ответил.
func (m *MergedFacilities) Facilities(ctx context.Context, bbox domain.BoundingBox) ([]domain.Facility, error) {
	var all []domain.Facility
	var errs []error
	answered := 0

	for _, p := range m.providers {
		items, err := p.Facilities(ctx, bbox)
		if err != nil {
			if m.Strict {
				return nil, fmt.Errorf("%s: %w", p.Name(), err)
			}
			logger.WithContext(ctx, "provider", p.Name()).Warn("facility registry failed", "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		answered++
		all = append(all, items...)
	}

	if answered == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return Dedupe(all), nil
}

// Dedupe убирает дубликаты: одинаковый непустой ID или тот же тип
// ближе DuplicateDistanceKm. Сохраняется первое вхождение.
func Dedupe(items []domain.Facility) []domain.Facility {
	out := make([]domain.Facility, 0, len(items))
	ids := make(map[string]struct{}, len(items))

next:
	for _, f := range items {
		if f.ID != "" {
			if _, ok := ids[f.ID]; ok {
				continue
			}
		}
		for _, kept := range out {
			if kept.Type == f.Type && domain.DistanceKm(kept.Coords, f.Coords) < DuplicateDistanceKm {
				continue next
			}
		}
		if f.ID != "" {
			ids[f.ID] = struct{}{}
		}
		out = append(out, f)
	}
	return out
}
