// Package access считает время в пути от ячеек спроса до ближайших объектов
// каждого уровня помощи.
package access

import (
	"context"
	"fmt"
	"math"

	"siting/pkg/domain"
	"siting/pkg/parallel"
	"siting/pkg/spatial"
)

// Config параметры расчёта доступности
type Config struct {
	Thresholds  domain.TierTimes
	AreaClass   domain.AreaClass
	SpeedKmh    float64 // если > 0, заменяет скорость класса местности
	Eligibility domain.TierEligibility
	Workers     int
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() Config {
	return Config{
		Thresholds: domain.TierTimes{
			Primary:   domain.DefaultPrimaryThresholdMin,
			Secondary: domain.DefaultSecondaryThresholdMin,
			Emergency: domain.DefaultEmergencyThresholdMin,
		},
		AreaClass:   domain.AreaUrban,
		Eligibility: domain.DefaultTierEligibility(),
	}
}

// Speed итоговая скорость, км/ч
func (c Config) Speed() float64 {
	if c.SpeedKmh > 0 {
		return c.SpeedKmh
	}
	return c.AreaClass.SpeedKmh()
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	for _, tier := range domain.AllTiers {
		if v := c.Thresholds.Get(tier); !(v > 0) {
			return fmt.Errorf("%s threshold must be positive, got %v", tier, v)
		}
	}
	if c.AreaClass != "" && !c.AreaClass.IsValid() {
		return fmt.Errorf("unknown area class %q", c.AreaClass)
	}
	if c.SpeedKmh < 0 {
		return fmt.Errorf("speed must be non-negative, got %v", c.SpeedKmh)
	}
	return c.Eligibility.Validate()
}

type tierIndex struct {
	index      *spatial.Index
	facilities []domain.Facility
}

// Calculator индексирует объекты по уровням; пригоден для конкурентного чтения
type Calculator struct {
	cfg   Config
	tiers map[domain.Tier]tierIndex
	all   *spatial.Index
}

// NewCalculator строит индексы по уровням согласно таблице допустимости
func NewCalculator(facilities []domain.Facility, cfg Config) *Calculator {
	c := &Calculator{cfg: cfg, tiers: make(map[domain.Tier]tierIndex, len(domain.AllTiers))}

	allCoords := make([]domain.Coordinates, len(facilities))
	for i, f := range facilities {
		allCoords[i] = f.Coords
	}
	c.all = spatial.NewIndex(allCoords)

	for _, tier := range domain.AllTiers {
		var ti tierIndex
		var coords []domain.Coordinates
		for _, f := range facilities {
			if cfg.Eligibility.Eligible(f.Type, tier) {
				ti.facilities = append(ti.facilities, f)
				coords = append(coords, f.Coords)
			}
		}
		ti.index = spatial.NewIndex(coords)
		c.tiers[tier] = ti
	}
	return c
}

// Record доступность одной ячейки
func (c *Calculator) Record(cell domain.DemandCell) domain.AccessibilityRecord {
	rec := domain.AccessibilityRecord{Cell: cell, TravelTimes: domain.UnreachableTimes()}
	speed := c.cfg.Speed()

	for _, tier := range domain.AllTiers {
		_, dist := c.tiers[tier].index.Nearest(cell.Coords())
		minutes := math.Inf(1)
		if !math.IsInf(dist, 1) {
			minutes = domain.TravelMinutes(dist, speed)
		}
		rec.TravelTimes.Set(tier, minutes)
		rec.Accessible.Set(tier, minutes <= c.cfg.Thresholds.Get(tier))
	}
	return rec
}

// Evaluate считает записи для всех ячеек, сохраняя порядок
func (c *Calculator) Evaluate(ctx context.Context, cells []domain.DemandCell) ([]domain.AccessibilityRecord, error) {
	return parallel.Map(ctx, len(cells), c.cfg.Workers, func(i int) (domain.AccessibilityRecord, error) {
		return c.Record(cells[i]), nil
	})
}

// NearestFacilityKm расстояние до ближайшего существующего объекта любого типа
func (c *Calculator) NearestFacilityKm(p domain.Coordinates) float64 {
	_, d := c.all.Nearest(p)
	return d
}

// NearestTierMinutes время до ближайшего объекта уровня
func (c *Calculator) NearestTierMinutes(p domain.Coordinates, tier domain.Tier) float64 {
	_, d := c.tiers[tier].index.Nearest(p)
	if math.IsInf(d, 1) {
		return d
	}
	return domain.TravelMinutes(d, c.cfg.Speed())
}

// FacilitiesForTier объекты, обслуживающие уровень
func (c *Calculator) FacilitiesForTier(tier domain.Tier) []domain.Facility {
	return c.tiers[tier].facilities
}
