// Package pareto ранжирует наборы площадок по пяти целям: доступность,
// покрытие мощностью, устойчивость к рискам, стоимость и справедливость.
//
// Популяция случайных решений оценивается параллельно, затем выполняется
// одно поколение недоминируемой сортировки с дистанцией скученности.
// Отношение доминирования хранится как индексы в арене популяции.
package pareto

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"siting/pkg/domain"
	"siting/pkg/parallel"
)

// Config параметры многокритериального ранжирования
type Config struct {
	PopulationSize            int                  `koanf:"population_size"`
	AccessThresholdMinutes    float64              `koanf:"access_threshold_minutes"`
	FacilityCapacity          float64              `koanf:"facility_capacity"`
	PopulationPerCapacityUnit float64              `koanf:"population_per_capacity_unit"`
	SiteCost                  float64              `koanf:"site_cost"`
	ConstraintCostFactor      float64              `koanf:"constraint_cost_factor"`
	CostScale                 float64              `koanf:"cost_scale"`
	Vulnerability             VulnerabilityProfile `koanf:"vulnerability"`
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() Config {
	return Config{
		PopulationSize:            100,
		AccessThresholdMinutes:    30,
		FacilityCapacity:          100,
		PopulationPerCapacityUnit: 1000,
		SiteCost:                  5_000_000,
		ConstraintCostFactor:      0.1,
		CostScale:                 10_000_000,
		Vulnerability:             DefaultVulnerability(),
	}
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	switch {
	case c.PopulationSize <= 0:
		return fmt.Errorf("pareto population size must be positive, got %d", c.PopulationSize)
	case !(c.AccessThresholdMinutes > 0):
		return fmt.Errorf("pareto access threshold must be positive, got %v", c.AccessThresholdMinutes)
	case !(c.PopulationPerCapacityUnit > 0):
		return fmt.Errorf("population per capacity unit must be positive, got %v", c.PopulationPerCapacityUnit)
	case !(c.CostScale > 0):
		return fmt.Errorf("cost scale must be positive, got %v", c.CostScale)
	case c.FacilityCapacity < 0 || c.SiteCost < 0 || c.ConstraintCostFactor < 0:
		return fmt.Errorf("capacity and cost parameters must be non-negative")
	}
	return nil
}

// Problem входные данные ранжирования
type Problem struct {
	Bounds        domain.BoundingBox
	Cells         []domain.DemandCell
	Candidates    []domain.CandidateSite
	MaxFacilities int
	SpeedKmh      float64
}

// Refiner многокритериальное ранжирование
type Refiner struct {
	cfg           Config
	hazards       HazardSampler
	vulnerability VulnerabilityFunc
	workers       int
}

// Option настройка Refiner
type Option func(*Refiner)

// WithHazards задаёт источник рисков
func WithHazards(h HazardSampler) Option {
	return func(r *Refiner) { r.hazards = h }
}

// WithVulnerability задаёт профиль уязвимости по ячейкам
func WithVulnerability(f VulnerabilityFunc) Option {
	return func(r *Refiner) { r.vulnerability = f }
}

// WithWorkers число воркеров оценки
func WithWorkers(n int) Option {
	return func(r *Refiner) { r.workers = n }
}

// NewRefiner создаёт Refiner
func NewRefiner(cfg Config, opts ...Option) *Refiner {
	r := &Refiner{cfg: cfg, hazards: NoHazards{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.vulnerability == nil {
		profile := cfg.Vulnerability
		r.vulnerability = func(domain.DemandCell) VulnerabilityProfile { return profile }
	}
	return r
}

// Result результат ранжирования
type Result struct {
	Front      []domain.Solution
	Population int
	Fronts     int
}

// Refine генерирует популяцию, оценивает цели и возвращает первый фронт,
// упорядоченный по убыванию дистанции скученности
func (r *Refiner) Refine(ctx context.Context, p Problem, rng *rand.Rand) (*Result, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if p.MaxFacilities <= 0 {
		return nil, fmt.Errorf("max facilities must be positive, got %d", p.MaxFacilities)
	}
	if len(p.Candidates) == 0 && p.Bounds.IsDegenerate() {
		return &Result{}, nil
	}

	pop := r.population(p, rng)
	hazards := r.sampleHazards(pop)

	objectives, err := parallel.Map(ctx, len(pop), r.workers, func(i int) (domain.Objectives, error) {
		return r.Evaluate(p, pop[i].FacilitySet, hazards), nil
	})
	if err != nil {
		return nil, err
	}
	for i := range pop {
		pop[i].Objectives = objectives[i]
	}

	fronts := NonDominatedSort(pop)
	for _, f := range fronts {
		CrowdingDistance(pop, f)
	}

	front := make([]domain.Solution, 0, len(fronts[0]))
	for _, i := range fronts[0] {
		front = append(front, pop[i])
	}
	sort.SliceStable(front, func(a, b int) bool {
		return front[a].CrowdingDistance > front[b].CrowdingDistance
	})

	return &Result{Front: front, Population: len(pop), Fronts: len(fronts)}, nil
}

// population случайные наборы из MaxFacilities кандидатов; если кандидатов
// меньше, набор дополняется случайными точками внутри области
func (r *Refiner) population(p Problem, rng *rand.Rand) []domain.Solution {
	pop := make([]domain.Solution, r.cfg.PopulationSize)
	for s := range pop {
		set := make([]domain.CandidateSite, 0, p.MaxFacilities)
		for _, i := range rng.Perm(len(p.Candidates)) {
			if len(set) == p.MaxFacilities {
				break
			}
			set = append(set, p.Candidates[i])
		}
		for len(set) < p.MaxFacilities && !p.Bounds.IsDegenerate() {
			pt := domain.Coordinates{
				Lat: p.Bounds.MinLat + rng.Float64()*(p.Bounds.MaxLat-p.Bounds.MinLat),
				Lon: p.Bounds.MinLon + rng.Float64()*(p.Bounds.MaxLon-p.Bounds.MinLon),
			}
			set = append(set, domain.CandidateSite{
				ID:              fmt.Sprintf("random-%d-%d", s, len(set)),
				Coords:          pt,
				Type:            domain.CandidateRandom,
				ClusterIndex:    -1,
				LandSuitability: domain.LandSuitability{Suitable: true},
			})
		}
		pop[s].FacilitySet = set
	}
	return pop
}

// sampleHazards опрашивает риски последовательно в порядке популяции,
// чтобы результат не зависел от параллельной оценки
func (r *Refiner) sampleHazards(pop []domain.Solution) map[string]Hazard {
	out := make(map[string]Hazard)
	for _, s := range pop {
		for _, site := range s.FacilitySet {
			if _, ok := out[site.ID]; !ok {
				out[site.ID] = r.hazards.Sample(site.Coords)
			}
		}
	}
	return out
}

// Evaluate считает вектор целей для набора площадок
func (r *Refiner) Evaluate(p Problem, set []domain.CandidateSite, hazards map[string]Hazard) domain.Objectives {
	var obj domain.Objectives
	if len(set) == 0 {
		return obj
	}

	var totalPop, accessiblePop float64
	var vulnerablePop, vulnerableAccess float64
	for _, cell := range p.Cells {
		pop := float64(cell.Population)
		nearest := math.Inf(1)
		for _, site := range set {
			nearest = math.Min(nearest, domain.DistanceKm(cell.Coords(), site.Coords))
		}
		minutes := domain.TravelMinutes(nearest, p.SpeedKmh)

		totalPop += pop
		if minutes <= r.cfg.AccessThresholdMinutes {
			accessiblePop += pop
		}

		v := pop * r.vulnerability(cell).Share()
		vulnerablePop += v
		vulnerableAccess += v * domain.GradedAccess(minutes, r.cfg.AccessThresholdMinutes)
	}
	if totalPop > 0 {
		obj.Accessibility = accessiblePop / totalPop
		needed := totalPop / r.cfg.PopulationPerCapacityUnit
		obj.Coverage = math.Min(1, r.cfg.FacilityCapacity*float64(len(set))/needed)
	}
	if vulnerablePop > 0 {
		obj.Equity = vulnerableAccess / vulnerablePop
	}

	var penalty, cost float64
	for _, site := range set {
		penalty += hazards[site.ID].Penalty()
		cost += r.cfg.SiteCost * (1 + r.cfg.ConstraintCostFactor*float64(len(site.LandSuitability.Constraints)))
	}
	obj.Resilience = domain.Clamp01(1 - penalty/float64(len(set)))
	obj.Cost = 1 / (1 + cost/r.cfg.CostScale)

	return obj
}
