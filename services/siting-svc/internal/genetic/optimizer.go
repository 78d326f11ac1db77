// Package genetic размещает объекты обращения с отходами генетическим
// алгоритмом с взвешенной функцией приспособленности.
//
// Геном это набор объектов фиксированной длины (координаты, тип, мощность).
// Эволюция идёт через eaopt: поколенческая модель, турнирный отбор,
// одноточечный кроссовер и гауссова мутация. Контекст проверяется между
// поколениями; при застое лучшего значения поиск может остановиться раньше.
package genetic

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/MaxHalford/eaopt"

	"siting/pkg/domain"
	"siting/pkg/logger"
)

// Config параметры генетического алгоритма
type Config struct {
	PopulationSize int     `koanf:"population_size"`
	Generations    int     `koanf:"generations"`
	TournamentSize int     `koanf:"tournament_size"`
	CrossoverRate  float64 `koanf:"crossover_rate"`
	MutationRate   float64 `koanf:"mutation_rate"`
	// MutationSigmaKm стандартное отклонение смещения гена
	MutationSigmaKm float64 `koanf:"mutation_sigma_km"`
	// PlateauGenerations остановка, если лучшее значение не растёт столько поколений; 0 выключает
	PlateauGenerations int     `koanf:"plateau_generations"`
	PlateauTolerance   float64 `koanf:"plateau_tolerance"`
	ParallelEval       bool    `koanf:"parallel_eval"`

	ServiceRadiusKm           float64               `koanf:"service_radius_km"`
	AccessThresholdMinutes    float64               `koanf:"access_threshold_minutes"`
	MinCapacity               float64               `koanf:"min_capacity"`
	MaxCapacity               float64               `koanf:"max_capacity"`
	PopulationPerCapacityUnit float64               `koanf:"population_per_capacity_unit"`
	SiteCost                  float64               `koanf:"site_cost"`
	CapacityUnitCost          float64               `koanf:"capacity_unit_cost"`
	CostScale                 float64               `koanf:"cost_scale"`
	BufferKm                  float64               `koanf:"buffer_km"`
	BufferPopulationLimit     float64               `koanf:"buffer_population_limit"`
	FacilityTypes             []domain.FacilityType `koanf:"facility_types"`
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() Config {
	return Config{
		PopulationSize:            50,
		Generations:               100,
		TournamentSize:            3,
		CrossoverRate:             0.7,
		MutationRate:              0.3,
		MutationSigmaKm:           1,
		PlateauGenerations:        0,
		PlateauTolerance:          1e-6,
		ParallelEval:              true,
		ServiceRadiusKm:           domain.DefaultServiceRadiusKm,
		AccessThresholdMinutes:    30,
		MinCapacity:               50,
		MaxCapacity:               500,
		PopulationPerCapacityUnit: 100,
		SiteCost:                  2_000_000,
		CapacityUnitCost:          10_000,
		CostScale:                 10_000_000,
		BufferKm:                  1,
		BufferPopulationLimit:     5000,
		FacilityTypes: []domain.FacilityType{
			domain.FacilityCollection,
			domain.FacilityRecycling,
			domain.FacilityTreatment,
			domain.FacilityLandfill,
		},
	}
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	switch {
	case c.PopulationSize < 2:
		return fmt.Errorf("ga population size must be at least 2, got %d", c.PopulationSize)
	case c.Generations < 0:
		return fmt.Errorf("ga generations must be non-negative, got %d", c.Generations)
	case c.TournamentSize < 1 || c.TournamentSize > c.PopulationSize:
		return fmt.Errorf("tournament size must be in [1, %d], got %d", c.PopulationSize, c.TournamentSize)
	case c.CrossoverRate < 0 || c.CrossoverRate > 1:
		return fmt.Errorf("crossover rate must be in [0, 1], got %v", c.CrossoverRate)
	case c.MutationRate < 0 || c.MutationRate > 1:
		return fmt.Errorf("mutation rate must be in [0, 1], got %v", c.MutationRate)
	case c.MutationSigmaKm < 0:
		return fmt.Errorf("mutation sigma must be non-negative, got %v", c.MutationSigmaKm)
	case c.PlateauGenerations < 0:
		return fmt.Errorf("plateau generations must be non-negative, got %d", c.PlateauGenerations)
	case !(c.ServiceRadiusKm > 0):
		return fmt.Errorf("service radius must be positive, got %v", c.ServiceRadiusKm)
	case !(c.AccessThresholdMinutes > 0):
		return fmt.Errorf("access threshold must be positive, got %v", c.AccessThresholdMinutes)
	case c.MinCapacity < 0 || c.MaxCapacity < c.MinCapacity:
		return fmt.Errorf("capacity range [%v, %v] is invalid", c.MinCapacity, c.MaxCapacity)
	case !(c.PopulationPerCapacityUnit > 0), !(c.CostScale > 0):
		return fmt.Errorf("population per capacity unit and cost scale must be positive")
	case !(c.BufferKm > 0), !(c.BufferPopulationLimit > 0):
		return fmt.Errorf("environmental buffer must be positive")
	case len(c.FacilityTypes) == 0:
		return fmt.Errorf("at least one facility type is required")
	}
	return nil
}

// Problem входные данные прогона
type Problem struct {
	Bounds        domain.BoundingBox
	Demand        Demand
	NumFacilities int
	SpeedKmh      float64
	// Candidates необязательные стартовые точки для начальной популяции
	Candidates []domain.Coordinates
}

// Result лучший найденный набор
type Result struct {
	Facilities  []Gene
	Fitness     domain.WasteFitness
	Generations int
	// History лучшая приспособленность: начальная популяция и далее по поколениям
	History          []float64
	StoppedOnPlateau bool
}

// Optimizer генетический оптимизатор
type Optimizer struct {
	cfg Config
}

// NewOptimizer создаёт оптимизатор
func NewOptimizer(cfg Config) *Optimizer {
	return &Optimizer{cfg: cfg}
}

// Optimize запускает эволюцию. При отмене контекста возвращается лучший
// набор на момент остановки вместе с ошибкой контекста.
func (o *Optimizer) Optimize(ctx context.Context, p Problem, rng *rand.Rand) (*Result, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if p.NumFacilities <= 0 {
		return nil, fmt.Errorf("number of facilities must be positive, got %d", p.NumFacilities)
	}
	if err := p.Bounds.Validate(); err != nil {
		return nil, err
	}

	m := &model{
		cfg:        o.cfg,
		bounds:     p.Bounds,
		demand:     p.Demand,
		speedKmh:   p.SpeedKmh,
		candidates: p.Candidates,
	}
	log := logger.WithComponent("genetic")

	gaConfig := eaopt.GAConfig{
		NPops:        1,
		PopSize:      uint(o.cfg.PopulationSize),
		NGenerations: uint(o.cfg.Generations),
		HofSize:      1,
		Model: eaopt.ModGenerational{
			Selector:  eaopt.SelTournament{NContestants: uint(o.cfg.TournamentSize)},
			MutRate:   o.cfg.MutationRate,
			CrossRate: o.cfg.CrossoverRate,
		},
		ParallelEval: o.cfg.ParallelEval,
		RNG:          rng,
	}

	var history []float64
	plateau := false
	gaConfig.Callback = func(ga *eaopt.GA) {
		if best := ga.HallOfFame[0].Fitness; !math.IsInf(best, 0) {
			history = append(history, -best)
		}
	}
	gaConfig.EarlyStop = func(ga *eaopt.GA) bool {
		if ctx.Err() != nil {
			return true
		}
		if stalled(history, o.cfg.PlateauGenerations, o.cfg.PlateauTolerance) {
			plateau = true
			return true
		}
		return false
	}

	ga, err := gaConfig.NewGA()
	if err != nil {
		return nil, fmt.Errorf("configure ga: %w", err)
	}

	if err := ga.Minimize(func(rng *rand.Rand) eaopt.Genome {
		return m.newGenome(p.NumFacilities, rng)
	}); err != nil {
		return nil, fmt.Errorf("run ga: %w", err)
	}

	best := ga.HallOfFame[0].Genome.(*Genome)
	genes := make([]Gene, len(best.Genes))
	copy(genes, best.Genes)

	res := &Result{
		Facilities:       genes,
		Fitness:          m.fitness(genes),
		Generations:      int(ga.Generations),
		History:          history,
		StoppedOnPlateau: plateau,
	}

	log.Debug("ga finished",
		"generations", res.Generations,
		"fitness", res.Fitness.Total,
		"plateau", plateau,
	)

	return res, ctx.Err()
}

// stalled истина, если за последние window поколений лучшее значение
// выросло не больше чем на tolerance
func stalled(history []float64, window int, tolerance float64) bool {
	if window <= 0 || len(history) <= window {
		return false
	}
	last := history[len(history)-1]
	prev := history[len(history)-1-window]
	return math.Abs(last-prev) <= tolerance
}

// AsFacilities переводит гены в объекты с идентификаторами prefix-N
func (r *Result) AsFacilities(prefix string) []domain.Facility {
	out := make([]domain.Facility, len(r.Facilities))
	for i, g := range r.Facilities {
		out[i] = domain.Facility{
			ID:       fmt.Sprintf("%s-%d", prefix, i+1),
			Name:     fmt.Sprintf("Proposed %s facility %d", g.Type, i+1),
			Coords:   g.Coords(),
			Type:     g.Type,
			Capacity: g.Capacity,
		}
	}
	return out
}
