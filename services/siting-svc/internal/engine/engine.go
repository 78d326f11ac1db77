// Package engine связывает этапы размещения в один прогон: сетка спроса,
// доступность, недообслуженные районы, кандидаты, жадный отбор и,
// по запросу, фронт Парето. Движок не выполняет сетевых вызовов: все
// данные приходят во входе, стратегии внедряются опциями.
package engine

import (
	"context"
	"math/rand"
	"time"

	"siting/pkg/apperror"
	"siting/pkg/domain"
	"siting/pkg/logger"
	"siting/pkg/metrics"
	"siting/pkg/telemetry"
	"siting/services/siting-svc/internal/access"
	"siting/services/siting-svc/internal/candidates"
	"siting/services/siting-svc/internal/demand"
	"siting/services/siting-svc/internal/mclp"
	"siting/services/siting-svc/internal/narrative"
	"siting/services/siting-svc/internal/pareto"
	"siting/services/siting-svc/internal/underserved"
)

// Этапы прогона
const (
	StageAccessibility = "accessibility"
	StageUnderserved   = "underserved"
	StageCandidates    = "candidates"
	StageSelection     = "selection"
	StagePareto        = "pareto"
	StageNarrative     = "narrative"
	StageGenetic       = "genetic"
	StageRouting       = "routing"
)

// Constraints ограничения прогона
type Constraints struct {
	MaxFacilities       int              `json:"max_facilities"`
	Thresholds          domain.TierTimes `json:"accessibility_thresholds"`
	PopulationThreshold int64            `json:"population_threshold"`
	ServiceRadiusKm     float64          `json:"service_radius_km"`
	MaxCandidateSites   int              `json:"max_candidate_sites"`
}

// Input входные данные прогона размещения
type Input struct {
	Bounds             domain.BoundingBox  `json:"bounds"`
	ExistingFacilities []domain.Facility   `json:"existing_facilities"`
	PopulationGrid     []domain.DemandCell `json:"population_grid"`
	Constraints        Constraints         `json:"constraints"`
	IncludeParetoFront bool                `json:"include_pareto_front"`
	// Seed переопределяет seed конфигурации
	Seed *int64 `json:"seed,omitempty"`
}

// Output результат прогона
type Output struct {
	SelectedSites         []domain.SelectedSite       `json:"selected_sites"`
	RecommendedFacilities []domain.Facility           `json:"recommended_facilities"`
	CoverageImprovement   domain.CoverageImprovement  `json:"coverage_improvement"`
	ParetoFront           []domain.Solution           `json:"pareto_front,omitempty"`
	UnderservedAreas      []domain.UnderservedCluster `json:"underserved_areas"`
	UnderservedCells      int                         `json:"underserved_cells"`
	Accessibility         domain.AccessibilitySummary `json:"accessibility"`
	Population            domain.PopulationStatistics `json:"population"`
	CandidatesEvaluated   int                         `json:"candidates_evaluated"`
	CoverageHistory       []float64                   `json:"coverage_history"`
	EfficiencyScore       float64                     `json:"efficiency_score"`
	Reason                domain.Reason               `json:"reason"`
	Justification         string                      `json:"justification"`
	Seed                  int64                       `json:"seed"`
}

// Optimizer движок размещения. Безопасен для конкурентных вызовов, если
// внедрённые стратегии безопасны.
type Optimizer struct {
	cfg Config

	suitability   candidates.SuitabilityChecker
	hazards       pareto.HazardSampler
	vulnerability pareto.VulnerabilityFunc
	narrator      narrative.Generator
	metrics       *metrics.Metrics

	// Имитация данных: стратегии создаются заново на каждый прогон от его seed
	landUseProbability float64
	simulatedHazards   bool
}

// Option настройка движка
type Option func(*Optimizer)

// WithSuitability задаёт проверку пригодности земли
func WithSuitability(s candidates.SuitabilityChecker) Option {
	return func(o *Optimizer) { o.suitability = s }
}

// WithHazards задаёт источник рисков для устойчивости
func WithHazards(h pareto.HazardSampler) Option {
	return func(o *Optimizer) { o.hazards = h }
}

// WithVulnerability задаёт профиль уязвимости по ячейкам
func WithVulnerability(f pareto.VulnerabilityFunc) Option {
	return func(o *Optimizer) { o.vulnerability = f }
}

// WithNarrator задаёт генератор обоснований; сбой заменяется шаблоном
func WithNarrator(g narrative.Generator, timeout time.Duration) Option {
	return func(o *Optimizer) { o.narrator = narrative.WithFallback(g, timeout) }
}

// WithSimulatedData включает имитацию данных о земле и рисках.
// landUseProbability 0 оставляет все участки пригодными.
func WithSimulatedData(landUseProbability float64, hazards bool) Option {
	return func(o *Optimizer) {
		o.landUseProbability = landUseProbability
		o.simulatedHazards = hazards
	}
}

// WithMetrics включает запись длительности этапов
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Optimizer) { o.metrics = m }
}

// New создаёт движок. По умолчанию риски имитируются от seed прогона.
func New(cfg Config, opts ...Option) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Optimizer{cfg: cfg, narrator: narrative.Template{}, simulatedHazards: true}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config конфигурация движка
func (o *Optimizer) Config() Config {
	return o.cfg
}

// DefaultConstraints ограничения из конфигурации для заданного числа объектов
func (o *Optimizer) DefaultConstraints(maxFacilities int) Constraints {
	return Constraints{
		MaxFacilities:       maxFacilities,
		Thresholds:          o.cfg.Thresholds.TierTimes(),
		PopulationThreshold: o.cfg.PopulationThreshold,
		ServiceRadiusKm:     o.cfg.ServiceRadiusKm,
		MaxCandidateSites:   o.cfg.MaxCandidateSites,
	}
}

// Validate проверяет вход; ошибки имеют код CONFIGURATION_ERROR
func (in Input) Validate() error {
	if err := in.Bounds.Validate(); err != nil {
		return apperror.Configuration("bounding_box", "%v", err)
	}
	c := in.Constraints
	if c.MaxFacilities <= 0 {
		return apperror.Configuration("max_facilities", "must be positive, got %d", c.MaxFacilities)
	}
	for _, tier := range domain.AllTiers {
		if v := c.Thresholds.Get(tier); !(v > 0) {
			return apperror.Configuration("accessibility_thresholds", "%s threshold must be positive, got %v", tier, v)
		}
	}
	if c.PopulationThreshold < 0 {
		return apperror.Configuration("population_threshold", "must be non-negative, got %d", c.PopulationThreshold)
	}
	if !(c.ServiceRadiusKm > 0) {
		return apperror.Configuration("service_radius_km", "must be positive, got %v", c.ServiceRadiusKm)
	}
	if c.MaxCandidateSites <= 0 {
		return apperror.Configuration("max_candidate_sites", "must be positive, got %d", c.MaxCandidateSites)
	}
	for _, f := range in.ExistingFacilities {
		if err := f.Validate(); err != nil {
			return apperror.Configuration("existing_facilities", "%v", err)
		}
	}
	for _, cell := range in.PopulationGrid {
		if err := cell.Validate(); err != nil {
			return apperror.Configuration("population_grid", "%v", err)
		}
	}
	return nil
}

func (o *Optimizer) seed(override *int64) int64 {
	if override != nil {
		return *override
	}
	return o.cfg.Seed
}

// stage открывает span этапа и таймер; возвращённая функция закрывает оба
func (o *Optimizer) stage(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, end := telemetry.StartStage(ctx, name)
	if o.metrics == nil {
		return ctx, end
	}
	stop := o.metrics.TimeStage(name)
	return ctx, func(err error) {
		stop()
		end(err)
	}
}

// Optimize выполняет прогон размещения. Пустая сетка даёт нулевое покрытие
// без ошибки; отсутствие пригодных кандидатов даёт пустой выбор с
// Reason no_suitable_candidates. Отмена контекста возвращает CANCELLED или TIMEOUT.
func (o *Optimizer) Optimize(ctx context.Context, in Input) (*Output, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	seed := o.seed(in.Seed)
	c := in.Constraints
	log := logger.WithContext(ctx, "component", "engine", "seed", seed)

	telemetry.SetAttributes(ctx, telemetry.RequestAttributes("general", c.MaxFacilities, len(in.PopulationGrid), len(in.ExistingFacilities))...)

	grid, err := demand.FromCells(in.Bounds, in.PopulationGrid)
	if err != nil {
		return nil, apperror.Configuration("population_grid", "%v", err)
	}

	out := &Output{
		Population: domain.CalculatePopulationStatistics(grid.Cells()),
		Seed:       seed,
	}

	// Доступность существующей сети
	accessCfg := o.cfg.accessConfig(c.Thresholds)
	calc := access.NewCalculator(in.ExistingFacilities, accessCfg)

	sctx, end := o.stage(ctx, StageAccessibility)
	records, err := calc.Evaluate(sctx, grid.Cells())
	end(err)
	if err != nil {
		return nil, apperror.FromContext(err)
	}
	out.Accessibility = domain.SummarizeAccessibility(records)

	// Недообслуженные районы
	_, end = o.stage(ctx, StageUnderserved)
	us := underserved.Identify(records, o.cfg.underservedConfig(c.PopulationThreshold))
	end(nil)
	out.UnderservedAreas = us.Clusters
	out.UnderservedCells = len(us.Cells)
	log.Debug("underserved areas identified", "cells", len(us.Cells), "clusters", len(us.Clusters))

	// Кандидаты
	rng := rand.New(rand.NewSource(seed))
	gen := candidates.NewGenerator(o.cfg.candidatesConfig(c.ServiceRadiusKm, c.MaxCandidateSites), o.suitabilityFor(seed), calc.NearestFacilityKm)

	sctx, end = o.stage(ctx, StageCandidates)
	sites, err := gen.Generate(sctx, in.Bounds, us.Cells, us.Clusters)
	end(err)
	if err != nil {
		return nil, apperror.FromContext(err)
	}
	out.CandidatesEvaluated = len(sites)
	log.Debug("candidates generated", "count", len(sites))

	// Покрытие до размещения
	var precovered map[int]struct{}
	if o.cfg.CountExistingCoverage {
		coords := make([]domain.Coordinates, len(in.ExistingFacilities))
		for i, f := range in.ExistingFacilities {
			coords[i] = f.Coords
		}
		precovered = grid.CoveredBy(coords, c.ServiceRadiusKm)
	}
	before := grid.Coverage(precovered)

	if len(sites) == 0 {
		out.Reason = domain.ReasonNoSuitableCandidates
		out.SelectedSites = []domain.SelectedSite{}
		out.CoverageImprovement = domain.NewCoverageImprovement(before, before)
		out.CoverageHistory = []float64{before.CoveragePercentage}
		out.Justification = o.justify(ctx, out)
		log.Info("no suitable candidates", "underserved_cells", out.UnderservedCells)
		return out, nil
	}

	// Жадный отбор
	sctx, end = o.stage(ctx, StageSelection)
	res, err := mclp.Solve(sctx, grid, sites, mclp.Options{
		MaxFacilities:   c.MaxFacilities,
		ServiceRadiusKm: c.ServiceRadiusKm,
		Workers:         o.cfg.Workers,
		Precovered:      precovered,
	})
	end(err)
	if err != nil {
		return nil, apperror.FromContext(err)
	}

	out.SelectedSites = res.Selected
	out.CoverageImprovement = domain.NewCoverageImprovement(before, res.Coverage)
	out.CoverageHistory = res.History
	out.EfficiencyScore = res.EfficiencyScore
	out.Reason = res.Reason
	for _, s := range res.Selected {
		out.RecommendedFacilities = append(out.RecommendedFacilities, s.AsFacility(o.cfg.RecommendedType, o.cfg.RecommendedCapacity))
	}

	telemetry.SetAttributes(ctx, telemetry.SelectionAttributes(len(res.Selected), string(res.Reason),
		before.CoveragePercentage, res.Coverage.CoveragePercentage)...)

	// Фронт Парето
	if in.IncludeParetoFront {
		refiner := pareto.NewRefiner(o.cfg.Pareto, o.paretoOptions(seed)...)

		sctx, end = o.stage(ctx, StagePareto)
		pr, err := refiner.Refine(sctx, pareto.Problem{
			Bounds:        in.Bounds,
			Cells:         grid.Cells(),
			Candidates:    sites,
			MaxFacilities: c.MaxFacilities,
			SpeedKmh:      accessCfg.Speed(),
		}, rng)
		end(err)
		if err != nil {
			return nil, apperror.FromContext(err)
		}
		out.ParetoFront = pr.Front
		log.Debug("pareto front computed", "size", len(pr.Front), "fronts", pr.Fronts)
	}

	out.Justification = o.justify(ctx, out)

	log.Info("siting run finished",
		"selected", len(out.SelectedSites),
		"reason", out.Reason,
		"coverage_before", before.CoveragePercentage,
		"coverage_after", res.Coverage.CoveragePercentage,
	)
	return out, nil
}

func (o *Optimizer) suitabilityFor(seed int64) candidates.SuitabilityChecker {
	if o.suitability != nil {
		return o.suitability
	}
	if o.landUseProbability > 0 {
		return candidates.NewRandomSuitability(seed, o.landUseProbability)
	}
	return candidates.AlwaysSuitable{}
}

func (o *Optimizer) paretoOptions(seed int64) []pareto.Option {
	opts := []pareto.Option{pareto.WithWorkers(o.cfg.Workers)}
	switch {
	case o.hazards != nil:
		opts = append(opts, pareto.WithHazards(o.hazards))
	case o.simulatedHazards:
		opts = append(opts, pareto.WithHazards(pareto.NewRandomHazards(seed+1)))
	}
	if o.vulnerability != nil {
		opts = append(opts, pareto.WithVulnerability(o.vulnerability))
	}
	return opts
}

// justify текст обоснования; генератор уже обёрнут запасным шаблоном
func (o *Optimizer) justify(ctx context.Context, out *Output) string {
	sctx, end := o.stage(ctx, StageNarrative)
	var underservedPop int64
	for _, cl := range out.UnderservedAreas {
		underservedPop += cl.TotalPopulation
	}
	text, err := o.narrator.Justify(sctx, out.SelectedSites, narrative.Summary{
		Coverage:         out.CoverageImprovement,
		UnderservedAreas: len(out.UnderservedAreas),
		UnderservedPop:   underservedPop,
		Reason:           out.Reason,
	})
	end(err)
	if err != nil {
		logger.WithContext(ctx, "component", "engine").Warn("justification unavailable", "error", err)
		return ""
	}
	return text
}
