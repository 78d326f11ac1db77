// Package service реализует gRPC сервис siting.v1.SitingService поверх движка.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	sitingv1 "siting/api/siting/v1"
	"siting/pkg/apperror"
	"siting/pkg/cache"
	"siting/pkg/config"
	"siting/pkg/domain"
	"siting/pkg/logger"
	"siting/pkg/metrics"
	"siting/services/siting-svc/internal/engine"
	"siting/services/siting-svc/internal/providers"
	"siting/services/siting-svc/internal/report"
	"siting/services/siting-svc/internal/repository"
	"siting/services/siting-svc/internal/routing"
)

// Engine движок оптимизации
type Engine interface {
	DefaultConstraints(maxFacilities int) engine.Constraints
	Optimize(ctx context.Context, in engine.Input) (*engine.Output, error)
	OptimizeWaste(ctx context.Context, in engine.WasteInput) (*engine.WasteOutput, error)
	PlanRoutes(ctx context.Context, depot domain.Coordinates, vehicles []domain.Vehicle, points []domain.WastePoint) (*routing.Plan, error)
}

// Config настройки сервиса
type Config struct {
	Optimizer config.OptimizerConfig
	Providers config.ProvidersConfig
	Report    config.ReportConfig
}

// Option опция сервиса
type Option func(*SitingService)

// WithCache включает кэш результатов и кэш источников населения
func WithCache(c cache.Cache) Option {
	return func(s *SitingService) { s.cache = c }
}

// WithFacilityRegistries реестры, которыми дополняются объекты запроса
func WithFacilityRegistries(registries ...providers.FacilityProvider) Option {
	return func(s *SitingService) { s.registries = append(s.registries, registries...) }
}

// SitingService реализация sitingv1.SitingServiceServer
type SitingService struct {
	sitingv1.UnimplementedSitingServiceServer

	cfg        Config
	engine     Engine
	repo       repository.RunRepository
	cache      cache.Cache
	results    *cache.ResultCache
	density    providers.PopulationProvider
	registries []providers.FacilityProvider
	reports    *report.Registry
	metrics    *metrics.Metrics
}

// NewSitingService создаёт сервис
func NewSitingService(cfg Config, eng Engine, repo repository.RunRepository, opts ...Option) *SitingService {
	s := &SitingService{
		cfg:     cfg,
		engine:  eng,
		repo:    repo,
		reports: report.NewRegistry(cfg.Report),
		metrics: metrics.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var density providers.PopulationProvider = providers.AreaDensity{
		DensityPerKm2: cfg.Providers.DefaultDensityPerKm2,
		ResolutionKm:  cfg.Providers.GridResolutionKm,
	}
	if s.cache != nil {
		density = providers.NewCachedPopulation(density, s.cache, cfg.Providers.CacheTTL)
		if cfg.Optimizer.CacheResults {
			s.results = cache.NewResultCache(s.cache, cfg.Optimizer.ResultTTL, engineScope(cfg.Optimizer.Engine))
		}
	}
	s.density = density

	return s
}

// withTimeout ограничивает прогон таймаутом оптимизатора
func (s *SitingService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Optimizer.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Optimizer.Timeout)
	}
	return context.WithCancel(ctx)
}

// resolvePopulation возвращает сетку и имя источника. Сетка запроса имеет
// приоритет; плотность по области используется только по запросу.
func (s *SitingService) resolvePopulation(ctx context.Context, bbox domain.BoundingBox, cells []domain.DemandCell, resolve bool) ([]domain.DemandCell, string, error) {
	chain := []providers.PopulationProvider{providers.StaticPopulation{Cells: cells}}
	if resolve {
		chain = append(chain, s.density)
	}

	grid, source, err := providers.NewFallbackPopulation(chain...).Resolve(ctx, bbox)
	switch {
	case err == nil:
	case errors.Is(err, providers.ErrNoData) && !resolve:
		// Пустая сетка даёт нулевое покрытие, это не ошибка
		return nil, "none", nil
	case ctx.Err() != nil:
		return nil, "", apperror.FromContext(ctx.Err())
	default:
		return nil, "", apperror.Wrap(err, apperror.CodeProviderFailed, "population data unavailable")
	}

	if limit := s.cfg.Optimizer.MaxGridCells; limit > 0 && len(grid) > limit {
		return nil, "", apperror.Configuration("population_grid",
			"grid has %d cells, limit is %d", len(grid), limit)
	}

	s.metrics.RecordProvider("population", source)
	return grid, source, nil
}

// resolveFacilities объединяет объекты запроса с реестрами
func (s *SitingService) resolveFacilities(ctx context.Context, bbox domain.BoundingBox, items []domain.Facility, resolve bool) ([]domain.Facility, error) {
	if !resolve || len(s.registries) == 0 {
		return items, nil
	}

	chain := append([]providers.FacilityProvider{providers.StaticFacilities{Items: items}}, s.registries...)
	merged, err := providers.NewMergedFacilities(chain...).Facilities(ctx, bbox)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeProviderFailed, "facility registries unavailable")
	}
	s.metrics.RecordProvider("facilities", "merged")
	return merged, nil
}

// checkFacilities проверяет верхнюю границу числа объектов
func (s *SitingService) checkFacilities(field string, n int) error {
	if limit := s.cfg.Optimizer.MaxFacilitiesCap; limit > 0 && n > limit {
		return apperror.Configuration(field, "must be at most %d, got %d", limit, n)
	}
	return nil
}

// persist сохраняет прогон. Ошибка хранилища не отменяет результат.
func (s *SitingService) persist(ctx context.Context, run *repository.Run, result any) string {
	if !s.cfg.Optimizer.PersistRuns || s.repo == nil {
		return ""
	}

	raw, err := json.Marshal(result)
	if err != nil {
		logger.WithContext(ctx).Error("failed to encode run result", "mode", run.Mode, "error", err)
		return ""
	}
	run.Result = raw

	if err := s.repo.Save(ctx, run); err != nil {
		logger.WithContext(ctx).Error("failed to persist run", "mode", run.Mode, "error", err)
		return ""
	}
	return run.ID.String()
}

// newRun заготовка записи прогона с заранее выданным ID
func newRun(mode, hash string, bbox domain.BoundingBox, seed int64, elapsed time.Duration) *repository.Run {
	return &repository.Run{
		ID:            uuid.New(),
		Mode:          mode,
		RequestHash:   hash,
		BoundingBox:   bbox,
		Seed:          seed,
		ComputationMs: float64(elapsed.Microseconds()) / 1000,
		CreatedAt:     time.Now().UTC(),
	}
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrRunNotFound):
		return apperror.NewWithField(apperror.CodeRunNotFound, "run not found", "run_id")
	case errors.Is(err, repository.ErrInvalidID):
		return apperror.Configuration("run_id", "%v", err)
	default:
		return apperror.Wrap(err, apperror.CodeUnavailable, "run storage unavailable")
	}
}

func toRoutePlan(p *routing.Plan) *sitingv1.RoutePlan {
	if p == nil {
		return nil
	}
	return &sitingv1.RoutePlan{
		Routes:          p.Routes,
		Unassigned:      p.Unassigned,
		TotalDistanceKm: p.TotalDistanceKm,
		TotalLoad:       p.TotalLoad,
	}
}

func toRun(r *repository.Run, withResult bool) *sitingv1.Run {
	out := &sitingv1.Run{
		ID:             r.ID.String(),
		Mode:           r.Mode,
		RequestHash:    r.RequestHash,
		BoundingBox:    r.BoundingBox,
		MaxFacilities:  int32(r.MaxFacilities),
		SelectedSites:  int32(r.SelectedSites),
		CoverageBefore: r.CoverageBefore,
		CoverageAfter:  r.CoverageAfter,
		Reason:         r.Reason,
		CreatedAt:      r.CreatedAt,
	}
	if withResult {
		out.Result = r.Result
	}
	return out
}

// engineScope отпечаток настроек движка: после их смены старые результаты
// в общем кэше не находятся
func engineScope(engine map[string]any) string {
	if len(engine) == 0 {
		return ""
	}
	h, err := cache.RequestHash(engine)
	if err != nil {
		return ""
	}
	return "e" + h[:8]
}
