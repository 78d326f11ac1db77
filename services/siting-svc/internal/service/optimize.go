package service

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sitingv1 "siting/api/siting/v1"
	"siting/pkg/apperror"
	"siting/pkg/cache"
	"siting/pkg/domain"
	"siting/pkg/logger"
	"siting/pkg/metrics"
	"siting/pkg/telemetry"
	"siting/services/siting-svc/internal/engine"
	"siting/services/siting-svc/internal/geojson"
)

// Optimize размещение медицинских объектов
func (s *SitingService) Optimize(ctx context.Context, req *sitingv1.OptimizeRequest) (*sitingv1.OptimizeResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "SitingService.Optimize",
		trace.WithAttributes(
			attribute.Int("max_facilities", int(req.Constraints.MaxFacilities)),
			attribute.Bool("skip_cache", req.SkipCache),
		),
	)
	defer span.End()

	if err := s.checkFacilities("max_facilities", int(req.Constraints.MaxFacilities)); err != nil {
		return nil, err
	}

	hash, err := optimizeHash(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "hash request")
	}

	// Проверяем кэш
	if s.results != nil && !req.SkipCache {
		var cached sitingv1.OptimizeResponse
		found, err := s.results.Get(ctx, sitingv1.ModeHealthcare, hash, &cached)
		if err != nil {
			logger.WithContext(ctx).Warn("result cache lookup failed", "error", err)
		}
		s.metrics.RecordCacheLookup(found)
		span.SetAttributes(attribute.Bool("cache_hit", found))
		if found {
			telemetry.AddEvent(ctx, "cache_hit", attribute.String("run_id", cached.RunID))
			cached.CacheHit = true
			if !req.IncludeGeoJSON {
				cached.GeoJSON = nil
			}
			return &cached, nil
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()

	grid, source, err := s.resolvePopulation(ctx, req.BoundingBox, req.PopulationGrid, req.ResolvePopulation)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}
	existing, err := s.resolveFacilities(ctx, req.BoundingBox, req.ExistingFacilities, req.ResolveFacilities)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	out, err := s.engine.Optimize(ctx, engine.Input{
		Bounds:             req.BoundingBox,
		ExistingFacilities: existing,
		PopulationGrid:     grid,
		Constraints:        s.constraints(req.Constraints),
		IncludeParetoFront: req.IncludeParetoFront,
		Seed:               req.Seed,
	})
	s.metrics.RecordRun(runMetrics(out, err))
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, apperror.FromContext(err)
	}
	elapsed := time.Since(start)

	fc, err := json.Marshal(geojson.Build(existing, out.SelectedSites, out.UnderservedAreas))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "encode geojson")
	}

	resp := &sitingv1.OptimizeResponse{
		PopulationSource:  source,
		ComputationTimeMs: float64(elapsed.Microseconds()) / 1000,
		Result:            toOptimizeResult(out),
		GeoJSON:           fc,
	}

	run := newRun(sitingv1.ModeHealthcare, hash, req.BoundingBox, out.Seed, elapsed)
	run.MaxFacilities = int(req.Constraints.MaxFacilities)
	run.SelectedSites = len(out.SelectedSites)
	run.CoverageBefore = out.CoverageImprovement.Before.CoveragePercentage
	run.CoverageAfter = out.CoverageImprovement.After.CoveragePercentage
	run.Reason = string(out.Reason)
	resp.RunID = s.persist(ctx, run, resp)

	if s.results != nil {
		if err := s.results.Set(ctx, sitingv1.ModeHealthcare, hash, resp); err != nil {
			logger.WithContext(ctx).Warn("failed to cache optimize result", "error", err)
		}
	}

	logger.WithContext(ctx).Info("optimization finished",
		"run_id", resp.RunID,
		"selected", len(out.SelectedSites),
		"coverage_after", run.CoverageAfter,
		"population_source", source,
		"duration_ms", resp.ComputationTimeMs,
	)

	if !req.IncludeGeoJSON {
		resp.GeoJSON = nil
	}
	return resp, nil
}

// OptimizeWaste размещение объектов обращения с отходами
func (s *SitingService) OptimizeWaste(ctx context.Context, req *sitingv1.WasteRequest) (*sitingv1.WasteResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "SitingService.OptimizeWaste",
		trace.WithAttributes(attribute.Int("num_facilities", int(req.NumFacilities))),
	)
	defer span.End()

	if err := s.checkFacilities("num_facilities", int(req.NumFacilities)); err != nil {
		return nil, err
	}

	hash, err := cache.RequestHash(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "hash request")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()

	grid, _, err := s.resolvePopulation(ctx, req.BoundingBox, req.PopulationGrid, req.ResolvePopulation)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	out, err := s.engine.OptimizeWaste(ctx, engine.WasteInput{
		Bounds:         req.BoundingBox,
		PopulationGrid: grid,
		NumFacilities:  int(req.NumFacilities),
		Candidates:     req.Candidates,
		Depot:          req.Depot,
		Vehicles:       req.Vehicles,
		Points:         req.Points,
		Seed:           req.Seed,
	})
	if err != nil {
		s.metrics.RecordRun(metrics.Run{Mode: sitingv1.ModeWaste, Err: err})
		telemetry.SetError(ctx, err)
		return nil, apperror.FromContext(err)
	}
	wasteRun := metrics.Run{
		Mode:          sitingv1.ModeWaste,
		Selected:      len(out.Facilities),
		CoverageAfter: out.Fitness.PopulationCoverage,
		Candidates:    len(req.Candidates),
		Generations:   out.Generations,
	}
	if out.Routes != nil {
		wasteRun.RouteKm = out.Routes.TotalDistanceKm
	}
	s.metrics.RecordRun(wasteRun)
	elapsed := time.Since(start)

	var depot domain.Coordinates
	if req.Depot != nil {
		depot = *req.Depot
	}
	fc, err := json.Marshal(geojson.BuildWaste(out.Facilities, depot, out.Routes))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "encode geojson")
	}

	resp := &sitingv1.WasteResponse{
		Facilities:        out.Facilities,
		Fitness:           out.Fitness,
		Generations:       int32(out.Generations),
		FitnessHistory:    out.FitnessHistory,
		StoppedOnPlateau:  out.StoppedOnPlateau,
		Routes:            toRoutePlan(out.Routes),
		Seed:              out.Seed,
		ComputationTimeMs: float64(elapsed.Microseconds()) / 1000,
		GeoJSON:           fc,
	}

	run := newRun(sitingv1.ModeWaste, hash, req.BoundingBox, out.Seed, elapsed)
	run.MaxFacilities = int(req.NumFacilities)
	run.SelectedSites = len(out.Facilities)
	run.CoverageAfter = out.Fitness.PopulationCoverage
	resp.RunID = s.persist(ctx, run, resp)

	logger.WithContext(ctx).Info("waste siting finished",
		"run_id", resp.RunID,
		"facilities", len(out.Facilities),
		"fitness", out.Fitness.Total,
		"generations", out.Generations,
	)

	if !req.IncludeGeoJSON {
		resp.GeoJSON = nil
	}
	return resp, nil
}

// routeRecord сохраняемый результат маршрутизации вместе с GeoJSON
type routeRecord struct {
	sitingv1.RouteResponse
	GeoJSON json.RawMessage `json:"geojson,omitempty"`
}

// PlanRoutes только маршруты вывоза
func (s *SitingService) PlanRoutes(ctx context.Context, req *sitingv1.RouteRequest) (*sitingv1.RouteResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "SitingService.PlanRoutes",
		trace.WithAttributes(
			attribute.Int("vehicles", len(req.Vehicles)),
			attribute.Int("points", len(req.Points)),
		),
	)
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	plan, err := s.engine.PlanRoutes(ctx, req.Depot, req.Vehicles, req.Points)
	if err != nil {
		s.metrics.RecordRun(metrics.Run{Mode: sitingv1.ModeRoutes, Err: err})
		telemetry.SetError(ctx, err)
		return nil, err
	}
	s.metrics.RecordRun(metrics.Run{Mode: sitingv1.ModeRoutes, Selected: len(plan.Routes), RouteKm: plan.TotalDistanceKm})
	elapsed := time.Since(start)

	resp := &sitingv1.RouteResponse{
		Plan:              *toRoutePlan(plan),
		ComputationTimeMs: float64(elapsed.Microseconds()) / 1000,
	}

	fc, err := json.Marshal(geojson.BuildWaste(nil, req.Depot, plan))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "encode geojson")
	}

	hash, err := cache.RequestHash(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "hash request")
	}
	run := newRun(sitingv1.ModeRoutes, hash, routesBounds(req), 0, elapsed)
	run.SelectedSites = len(plan.Routes)
	s.persist(ctx, run, routeRecord{RouteResponse: *resp, GeoJSON: fc})

	return resp, nil
}

// constraints ограничения запроса поверх значений конфигурации
func (s *SitingService) constraints(c sitingv1.Constraints) engine.Constraints {
	out := s.engine.DefaultConstraints(int(c.MaxFacilities))
	if c.AccessibilityThresholds != nil {
		out.Thresholds = *c.AccessibilityThresholds
	}
	if c.PopulationThreshold != nil {
		out.PopulationThreshold = *c.PopulationThreshold
	}
	if c.ServiceRadiusKm != nil {
		out.ServiceRadiusKm = *c.ServiceRadiusKm
	}
	if c.MaxCandidateSites != nil {
		out.MaxCandidateSites = int(*c.MaxCandidateSites)
	}
	return out
}

// optimizeHash хеш запроса без флагов, не влияющих на результат
func optimizeHash(req *sitingv1.OptimizeRequest) (string, error) {
	key := *req
	key.SkipCache = false
	key.IncludeGeoJSON = false
	return cache.RequestHash(key)
}

// routesBounds охват депо и точек сбора
func routesBounds(req *sitingv1.RouteRequest) domain.BoundingBox {
	bbox := domain.BoundingBox{
		MinLat: req.Depot.Lat, MaxLat: req.Depot.Lat,
		MinLon: req.Depot.Lon, MaxLon: req.Depot.Lon,
	}
	for _, p := range req.Points {
		bbox.MinLat = min(bbox.MinLat, p.Coords.Lat)
		bbox.MaxLat = max(bbox.MaxLat, p.Coords.Lat)
		bbox.MinLon = min(bbox.MinLon, p.Coords.Lon)
		bbox.MaxLon = max(bbox.MaxLon, p.Coords.Lon)
	}
	return bbox
}

func toOptimizeResult(out *engine.Output) sitingv1.OptimizeResult {
	return sitingv1.OptimizeResult{
		SelectedSites:         out.SelectedSites,
		RecommendedFacilities: out.RecommendedFacilities,
		CoverageImprovement:   out.CoverageImprovement,
		ParetoFront:           out.ParetoFront,
		UnderservedAreas:      out.UnderservedAreas,
		UnderservedCells:      int32(out.UnderservedCells),
		Accessibility:         out.Accessibility,
		Population:            out.Population,
		CandidatesEvaluated:   int32(out.CandidatesEvaluated),
		CoverageHistory:       out.CoverageHistory,
		EfficiencyScore:       out.EfficiencyScore,
		Reason:                out.Reason,
		Justification:         out.Justification,
		Seed:                  out.Seed,
	}
}

// runMetrics итог общего прогона для metrics.RecordRun; out nil при ошибке
func runMetrics(out *engine.Output, err error) metrics.Run {
	r := metrics.Run{Mode: sitingv1.ModeHealthcare, Err: err}
	if out == nil {
		return r
	}
	r.Selected = len(out.SelectedSites)
	r.CoverageBefore = out.CoverageImprovement.Before.CoveragePercentage
	r.CoverageAfter = out.CoverageImprovement.After.CoveragePercentage
	r.Candidates = out.CandidatesEvaluated
	r.UnderservedCells = out.UnderservedCells
	r.ParetoFront = len(out.ParetoFront)
	return r
}
