// Package sitingv1 описывает сообщения и gRPC-контракт сервиса размещения
// объектов siting.v1.SitingService. Сообщения передаются JSON-кодеком.
package sitingv1

import (
	"encoding/json"
	"time"

	"siting/pkg/domain"
)

// Режимы прогонов
const (
	ModeHealthcare = "healthcare"
	ModeWaste      = "waste"
	ModeRoutes     = "routes"
)

// Форматы отчётов
const (
	FormatMarkdown = "markdown"
	FormatXLSX     = "xlsx"
	FormatPDF      = "pdf"
)

// Constraints ограничения прогона. Незаданные поля берутся из конфигурации движка.
type Constraints struct {
	MaxFacilities           int32             `json:"max_facilities"`
	AccessibilityThresholds *domain.TierTimes `json:"accessibility_thresholds,omitempty"`
	PopulationThreshold     *int64            `json:"population_threshold,omitempty"`
	ServiceRadiusKm         *float64          `json:"service_radius_km,omitempty"`
	MaxCandidateSites       *int32            `json:"max_candidate_sites,omitempty"`
}

// OptimizeRequest запрос размещения медицинских объектов
type OptimizeRequest struct {
	BoundingBox        domain.BoundingBox  `json:"bounding_box"`
	ExistingFacilities []domain.Facility   `json:"existing_facilities,omitempty"`
	PopulationGrid     []domain.DemandCell `json:"population_grid,omitempty"`
	Constraints        Constraints         `json:"constraints"`
	IncludeParetoFront bool                `json:"include_pareto_front,omitempty"`
	IncludeGeoJSON     bool                `json:"include_geojson,omitempty"`
	// ResolvePopulation запрашивает сетку у источников данных, если PopulationGrid пуст
	ResolvePopulation bool `json:"resolve_population,omitempty"`
	// ResolveFacilities дополняет ExistingFacilities реестрами объектов
	ResolveFacilities bool   `json:"resolve_facilities,omitempty"`
	Seed              *int64 `json:"seed,omitempty"`
	SkipCache         bool   `json:"skip_cache,omitempty"`
}

// OptimizeResult результат прогона размещения
type OptimizeResult struct {
	SelectedSites         []domain.SelectedSite       `json:"selected_sites"`
	RecommendedFacilities []domain.Facility           `json:"recommended_facilities"`
	CoverageImprovement   domain.CoverageImprovement  `json:"coverage_improvement"`
	ParetoFront           []domain.Solution           `json:"pareto_front,omitempty"`
	UnderservedAreas      []domain.UnderservedCluster `json:"underserved_areas"`
	UnderservedCells      int32                       `json:"underserved_cells"`
	Accessibility         domain.AccessibilitySummary `json:"accessibility"`
	Population            domain.PopulationStatistics `json:"population"`
	CandidatesEvaluated   int32                       `json:"candidates_evaluated"`
	CoverageHistory       []float64                   `json:"coverage_history"`
	EfficiencyScore       float64                     `json:"efficiency_score"`
	Reason                domain.Reason               `json:"reason,omitempty"`
	Justification         string                      `json:"justification"`
	Seed                  int64                       `json:"seed"`
}

// OptimizeResponse ответ на OptimizeRequest
type OptimizeResponse struct {
	RunID             string          `json:"run_id"`
	CacheHit          bool            `json:"cache_hit"`
	PopulationSource  string          `json:"population_source"`
	ComputationTimeMs float64         `json:"computation_time_ms"`
	Result            OptimizeResult  `json:"result"`
	GeoJSON           json.RawMessage `json:"geojson,omitempty"`
}

// WasteRequest запрос размещения объектов обращения с отходами
type WasteRequest struct {
	BoundingBox       domain.BoundingBox   `json:"bounding_box"`
	PopulationGrid    []domain.DemandCell  `json:"population_grid,omitempty"`
	ResolvePopulation bool                 `json:"resolve_population,omitempty"`
	NumFacilities     int32                `json:"num_facilities"`
	Candidates        []domain.Coordinates `json:"candidates,omitempty"`
	Depot             *domain.Coordinates  `json:"depot,omitempty"`
	Vehicles          []domain.Vehicle     `json:"vehicles,omitempty"`
	Points            []domain.WastePoint  `json:"points,omitempty"`
	Seed              *int64               `json:"seed,omitempty"`
	IncludeGeoJSON    bool                 `json:"include_geojson,omitempty"`
}

// RoutePlan маршруты вывоза
type RoutePlan struct {
	Routes          []domain.Route      `json:"routes"`
	Unassigned      []domain.WastePoint `json:"unassigned"`
	TotalDistanceKm float64             `json:"total_distance_km"`
	TotalLoad       float64             `json:"total_load"`
}

// WasteResponse ответ на WasteRequest
type WasteResponse struct {
	RunID             string              `json:"run_id"`
	Facilities        []domain.Facility   `json:"facilities"`
	Fitness           domain.WasteFitness `json:"fitness"`
	Generations       int32               `json:"generations"`
	FitnessHistory    []float64           `json:"fitness_history"`
	StoppedOnPlateau  bool                `json:"stopped_on_plateau"`
	Routes            *RoutePlan          `json:"routes,omitempty"`
	Seed              int64               `json:"seed"`
	ComputationTimeMs float64             `json:"computation_time_ms"`
	GeoJSON           json.RawMessage     `json:"geojson,omitempty"`
}

// RouteRequest запрос построения маршрутов
type RouteRequest struct {
	Depot    domain.Coordinates  `json:"depot"`
	Vehicles []domain.Vehicle    `json:"vehicles"`
	Points   []domain.WastePoint `json:"points"`
}

// RouteResponse ответ на RouteRequest
type RouteResponse struct {
	Plan              RoutePlan `json:"plan"`
	ComputationTimeMs float64   `json:"computation_time_ms"`
}

// Run сохранённый прогон
type Run struct {
	ID             string             `json:"id"`
	Mode           string             `json:"mode"`
	RequestHash    string             `json:"request_hash"`
	BoundingBox    domain.BoundingBox `json:"bounding_box"`
	MaxFacilities  int32              `json:"max_facilities"`
	SelectedSites  int32              `json:"selected_sites"`
	CoverageBefore float64            `json:"coverage_before"`
	CoverageAfter  float64            `json:"coverage_after"`
	Reason         string             `json:"reason,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	// Result полный ответ прогона; в ListRuns не заполняется
	Result json.RawMessage `json:"result,omitempty"`
}

// GetRunRequest запрос прогона по идентификатору
type GetRunRequest struct {
	RunID string `json:"run_id"`
}

// GetRunResponse ответ на GetRunRequest
type GetRunResponse struct {
	Run *Run `json:"run"`
}

// ListRunsRequest запрос истории прогонов
type ListRunsRequest struct {
	Limit  int32    `json:"limit,omitempty"`
	Offset int32    `json:"offset,omitempty"`
	Modes  []string `json:"modes,omitempty"`
}

// ListRunsResponse страница истории
type ListRunsResponse struct {
	Runs  []*Run `json:"runs"`
	Total int64  `json:"total"`
}

// GeoJSONResponse FeatureCollection прогона
type GeoJSONResponse struct {
	RunID             string          `json:"run_id"`
	FeatureCollection json.RawMessage `json:"feature_collection"`
}

// ReportRequest запрос отчёта по прогону
type ReportRequest struct {
	RunID  string `json:"run_id"`
	Format string `json:"format,omitempty"`
	Title  string `json:"title,omitempty"`
}

// ReportResponse сформированный отчёт
type ReportResponse struct {
	Content     []byte `json:"content"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
	SizeBytes   int64  `json:"size_bytes"`
}
