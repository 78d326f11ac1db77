package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Ключи атрибутов
const (
	// Запрос
	AttrMode          = "siting.mode"
	AttrMaxFacilities = "siting.max_facilities"
	AttrCells         = "siting.cells"
	AttrFacilities    = "siting.existing_facilities"
	AttrRequestHash   = "siting.request_hash"
	AttrCacheHit      = "siting.cache_hit"

	// Этапы движка
	AttrStage           = "siting.stage"
	AttrUnderserved     = "siting.underserved_cells"
	AttrClusters        = "siting.clusters"
	AttrCandidates      = "siting.candidates"
	AttrSelected        = "siting.selected_sites"
	AttrReason          = "siting.reason"
	AttrCoverageBefore  = "siting.coverage_before"
	AttrCoverageAfter   = "siting.coverage_after"
	AttrParetoFrontSize = "siting.pareto_front_size"
	AttrGenerations     = "siting.ga_generations"
	AttrFitness         = "siting.ga_fitness"
	AttrRoutes          = "siting.routes"
	AttrRouteDistanceKm = "siting.route_distance_km"

	// Прогон
	AttrRunID = "siting.run_id"
)

// RequestAttributes атрибуты входных данных прогона
func RequestAttributes(mode string, maxFacilities, cells, facilities int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMode, mode),
		attribute.Int(AttrMaxFacilities, maxFacilities),
		attribute.Int(AttrCells, cells),
		attribute.Int(AttrFacilities, facilities),
	}
}

// SelectionAttributes атрибуты результата отбора
func SelectionAttributes(selected int, reason string, before, after float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrSelected, selected),
		attribute.String(AttrReason, reason),
		attribute.Float64(AttrCoverageBefore, before),
		attribute.Float64(AttrCoverageAfter, after),
	}
}

// GeneticAttributes атрибуты прогона генетического алгоритма
func GeneticAttributes(generations int, fitness float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrGenerations, generations),
		attribute.Float64(AttrFitness, fitness),
	}
}
