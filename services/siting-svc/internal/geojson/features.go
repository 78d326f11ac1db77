// Package geojson собирает результат размещения в GeoJSON FeatureCollection.
package geojson

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"siting/pkg/domain"
	"siting/services/siting-svc/internal/routing"
)

// Значения свойства type
const (
	TypeExisting    = "existing_facility"
	TypeRecommended = "recommended_facility"
	TypeUnderserved = "underserved_area"
	TypeRoute       = "collection_route"
)

// Build существующие объекты, рекомендованные площадки и центроиды
// недообслуженных кластеров. Геометрия всегда Point [lon, lat].
func Build(existing []domain.Facility, selected []domain.SelectedSite, clusters []domain.UnderservedCluster) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range existing {
		fc.Append(facilityFeature(f, TypeExisting))
	}

	for _, s := range selected {
		feat := geojson.NewFeature(s.Coords.Point())
		feat.ID = s.ID
		feat.Properties["type"] = TypeRecommended
		feat.Properties["id"] = s.ID
		feat.Properties["candidate_type"] = string(s.Type)
		feat.Properties["selection_order"] = s.SelectionOrder
		feat.Properties["additional_coverage"] = s.AdditionalCoverage
		feat.Properties["cumulative_coverage"] = s.CumulativeCoverage
		feat.Properties["cumulative_coverage_percentage"] = s.CumulativeCoveragePercentage
		feat.Properties["priority"] = s.Priority
		fc.Append(feat)
	}

	for i, c := range clusters {
		feat := geojson.NewFeature(c.Centroid.Point())
		feat.Properties["type"] = TypeUnderserved
		feat.Properties["cluster_index"] = i
		feat.Properties["population"] = c.TotalPopulation
		feat.Properties["priority"] = c.Priority
		feat.Properties["cells"] = len(c.Members)
		fc.Append(feat)
	}
	return fc
}

// BuildWaste предлагаемые объекты обращения с отходами и маршруты вывоза.
// Маршрут это LineString от депо через точки обратно в депо.
func BuildWaste(facilities []domain.Facility, depot domain.Coordinates, plan *routing.Plan) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range facilities {
		fc.Append(facilityFeature(f, TypeRecommended))
	}
	if plan == nil {
		return fc
	}

	for _, r := range plan.Routes {
		if len(r.Stops) == 0 {
			continue
		}
		line := make(orb.LineString, 0, len(r.Stops)+2)
		line = append(line, depot.Point())
		for _, s := range r.Stops {
			line = append(line, s.Coords.Point())
		}
		line = append(line, depot.Point())

		feat := geojson.NewFeature(line)
		feat.Properties["type"] = TypeRoute
		feat.Properties["vehicle_id"] = r.VehicleID
		feat.Properties["stops"] = len(r.Stops)
		feat.Properties["load"] = r.Load
		feat.Properties["distance_km"] = r.TotalDistanceKm
		feat.Properties["time_hours"] = r.TotalTimeHours
		fc.Append(feat)
	}
	return fc
}

func facilityFeature(f domain.Facility, kind string) *geojson.Feature {
	feat := geojson.NewFeature(f.Coords.Point())
	feat.ID = f.ID
	feat.Properties["type"] = kind
	feat.Properties["id"] = f.ID
	feat.Properties["facility_type"] = string(f.Type)
	if f.Name != "" {
		feat.Properties["name"] = f.Name
	}
	if f.Capacity > 0 {
		feat.Properties["capacity"] = f.Capacity
	}
	return feat
}
