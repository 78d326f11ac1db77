// Package candidates генерирует и оценивает площадки-кандидаты: центры
// недообслуженных кластеров и регулярную выборку по области.
package candidates

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"siting/pkg/domain"
	"siting/pkg/spatial"
)

// Config параметры генерации
type Config struct {
	ServiceRadiusKm   float64
	MaxCandidateSites int
	LatticeSamples    int
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() Config {
	return Config{
		ServiceRadiusKm:   domain.DefaultServiceRadiusKm,
		MaxCandidateSites: domain.DefaultMaxCandidateSites,
		LatticeSamples:    domain.DefaultLatticeSamples,
	}
}

// NearestFunc расстояние до ближайшего существующего объекта, км
type NearestFunc func(p domain.Coordinates) float64

// Generator генератор кандидатов
type Generator struct {
	cfg         Config
	suitability SuitabilityChecker
	nearest     NearestFunc
}

// NewGenerator создаёт генератор. nil-стратегии заменяются значениями по умолчанию.
func NewGenerator(cfg Config, suitability SuitabilityChecker, nearest NearestFunc) *Generator {
	if suitability == nil {
		suitability = AlwaysSuitable{}
	}
	if nearest == nil {
		nearest = func(domain.Coordinates) float64 { return math.Inf(1) }
	}
	return &Generator{cfg: cfg, suitability: suitability, nearest: nearest}
}

// Scorer оценивает обслуживаемое население по недообслуженным ячейкам
type Scorer struct {
	radiusKm float64
	cells    []domain.UnderservedCell
	index    *spatial.Index
}

// NewScorer индексирует недообслуженные ячейки
func NewScorer(cells []domain.UnderservedCell, radiusKm float64) *Scorer {
	coords := make([]domain.Coordinates, len(cells))
	for i, c := range cells {
		coords[i] = c.Record.Cell.Coords()
	}
	return &Scorer{radiusKm: radiusKm, cells: cells, index: spatial.NewIndex(coords)}
}

// ServedPopulation сумма недообслуженного населения в радиусе обслуживания
func (s *Scorer) ServedPopulation(p domain.Coordinates) int64 {
	var sum int64
	for _, i := range s.index.Within(p, s.radiusKm) {
		sum += s.cells[i].Record.Cell.Population
	}
	return sum
}

// Generate строит список кандидатов, отсортированный по убыванию приоритета
func (g *Generator) Generate(
	ctx context.Context,
	bounds domain.BoundingBox,
	cells []domain.UnderservedCell,
	clusters []domain.UnderservedCluster,
) ([]domain.CandidateSite, error) {
	scorer := NewScorer(cells, g.cfg.ServiceRadiusKm)

	raw := make([]domain.CandidateSite, 0, len(clusters)+g.cfg.LatticeSamples)
	for i, cl := range clusters {
		raw = append(raw, domain.CandidateSite{
			ID:           SiteID(domain.CandidateClusterCenter, cl.Centroid),
			Coords:       cl.Centroid,
			Type:         domain.CandidateClusterCenter,
			ClusterIndex: i,
		})
	}
	for _, p := range Lattice(bounds, g.cfg.LatticeSamples) {
		raw = append(raw, domain.CandidateSite{
			ID:           SiteID(domain.CandidateSpatialSample, p),
			Coords:       p,
			Type:         domain.CandidateSpatialSample,
			ClusterIndex: -1,
		})
	}

	result := make([]domain.CandidateSite, 0, len(raw))
	for _, site := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		site.LandSuitability = g.suitability.Assess(ctx, site.Coords)
		if !site.LandSuitability.Suitable {
			continue
		}
		result = append(result, g.Score(scorer, site))
	}

	sort.SliceStable(result, func(a, b int) bool {
		return result[a].Priority > result[b].Priority
	})
	if g.cfg.MaxCandidateSites > 0 && len(result) > g.cfg.MaxCandidateSites {
		result = result[:g.cfg.MaxCandidateSites]
	}
	return result, nil
}

// Score оценивает кандидата. Повторная оценка по тем же данным даёт тот же результат.
func (g *Generator) Score(scorer *Scorer, site domain.CandidateSite) domain.CandidateSite {
	site.EstimatedServedPopulation = scorer.ServedPopulation(site.Coords)
	site.AccessibilityScore = AccessibilityScore(g.nearest(site.Coords), g.cfg.ServiceRadiusKm)
	site.Priority = float64(site.EstimatedServedPopulation) * (0.5 + 0.5*site.AccessibilityScore)
	return site
}

// AccessibilityScore чем дальше от существующих объектов, тем ценнее площадка;
// на расстоянии двух радиусов и больше оценка равна 1
func AccessibilityScore(nearestKm, radiusKm float64) float64 {
	if math.IsInf(nearestKm, 1) || radiusKm <= 0 {
		return 1
	}
	return domain.Clamp01(nearestKm / (2 * radiusKm))
}

// Lattice регулярная выборка до n центров ячеек по области
func Lattice(bounds domain.BoundingBox, n int) []domain.Coordinates {
	if n <= 0 || bounds.IsDegenerate() {
		return nil
	}

	rows := int(math.Sqrt(float64(n)))
	cols := n / rows
	dLat := (bounds.MaxLat - bounds.MinLat) / float64(rows)
	dLon := (bounds.MaxLon - bounds.MinLon) / float64(cols)

	points := make([]domain.Coordinates, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			points = append(points, domain.Coordinates{
				Lat: bounds.MinLat + (float64(r)+0.5)*dLat,
				Lon: bounds.MinLon + (float64(c)+0.5)*dLon,
			})
		}
	}
	return points
}

// SiteID детерминированный идентификатор площадки (UUID v5 от типа и координат)
func SiteID(kind domain.CandidateType, p domain.Coordinates) string {
	name := fmt.Sprintf("%s:%.6f,%.6f", kind, p.Lat, p.Lon)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
