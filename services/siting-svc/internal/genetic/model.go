package genetic

import (
	"math"
	"math/rand"

	"siting/pkg/domain"
)

// typeSensitivity вклад типа объекта в экологический штраф
var typeSensitivity = map[domain.FacilityType]float64{
	domain.FacilityLandfill:   1.0,
	domain.FacilityTreatment:  0.8,
	domain.FacilityRecycling:  0.5,
	domain.FacilityCollection: 0.3,
}

// Demand источник спроса; demand.Grid ему удовлетворяет
type Demand interface {
	Cells() []domain.DemandCell
	Within(center domain.Coordinates, radiusKm float64) []int
	PopulationWithin(center domain.Coordinates, radiusKm float64) int64
	TotalPopulation() int64
}

// model неизменяемый контекст оценки, общий для всех геномов прогона
type model struct {
	cfg        Config
	bounds     domain.BoundingBox
	demand     Demand
	speedKmh   float64
	candidates []domain.Coordinates
}

// fitness считает составляющие функции приспособленности для набора генов
func (m *model) fitness(genes []Gene) domain.WasteFitness {
	var f domain.WasteFitness
	if len(genes) == 0 {
		return f
	}

	total := float64(m.demand.TotalPopulation())
	if total > 0 {
		cells := m.demand.Cells()
		accessKm := 2 * m.cfg.AccessThresholdMinutes / 60 * m.speedKmh
		radius := math.Max(m.cfg.ServiceRadiusKm, accessKm)

		// ближайшее расстояние по затронутым ячейкам, обход в порядке первого касания
		nearest := make([]float64, len(cells))
		visited := make([]bool, len(cells))
		var touched []int
		var capacity float64
		for _, g := range genes {
			capacity += g.Capacity
			for _, i := range m.demand.Within(g.Coords(), radius) {
				d := domain.DistanceKm(g.Coords(), cells[i].Coords())
				if !visited[i] {
					visited[i] = true
					touched = append(touched, i)
					nearest[i] = d
				} else if d < nearest[i] {
					nearest[i] = d
				}
			}
		}

		var covered, access float64
		for _, i := range touched {
			d := nearest[i]
			pop := float64(cells[i].Population)
			if d <= m.cfg.ServiceRadiusKm {
				covered += pop
			}
			access += pop * domain.GradedAccess(domain.TravelMinutes(d, m.speedKmh), m.cfg.AccessThresholdMinutes)
		}

		adequacy := math.Min(1, capacity*m.cfg.PopulationPerCapacityUnit/total)
		f.PopulationCoverage = domain.Clamp01(covered / total * adequacy)
		f.Accessibility = domain.Clamp01(access / total)
	}

	var cost, penalty float64
	for _, g := range genes {
		cost += m.cfg.SiteCost + g.Capacity*m.cfg.CapacityUnitCost
		exposed := float64(m.demand.PopulationWithin(g.Coords(), m.cfg.BufferKm))
		penalty += typeSensitivity[g.Type] * domain.Clamp01(exposed/m.cfg.BufferPopulationLimit)
	}
	f.CostEfficiency = 1 / (1 + cost/m.cfg.CostScale)
	f.EnvironmentalPenalty = domain.Clamp01(penalty / float64(len(genes)))
	f.Total = f.Combine()
	return f
}

// randomGene ген в случайной точке области или на случайном кандидате
func (m *model) randomGene(rng *rand.Rand) Gene {
	var c domain.Coordinates
	if len(m.candidates) > 0 {
		c = m.candidates[rng.Intn(len(m.candidates))]
	} else {
		c = domain.Coordinates{
			Lat: m.bounds.MinLat + rng.Float64()*(m.bounds.MaxLat-m.bounds.MinLat),
			Lon: m.bounds.MinLon + rng.Float64()*(m.bounds.MaxLon-m.bounds.MinLon),
		}
	}
	return Gene{
		Lat:      c.Lat,
		Lon:      c.Lon,
		Type:     m.cfg.FacilityTypes[rng.Intn(len(m.cfg.FacilityTypes))],
		Capacity: m.cfg.MinCapacity + rng.Float64()*(m.cfg.MaxCapacity-m.cfg.MinCapacity),
	}
}

func (m *model) newGenome(n int, rng *rand.Rand) *Genome {
	genes := make([]Gene, n)
	for i := range genes {
		genes[i] = m.randomGene(rng)
	}
	return &Genome{Genes: genes, model: m}
}
