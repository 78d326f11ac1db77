package candidates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/domain"
)

func km(v float64) float64 { return v / domain.KmPerDegree }

var box = domain.NewBoundingBox(0, 0, km(20), km(20))

func underservedCell(id int, latKm, lonKm float64, pop int64) domain.UnderservedCell {
	return domain.UnderservedCell{
		Record: domain.AccessibilityRecord{
			Cell: domain.DemandCell{ID: id, Lat: km(latKm), Lon: km(lonKm), Population: pop},
		},
		Priority: float64(pop),
	}
}

func fixture() ([]domain.UnderservedCell, []domain.UnderservedCluster) {
	cells := []domain.UnderservedCell{
		underservedCell(0, 15, 15, 4000),
		underservedCell(1, 15, 16, 3000),
		underservedCell(2, 2, 2, 500),
	}
	clusters := []domain.UnderservedCluster{
		{
			Members:         []domain.DemandCell{cells[0].Record.Cell, cells[1].Record.Cell},
			Centroid:        domain.Coordinates{Lat: km(15), Lon: km(15.5)},
			TotalPopulation: 7000,
			Priority:        4000,
		},
		{
			Members:         []domain.DemandCell{cells[2].Record.Cell},
			Centroid:        cells[2].Record.Cell.Coords(),
			TotalPopulation: 500,
			Priority:        500,
		},
	}
	return cells, clusters
}

func TestGenerate_ClusterCentersAndLattice(t *testing.T) {
	cells, clusters := fixture()
	gen := NewGenerator(DefaultConfig(), nil, nil)

	sites, err := gen.Generate(context.Background(), box, cells, clusters)
	require.NoError(t, err)

	require.Len(t, sites, 2+20)
	var centers, samples int
	for _, s := range sites {
		switch s.Type {
		case domain.CandidateClusterCenter:
			centers++
		case domain.CandidateSpatialSample:
			samples++
		}
		assert.True(t, s.LandSuitability.Suitable)
		assert.NotEmpty(t, s.ID)
	}
	assert.Equal(t, 2, centers)
	assert.Equal(t, 20, samples)

	// Лучший кандидат: центр большого кластера, покрывает обе его ячейки
	assert.Equal(t, domain.CandidateClusterCenter, sites[0].Type)
	assert.Equal(t, int64(7000), sites[0].EstimatedServedPopulation)

	for i := 1; i < len(sites); i++ {
		assert.GreaterOrEqual(t, sites[i-1].Priority, sites[i].Priority)
	}
}

func TestGenerate_TruncatesToMax(t *testing.T) {
	cells, clusters := fixture()
	cfg := DefaultConfig()
	cfg.MaxCandidateSites = 5
	gen := NewGenerator(cfg, nil, nil)

	sites, err := gen.Generate(context.Background(), box, cells, clusters)
	require.NoError(t, err)
	assert.Len(t, sites, 5)
}

func TestGenerate_FiltersUnsuitable(t *testing.T) {
	cells, clusters := fixture()
	never := SuitabilityFunc(func(context.Context, domain.Coordinates) domain.LandSuitability {
		return domain.LandSuitability{Suitable: false, Constraints: []string{"protected_area"}}
	})
	gen := NewGenerator(DefaultConfig(), never, nil)

	sites, err := gen.Generate(context.Background(), box, cells, clusters)
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestGenerate_DeterministicWithSeededSuitability(t *testing.T) {
	cells, clusters := fixture()

	run := func() []domain.CandidateSite {
		gen := NewGenerator(DefaultConfig(), NewRandomSuitability(99, 0.6), nil)
		sites, err := gen.Generate(context.Background(), box, cells, clusters)
		require.NoError(t, err)
		return sites
	}

	first, second := run(), run()
	assert.Equal(t, first, second)
	assert.Less(t, len(first), 22)
}

func TestScore_Idempotent(t *testing.T) {
	cells, _ := fixture()
	scorer := NewScorer(cells, 5)
	gen := NewGenerator(DefaultConfig(), nil, func(domain.Coordinates) float64 { return 3 })

	site := domain.CandidateSite{ID: "s", Coords: domain.Coordinates{Lat: km(15), Lon: km(15)}}
	a := gen.Score(scorer, site)
	b := gen.Score(scorer, a)

	assert.Equal(t, a.EstimatedServedPopulation, b.EstimatedServedPopulation)
	assert.Equal(t, a, b)
	assert.InDelta(t, 0.3, a.AccessibilityScore, 1e-9)
}

func TestAccessibilityScore(t *testing.T) {
	assert.Equal(t, 1.0, AccessibilityScore(100, 5))
	assert.Equal(t, 0.5, AccessibilityScore(5, 5))
	assert.Equal(t, 0.0, AccessibilityScore(0, 5))
}

func TestLattice(t *testing.T) {
	points := Lattice(box, 20)
	require.Len(t, points, 20)
	for _, p := range points {
		assert.True(t, box.Contains(p))
	}
	assert.Empty(t, Lattice(domain.NewBoundingBox(1, 1, 1, 1), 20))
}

func TestSiteID_Deterministic(t *testing.T) {
	p := domain.Coordinates{Lat: 1.5, Lon: 2.5}
	assert.Equal(t, SiteID(domain.CandidateClusterCenter, p), SiteID(domain.CandidateClusterCenter, p))
	assert.NotEqual(t, SiteID(domain.CandidateClusterCenter, p), SiteID(domain.CandidateSpatialSample, p))
}
