package pareto

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/domain"
)

func km(v float64) float64 { return v / domain.KmPerDegree }

func testProblem(nCandidates int) Problem {
	bounds := domain.NewBoundingBox(0, 0, km(10), km(10))
	var cells []domain.DemandCell
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			cells = append(cells, domain.DemandCell{
				ID:         i*10 + j,
				Lat:        km(float64(i) + 0.5),
				Lon:        km(float64(j) + 0.5),
				Population: 1000,
			})
		}
	}
	rng := rand.New(rand.NewSource(1))
	cands := make([]domain.CandidateSite, nCandidates)
	for i := range cands {
		cands[i] = domain.CandidateSite{
			ID:              fmt.Sprintf("c%d", i),
			Coords:          domain.Coordinates{Lat: km(rng.Float64() * 10), Lon: km(rng.Float64() * 10)},
			LandSuitability: domain.LandSuitability{Suitable: true},
		}
	}
	return Problem{Bounds: bounds, Cells: cells, Candidates: cands, MaxFacilities: 3, SpeedKmh: domain.UrbanSpeedKmh}
}

func TestRefine_FrontIsNonDominated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 40
	r := NewRefiner(cfg, WithHazards(NewRandomHazards(3)))

	res, err := r.Refine(context.Background(), testProblem(12), rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	require.NotEmpty(t, res.Front)
	assert.Equal(t, 40, res.Population)

	for i, a := range res.Front {
		assert.Len(t, a.FacilitySet, 3)
		assert.Equal(t, 0, a.Rank)
		for _, v := range a.Objectives.Values() {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		for j, b := range res.Front {
			if i != j {
				assert.False(t, a.Objectives.Dominates(b.Objectives))
			}
		}
		if i > 0 {
			assert.GreaterOrEqual(t, res.Front[i-1].CrowdingDistance, a.CrowdingDistance)
		}
	}
}

func TestRefine_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 30
	p := testProblem(10)

	run := func() []domain.Solution {
		r := NewRefiner(cfg, WithHazards(NewRandomHazards(9)), WithWorkers(4))
		res, err := r.Refine(context.Background(), p, rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		return res.Front
	}

	assert.Equal(t, run(), run())
}

func TestRefine_FillsWithRandomLocations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 5
	p := testProblem(1)
	p.MaxFacilities = 4

	res, err := NewRefiner(cfg).Refine(context.Background(), p, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	for _, s := range res.Front {
		require.Len(t, s.FacilitySet, 4)
		random := 0
		for _, site := range s.FacilitySet {
			assert.True(t, p.Bounds.Contains(site.Coords))
			if site.Type == domain.CandidateRandom {
				random++
			}
		}
		assert.Equal(t, 3, random)
	}
}

func TestRefine_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 0

	var err error
	assert.NotPanics(t, func() {
		_, err = NewRefiner(cfg).Refine(context.Background(), testProblem(5), rand.New(rand.NewSource(1)))
	})
	assert.ErrorContains(t, err, "population size")
}

func TestRefine_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRefiner(DefaultConfig()).Refine(ctx, testProblem(5), rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_Objectives(t *testing.T) {
	cfg := DefaultConfig()
	r := NewRefiner(cfg)
	p := testProblem(0)
	center := domain.CandidateSite{ID: "center", Coords: domain.Coordinates{Lat: km(5), Lon: km(5)}}

	obj := r.Evaluate(p, []domain.CandidateSite{center}, map[string]Hazard{"center": {Flood: 1}})

	// в городе 30 км/ч: 30 минут это 15 км, вся область 10x10 км доступна
	assert.InDelta(t, 1.0, obj.Accessibility, 1e-9)
	assert.InDelta(t, 1.0, obj.Equity, 1e-9)
	// 100000 жителей требуют 100 единиц мощности
	assert.InDelta(t, 1.0, obj.Coverage, 1e-9)
	assert.InDelta(t, 0.7, obj.Resilience, 1e-9)
	assert.InDelta(t, 1/(1+0.5), obj.Cost, 1e-9)
}

func TestEvaluate_EmptySet(t *testing.T) {
	obj := NewRefiner(DefaultConfig()).Evaluate(testProblem(0), nil, nil)
	assert.Equal(t, domain.Objectives{}, obj)
}
