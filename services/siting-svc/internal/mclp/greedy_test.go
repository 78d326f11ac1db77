package mclp

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/domain"
	"siting/services/siting-svc/internal/demand"
)

func km(v float64) float64 { return v / domain.KmPerDegree }

func testGrid(t *testing.T) *demand.Grid {
	t.Helper()
	g, err := demand.Build(domain.NewBoundingBox(0, 0, km(20), km(20)), 1000, 1)
	require.NoError(t, err)
	return g
}

func site(id string, latKm, lonKm float64) domain.CandidateSite {
	return domain.CandidateSite{ID: id, Coords: domain.Coordinates{Lat: km(latKm), Lon: km(lonKm)}}
}

func randomSites(rng *rand.Rand, n int) []domain.CandidateSite {
	sites := make([]domain.CandidateSite, n)
	for i := range sites {
		sites[i] = site(fmt.Sprintf("s%d", i), rng.Float64()*20, rng.Float64()*20)
	}
	return sites
}

func TestSolve_PicksLargestGainFirst(t *testing.T) {
	g := testGrid(t)
	candidates := []domain.CandidateSite{
		site("corner", 0, 0),
		site("center", 10, 10),
	}

	res, err := Solve(context.Background(), g, candidates, Options{MaxFacilities: 1, ServiceRadiusKm: 5})
	require.NoError(t, err)

	require.Len(t, res.Selected, 1)
	assert.Equal(t, "center", res.Selected[0].ID)
	assert.Equal(t, 1, res.Selected[0].SelectionOrder)
	assert.Equal(t, domain.ReasonMaxFacilities, res.Reason)
}

func TestSolve_TiesBrokenByInputOrder(t *testing.T) {
	g := testGrid(t)
	// Симметричные углы покрывают одинаковое население
	candidates := []domain.CandidateSite{
		site("ne", 20, 20),
		site("sw", 0, 0),
	}

	res, err := Solve(context.Background(), g, candidates, Options{MaxFacilities: 1, ServiceRadiusKm: 3})
	require.NoError(t, err)
	require.Len(t, res.Selected, 1)

	gainNE := g.PopulationWithin(candidates[0].Coords, 3)
	gainSW := g.PopulationWithin(candidates[1].Coords, 3)
	if gainNE == gainSW {
		assert.Equal(t, "ne", res.Selected[0].ID)
	}
}

func TestSolve_StopsWhenNoGain(t *testing.T) {
	g := testGrid(t)
	candidates := []domain.CandidateSite{
		site("a", 10, 10),
		site("a-dup", 10, 10),
		site("outside", 60, 60),
	}

	res, err := Solve(context.Background(), g, candidates, Options{MaxFacilities: 3, ServiceRadiusKm: 5})
	require.NoError(t, err)

	assert.Len(t, res.Selected, 1)
	assert.Equal(t, domain.ReasonNoAdditionalCoverage, res.Reason)
}

func TestSolve_NoCandidates(t *testing.T) {
	g := testGrid(t)

	res, err := Solve(context.Background(), g, nil, Options{MaxFacilities: 2, ServiceRadiusKm: 5})
	require.NoError(t, err)

	assert.Empty(t, res.Selected)
	assert.Equal(t, domain.ReasonNoSuitableCandidates, res.Reason)
	assert.Zero(t, res.TotalPopulationCovered)
}

func TestSolve_EmptyGrid(t *testing.T) {
	g, err := demand.FromCells(domain.NewBoundingBox(0, 0, 1, 1), nil)
	require.NoError(t, err)

	res, err := Solve(context.Background(), g, []domain.CandidateSite{site("a", 1, 1)}, Options{MaxFacilities: 2, ServiceRadiusKm: 5})
	require.NoError(t, err)

	assert.Empty(t, res.Selected)
	assert.Zero(t, res.Coverage.CoveragePercentage)
	assert.Zero(t, res.EfficiencyScore)
}

func TestSolve_InvalidOptions(t *testing.T) {
	g := testGrid(t)

	_, err := Solve(context.Background(), g, nil, Options{MaxFacilities: 0, ServiceRadiusKm: 5})
	assert.Error(t, err)

	_, err = Solve(context.Background(), g, nil, Options{MaxFacilities: 1, ServiceRadiusKm: 0})
	assert.Error(t, err)
}

func TestSolve_Precovered(t *testing.T) {
	g := testGrid(t)
	hospital := domain.Coordinates{Lat: km(10), Lon: km(10)}
	pre := g.CoveredBy([]domain.Coordinates{hospital}, 5)

	candidates := []domain.CandidateSite{
		site("on-hospital", 10, 10),
		site("far", 2, 18),
	}

	res, err := Solve(context.Background(), g, candidates, Options{MaxFacilities: 1, ServiceRadiusKm: 5, Precovered: pre})
	require.NoError(t, err)

	require.Len(t, res.Selected, 1)
	assert.Equal(t, "far", res.Selected[0].ID)
	assert.Greater(t, res.History[1], res.History[0])
	assert.Equal(t, g.Coverage(pre).CoveragePercentage, res.History[0])
}

func TestSolve_CoverageMonotonicInK(t *testing.T) {
	g := testGrid(t)
	rng := rand.New(rand.NewSource(5))
	candidates := randomSites(rng, 30)

	var prev int64 = -1
	for k := 1; k <= 8; k++ {
		res, err := Solve(context.Background(), g, candidates, Options{MaxFacilities: k, ServiceRadiusKm: 3, Workers: 4})
		require.NoError(t, err)

		assert.GreaterOrEqual(t, res.TotalPopulationCovered, prev)
		prev = res.TotalPopulationCovered

		// Внутри прогона покрытие не убывает и не превышает общее население
		var last int64
		for _, s := range res.Selected {
			assert.Greater(t, s.CumulativeCoverage, last)
			assert.LessOrEqual(t, s.CumulativeCoverage, g.TotalPopulation())
			assert.GreaterOrEqual(t, s.CumulativeCoveragePercentage, 0.0)
			assert.LessOrEqual(t, s.CumulativeCoveragePercentage, 1.0)
			last = s.CumulativeCoverage
		}
	}
}

func TestSolve_Deterministic(t *testing.T) {
	g := testGrid(t)
	candidates := randomSites(rand.New(rand.NewSource(9)), 40)

	first, err := Solve(context.Background(), g, candidates, Options{MaxFacilities: 5, ServiceRadiusKm: 4, Workers: 8})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Solve(context.Background(), g, candidates, Options{MaxFacilities: 5, ServiceRadiusKm: 4, Workers: 1})
		require.NoError(t, err)
		assert.Equal(t, first.Selected, again.Selected)
	}
}

func TestSolve_Metrics(t *testing.T) {
	g := testGrid(t)
	candidates := []domain.CandidateSite{site("a", 5, 5), site("b", 15, 15)}

	res, err := Solve(context.Background(), g, candidates, Options{MaxFacilities: 2, ServiceRadiusKm: 5})
	require.NoError(t, err)
	require.Len(t, res.Selected, 2)

	sum := res.Selected[0].AdditionalCoverage + res.Selected[1].AdditionalCoverage
	assert.Equal(t, sum, res.TotalPopulationCovered)
	assert.InDelta(t, float64(sum)/2, res.AverageCoveragePerSite, 1e-9)
	assert.InDelta(t, float64(sum)/float64(g.TotalPopulation())*100, res.EfficiencyScore, 1e-9)
}

func TestSolve_CancelledBetweenRounds(t *testing.T) {
	g := testGrid(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Solve(ctx, g, randomSites(rand.New(rand.NewSource(1)), 10), Options{MaxFacilities: 3, ServiceRadiusKm: 5})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, domain.ReasonCancelled, res.Reason)
}
