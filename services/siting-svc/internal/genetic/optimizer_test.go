package genetic

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/domain"
	"siting/services/siting-svc/internal/demand"
)

func km(v float64) float64 { return v / domain.KmPerDegree }

func testProblem(t *testing.T) Problem {
	t.Helper()
	bounds := domain.NewBoundingBox(0, 0, km(10), km(10))
	g, err := demand.Build(bounds, 1000, 1)
	require.NoError(t, err)
	return Problem{Bounds: bounds, Demand: g, NumFacilities: 3, SpeedKmh: domain.UrbanSpeedKmh}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 20
	cfg.Generations = 15
	return cfg
}

func TestOptimize_FeasibleResult(t *testing.T) {
	p := testProblem(t)

	res, err := NewOptimizer(smallConfig()).Optimize(context.Background(), p, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	require.Len(t, res.Facilities, 3)
	for _, g := range res.Facilities {
		assert.True(t, p.Bounds.Contains(g.Coords()))
		assert.GreaterOrEqual(t, g.Capacity, 50.0)
		assert.LessOrEqual(t, g.Capacity, 500.0)
		assert.Contains(t, DefaultConfig().FacilityTypes, g.Type)
	}

	assert.GreaterOrEqual(t, res.Fitness.Total, 0.0)
	assert.LessOrEqual(t, res.Fitness.Total, 1.0)
	assert.Equal(t, 15, res.Generations)
	require.NotEmpty(t, res.History)
	for i := 1; i < len(res.History); i++ {
		assert.GreaterOrEqual(t, res.History[i], res.History[i-1]-1e-12, "best fitness never decreases")
	}
	assert.InDelta(t, res.History[len(res.History)-1], res.Fitness.Total, 1e-9)
}

func TestOptimize_Deterministic(t *testing.T) {
	p := testProblem(t)

	a, err := NewOptimizer(smallConfig()).Optimize(context.Background(), p, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := NewOptimizer(smallConfig()).Optimize(context.Background(), p, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	assert.Equal(t, a.Facilities, b.Facilities)
	assert.Equal(t, a.History, b.History)
}

func TestOptimize_PlateauStopsEarly(t *testing.T) {
	cfg := smallConfig()
	cfg.Generations = 200
	cfg.MutationRate = 0
	cfg.CrossoverRate = 0
	cfg.PlateauGenerations = 5

	res, err := NewOptimizer(cfg).Optimize(context.Background(), testProblem(t), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.True(t, res.StoppedOnPlateau)
	assert.Less(t, res.Generations, 200)
}

func TestOptimize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewOptimizer(smallConfig()).Optimize(ctx, testProblem(t), rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Less(t, res.Generations, 15)
	assert.Len(t, res.Facilities, 3)
}

func TestOptimize_InvalidInput(t *testing.T) {
	p := testProblem(t)
	p.NumFacilities = 0
	_, err := NewOptimizer(smallConfig()).Optimize(context.Background(), p, rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	cfg := smallConfig()
	cfg.MutationRate = 1.5
	_, err = NewOptimizer(cfg).Optimize(context.Background(), testProblem(t), rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"population", func(c *Config) { c.PopulationSize = 1 }},
		{"tournament", func(c *Config) { c.TournamentSize = 0 }},
		{"crossover", func(c *Config) { c.CrossoverRate = -0.1 }},
		{"capacity", func(c *Config) { c.MaxCapacity = 10 }},
		{"radius", func(c *Config) { c.ServiceRadiusKm = 0 }},
		{"types", func(c *Config) { c.FacilityTypes = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStalled(t *testing.T) {
	assert.False(t, stalled([]float64{0.1, 0.1, 0.1}, 0, 1e-6))
	assert.False(t, stalled([]float64{0.1, 0.1}, 2, 1e-6))
	assert.True(t, stalled([]float64{0.1, 0.1, 0.1}, 2, 1e-6))
	assert.False(t, stalled([]float64{0.1, 0.2, 0.3}, 2, 1e-6))
}

func TestAsFacilities(t *testing.T) {
	res := &Result{Facilities: []Gene{{Lat: 1, Lon: 2, Type: domain.FacilityLandfill, Capacity: 100}}}
	fs := res.AsFacilities("waste")
	require.Len(t, fs, 1)
	assert.Equal(t, "waste-1", fs[0].ID)
	assert.Equal(t, domain.FacilityLandfill, fs[0].Type)
	assert.Equal(t, domain.Coordinates{Lat: 1, Lon: 2}, fs[0].Coords)
}
