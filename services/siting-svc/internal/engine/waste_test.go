package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/apperror"
	"siting/pkg/domain"
)

func wasteOptimizer(t *testing.T) *Optimizer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Genetic.PopulationSize = 12
	cfg.Genetic.Generations = 5
	cfg.Genetic.ParallelEval = false
	o, err := New(cfg)
	require.NoError(t, err)
	return o
}

func TestOptimizeWaste_WithRoutes(t *testing.T) {
	o := wasteOptimizer(t)
	depot := domain.Coordinates{Lat: km(5), Lon: km(5)}

	out, err := o.OptimizeWaste(context.Background(), WasteInput{
		Bounds:         tenByTen,
		PopulationGrid: scenarioCells(t),
		NumFacilities:  2,
		Depot:          &depot,
		Vehicles:       []domain.Vehicle{{ID: "truck-1", Capacity: 10, AvgSpeedKmh: 30}},
		Points: []domain.WastePoint{
			{ID: "p1", Coords: domain.Coordinates{Lat: km(6), Lon: km(5)}, Quantity: 4},
			{ID: "p2", Coords: domain.Coordinates{Lat: km(8), Lon: km(5)}, Quantity: 4},
			{ID: "p3", Coords: domain.Coordinates{Lat: km(9), Lon: km(9)}, Quantity: 4},
		},
	})
	require.NoError(t, err)

	require.Len(t, out.Facilities, 2)
	for _, f := range out.Facilities {
		assert.True(t, tenByTen.Contains(f.Coords))
	}
	assert.Equal(t, 5, out.Generations)
	assert.GreaterOrEqual(t, out.Fitness.Total, 0.0)
	assert.LessOrEqual(t, out.Fitness.Total, 1.0)

	require.NotNil(t, out.Routes)
	require.Len(t, out.Routes.Routes, 1)
	assert.Len(t, out.Routes.Routes[0].Stops, 2)
	assert.Len(t, out.Routes.Unassigned, 1)
}

func TestOptimizeWaste_Deterministic(t *testing.T) {
	o := wasteOptimizer(t)
	in := WasteInput{Bounds: tenByTen, PopulationGrid: scenarioCells(t), NumFacilities: 3}

	a, err := o.OptimizeWaste(context.Background(), in)
	require.NoError(t, err)
	b, err := o.OptimizeWaste(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, a.Facilities, b.Facilities)
	assert.Equal(t, a.FitnessHistory, b.FitnessHistory)
}

func TestOptimizeWaste_InvalidInput(t *testing.T) {
	o := wasteOptimizer(t)
	depot := domain.Coordinates{Lat: km(5), Lon: km(5)}

	tests := []struct {
		name string
		in   WasteInput
	}{
		{"zero facilities", WasteInput{Bounds: tenByTen}},
		{"degenerate bbox", WasteInput{Bounds: domain.NewBoundingBox(0, 0, 0, 0), NumFacilities: 1}},
		{"bad vehicle", WasteInput{
			Bounds: tenByTen, NumFacilities: 1, Depot: &depot,
			Vehicles: []domain.Vehicle{{ID: "v", Capacity: 0, AvgSpeedKmh: 30}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.OptimizeWaste(context.Background(), tt.in)
			assert.True(t, apperror.IsConfiguration(err), "got %v", err)
		})
	}
}

func TestOptimizeWaste_Cancelled(t *testing.T) {
	o := wasteOptimizer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.OptimizeWaste(ctx, WasteInput{Bounds: tenByTen, PopulationGrid: scenarioCells(t), NumFacilities: 1})
	assert.True(t, apperror.Is(err, apperror.CodeCancelled), "got %v", err)
}

func TestPlanRoutes(t *testing.T) {
	o := wasteOptimizer(t)

	plan, err := o.PlanRoutes(context.Background(), domain.Coordinates{},
		[]domain.Vehicle{{ID: "v1", Capacity: 5, AvgSpeedKmh: 40}},
		[]domain.WastePoint{{ID: "a", Coords: domain.Coordinates{Lat: 0.01}, Quantity: 2}},
	)
	require.NoError(t, err)
	require.Len(t, plan.Routes, 1)
	assert.Greater(t, plan.TotalDistanceKm, 0.0)

	_, err = o.PlanRoutes(context.Background(), domain.Coordinates{Lat: 95}, nil, nil)
	assert.True(t, apperror.IsConfiguration(err))
}
