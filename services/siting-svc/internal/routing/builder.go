// Package routing строит маршруты вывоза отходов эвристикой ближайшего соседа.
package routing

import (
	"fmt"

	"siting/pkg/domain"
)

// Plan маршруты и точки, не попавшие ни в один маршрут
type Plan struct {
	Routes          []domain.Route      `json:"routes"`
	Unassigned      []domain.WastePoint `json:"unassigned"`
	TotalDistanceKm float64             `json:"total_distance_km"`
	TotalLoad       float64             `json:"total_load"`
}

// Validate проверяет машины и точки
func Validate(depot domain.Coordinates, vehicles []domain.Vehicle, points []domain.WastePoint) error {
	if err := depot.Validate(); err != nil {
		return fmt.Errorf("depot: %w", err)
	}
	for i, v := range vehicles {
		if !(v.Capacity > 0) {
			return fmt.Errorf("vehicle %d (%s): capacity must be positive", i, v.ID)
		}
		if !(v.AvgSpeedKmh > 0) {
			return fmt.Errorf("vehicle %d (%s): speed must be positive", i, v.ID)
		}
	}
	for i, p := range points {
		if err := p.Coords.Validate(); err != nil {
			return fmt.Errorf("waste point %d (%s): %w", i, p.ID, err)
		}
		if p.Quantity < 0 {
			return fmt.Errorf("waste point %d (%s): quantity must be non-negative", i, p.ID)
		}
	}
	return nil
}

// Build для каждой машины по очереди набирает ближайшие непосещённые точки,
// которые помещаются в остаток вместимости, затем возвращает её в депо.
// Ничьи по расстоянию решаются порядком точек во входе.
func Build(depot domain.Coordinates, vehicles []domain.Vehicle, points []domain.WastePoint) (*Plan, error) {
	if err := Validate(depot, vehicles, points); err != nil {
		return nil, err
	}

	visited := make([]bool, len(points))
	plan := &Plan{Routes: make([]domain.Route, 0, len(vehicles))}

	for _, v := range vehicles {
		route := domain.Route{VehicleID: v.ID, Stops: []domain.WastePoint{}}
		pos := depot
		remaining := v.Capacity

		for {
			next := -1
			best := 0.0
			for i, p := range points {
				if visited[i] || p.Quantity > remaining {
					continue
				}
				d := domain.DistanceKm(pos, p.Coords)
				if next < 0 || d < best {
					next, best = i, d
				}
			}
			if next < 0 {
				break
			}

			visited[next] = true
			route.Stops = append(route.Stops, points[next])
			route.Load += points[next].Quantity
			route.TotalDistanceKm += best
			remaining -= points[next].Quantity
			pos = points[next].Coords
		}

		if len(route.Stops) > 0 {
			route.TotalDistanceKm += domain.DistanceKm(pos, depot)
		}
		route.TotalTimeHours = route.TotalDistanceKm / v.AvgSpeedKmh

		plan.TotalDistanceKm += route.TotalDistanceKm
		plan.TotalLoad += route.Load
		plan.Routes = append(plan.Routes, route)
	}

	plan.Unassigned = []domain.WastePoint{}
	for i, p := range points {
		if !visited[i] {
			plan.Unassigned = append(plan.Unassigned, p)
		}
	}
	return plan, nil
}
