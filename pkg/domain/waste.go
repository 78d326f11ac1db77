package domain

// Vehicle машина для вывоза отходов
type Vehicle struct {
	ID          string  `json:"id"`
	Capacity    float64 `json:"capacity"`
	AvgSpeedKmh float64 `json:"avg_speed_kmh"`
}

// WastePoint точка сбора с объёмом отходов
type WastePoint struct {
	ID       string      `json:"id"`
	Coords   Coordinates `json:"coords"`
	Quantity float64     `json:"quantity"`
}

// Route маршрут одной машины: депо, точки, возврат в депо
type Route struct {
	VehicleID       string       `json:"vehicle_id"`
	Stops           []WastePoint `json:"stops"`
	Load            float64      `json:"load"`
	TotalDistanceKm float64      `json:"total_distance_km"`
	TotalTimeHours  float64      `json:"total_time_hours"`
}

// WasteFitness составляющие функции приспособленности, все в [0, 1]
type WasteFitness struct {
	PopulationCoverage   float64 `json:"population_coverage"`
	CostEfficiency       float64 `json:"cost_efficiency"`
	EnvironmentalPenalty float64 `json:"environmental_penalty"`
	Accessibility        float64 `json:"accessibility"`
	Total                float64 `json:"total"`
}

// Fitness веса составляющих
const (
	WeightCoverage      = 0.4
	WeightCost          = 0.3
	WeightEnvironmental = 0.2
	WeightAccessibility = 0.1
)

// Combine считает взвешенную сумму
func (f WasteFitness) Combine() float64 {
	return WeightCoverage*f.PopulationCoverage +
		WeightCost*f.CostEfficiency +
		WeightEnvironmental*(1-f.EnvironmentalPenalty) +
		WeightAccessibility*f.Accessibility
}
