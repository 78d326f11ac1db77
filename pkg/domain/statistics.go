package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PopulationStatistics статистика населения по сетке
type PopulationStatistics struct {
	Cells          int     `json:"cells"`
	Total          int64   `json:"total"`
	MeanPerCell    float64 `json:"mean_per_cell"`
	StdDevPerCell  float64 `json:"std_dev_per_cell"`
	MaxPerCell     int64   `json:"max_per_cell"`
	MeanDensity    float64 `json:"mean_density"`
	PopulatedCells int     `json:"populated_cells"`
}

// CalculatePopulationStatistics вычисляет статистику населения
func CalculatePopulationStatistics(cells []DemandCell) PopulationStatistics {
	stats := PopulationStatistics{Cells: len(cells)}
	if len(cells) == 0 {
		return stats
	}

	pop := make([]float64, len(cells))
	density := make([]float64, len(cells))
	for i, c := range cells {
		pop[i] = float64(c.Population)
		density[i] = c.Density
		stats.Total += c.Population
		if c.Population > 0 {
			stats.PopulatedCells++
		}
	}

	stats.MeanPerCell, stats.StdDevPerCell = stat.MeanStdDev(pop, nil)
	if math.IsNaN(stats.StdDevPerCell) {
		stats.StdDevPerCell = 0
	}
	stats.MaxPerCell = int64(floats.Max(pop))
	stats.MeanDensity = stat.Mean(density, nil)

	return stats
}

// AccessibilitySummary сводка доступности по уровням
type AccessibilitySummary struct {
	CellsEvaluated       int       `json:"cells_evaluated"`
	AccessiblePopulation TierPop   `json:"accessible_population"`
	AccessibleShare      TierShare `json:"accessible_share"`
	MeanTravelTime       TierTimes `json:"mean_travel_time"`
}

// TierPop население по уровням
type TierPop struct {
	Primary   int64 `json:"primary"`
	Secondary int64 `json:"secondary"`
	Emergency int64 `json:"emergency"`
}

// TierShare доли по уровням
type TierShare struct {
	Primary   float64 `json:"primary"`
	Secondary float64 `json:"secondary"`
	Emergency float64 `json:"emergency"`
}

// SummarizeAccessibility агрегирует записи доступности. Среднее время
// считается по ячейкам с конечным временем, взвешенно по населению.
func SummarizeAccessibility(records []AccessibilityRecord) AccessibilitySummary {
	summary := AccessibilitySummary{
		CellsEvaluated: len(records),
		MeanTravelTime: UnreachableTimes(),
	}

	var total int64
	for _, r := range records {
		total += r.Cell.Population
		if r.Accessible.Primary {
			summary.AccessiblePopulation.Primary += r.Cell.Population
		}
		if r.Accessible.Secondary {
			summary.AccessiblePopulation.Secondary += r.Cell.Population
		}
		if r.Accessible.Emergency {
			summary.AccessiblePopulation.Emergency += r.Cell.Population
		}
	}

	if total > 0 {
		summary.AccessibleShare = TierShare{
			Primary:   float64(summary.AccessiblePopulation.Primary) / float64(total),
			Secondary: float64(summary.AccessiblePopulation.Secondary) / float64(total),
			Emergency: float64(summary.AccessiblePopulation.Emergency) / float64(total),
		}
	}

	for _, tier := range AllTiers {
		values := make([]float64, 0, len(records))
		weights := make([]float64, 0, len(records))
		for _, r := range records {
			t := r.TravelTimes.Get(tier)
			if math.IsInf(t, 0) {
				continue
			}
			values = append(values, t)
			weights = append(weights, float64(r.Cell.Population))
		}
		if len(values) == 0 {
			continue
		}
		if floats.Sum(weights) == 0 {
			weights = nil
		}
		summary.MeanTravelTime.Set(tier, stat.Mean(values, weights))
	}

	return summary
}
