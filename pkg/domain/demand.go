package domain

import "fmt"

// DemandCell ячейка сетки спроса. Создаётся сеткой и дальше не меняется.
type DemandCell struct {
	ID         int     `json:"id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Population int64   `json:"population"`
	Density    float64 `json:"density"`
}

// Coords координаты центра ячейки
func (c DemandCell) Coords() Coordinates {
	return Coordinates{Lat: c.Lat, Lon: c.Lon}
}

// Validate проверяет ячейку
func (c DemandCell) Validate() error {
	if err := c.Coords().Validate(); err != nil {
		return fmt.Errorf("cell %d: %w", c.ID, err)
	}
	if c.Population < 0 {
		return fmt.Errorf("cell %d: negative population %d", c.ID, c.Population)
	}
	if c.Density < 0 {
		return fmt.Errorf("cell %d: negative density %v", c.ID, c.Density)
	}
	return nil
}

// AccessibilityRecord доступность одной ячейки. Пересчитывается целиком
// при каждом изменении набора объектов.
type AccessibilityRecord struct {
	Cell        DemandCell `json:"cell"`
	TravelTimes TierTimes  `json:"travel_times"`
	Accessible  TierFlags  `json:"accessible"`
}

// CoverageResult покрытие населения
type CoverageResult struct {
	PopulationCovered  int64   `json:"population_covered"`
	TotalPopulation    int64   `json:"total_population"`
	CoveragePercentage float64 `json:"coverage_percentage"`
}

// NewCoverageResult строит результат; доля всегда в [0, 1], при нулевом населении 0
func NewCoverageResult(covered, total int64) CoverageResult {
	if covered > total {
		covered = total
	}
	if covered < 0 {
		covered = 0
	}
	res := CoverageResult{PopulationCovered: covered, TotalPopulation: total}
	if total > 0 {
		res.CoveragePercentage = Clamp01(float64(covered) / float64(total))
	}
	return res
}

// CoverageImprovement покрытие до и после размещения
type CoverageImprovement struct {
	Before      CoverageResult `json:"before"`
	After       CoverageResult `json:"after"`
	Improvement float64        `json:"improvement"`
}

// NewCoverageImprovement считает прирост доли покрытия
func NewCoverageImprovement(before, after CoverageResult) CoverageImprovement {
	return CoverageImprovement{
		Before:      before,
		After:       after,
		Improvement: after.CoveragePercentage - before.CoveragePercentage,
	}
}
