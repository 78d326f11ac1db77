package mclp

import (
	"context"

	"siting/pkg/domain"
	"siting/pkg/parallel"
)

// CellLocator находит ячейки сетки в радиусе от точки
type CellLocator interface {
	Within(center domain.Coordinates, radiusKm float64) []int
	Cell(i int) domain.DemandCell
	Len() int
	TotalPopulation() int64
}

// CoverageIndex запоминает, какие ячейки покрывает каждый кандидат.
// Живёт в пределах одного прогона.
type CoverageIndex struct {
	grid   CellLocator
	radius float64
	cells  [][]int
}

// NewCoverageIndex параллельно вычисляет покрытие для всех кандидатов
func NewCoverageIndex(ctx context.Context, grid CellLocator, candidates []domain.CandidateSite, radiusKm float64, workers int) (*CoverageIndex, error) {
	cells, err := parallel.Map(ctx, len(candidates), workers, func(i int) ([]int, error) {
		return grid.Within(candidates[i].Coords, radiusKm), nil
	})
	if err != nil {
		return nil, err
	}
	return &CoverageIndex{grid: grid, radius: radiusKm, cells: cells}, nil
}

// Cells ячейки, покрываемые кандидатом i
func (x *CoverageIndex) Cells(i int) []int {
	return x.cells[i]
}

// Population полное население в радиусе кандидата i
func (x *CoverageIndex) Population(i int) int64 {
	var sum int64
	for _, c := range x.cells[i] {
		sum += x.grid.Cell(c).Population
	}
	return sum
}

// NewPopulation население в радиусе кандидата i, ещё не покрытое
func (x *CoverageIndex) NewPopulation(i int, covered []bool) int64 {
	var sum int64
	for _, c := range x.cells[i] {
		if !covered[c] {
			sum += x.grid.Cell(c).Population
		}
	}
	return sum
}
