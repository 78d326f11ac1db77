// Package demand дискретизирует область в сетку ячеек спроса.
package demand

import (
	"fmt"
	"math"

	"siting/pkg/domain"
	"siting/pkg/spatial"
)

// Grid неизменяемая сетка ячеек спроса
type Grid struct {
	bounds       domain.BoundingBox
	resolutionKm float64
	cells        []domain.DemandCell
	total        int64
	index        *spatial.Index
}

// Build покрывает область ячейками шага resolutionKm; население ячейки равно
// плотности, умноженной на площадь ячейки. Вырожденная область даёт пустую сетку.
func Build(bounds domain.BoundingBox, densityPerKm2, resolutionKm float64) (*Grid, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if resolutionKm <= 0 || math.IsNaN(resolutionKm) {
		return nil, fmt.Errorf("grid resolution must be positive, got %v", resolutionKm)
	}
	if densityPerKm2 < 0 || math.IsNaN(densityPerKm2) {
		return nil, fmt.Errorf("density must be non-negative, got %v", densityPerKm2)
	}

	g := &Grid{bounds: bounds, resolutionKm: resolutionKm}
	if bounds.IsDegenerate() {
		g.index = spatial.NewIndex(nil)
		return g, nil
	}

	latStep := resolutionKm / domain.KmPerDegree
	rows := steps(bounds.MaxLat-bounds.MinLat, latStep)

	for r := 0; r < rows; r++ {
		lat0 := bounds.MinLat + float64(r)*latStep
		lat1 := math.Min(lat0+latStep, bounds.MaxLat)
		midLat := (lat0 + lat1) / 2

		// Шаг по долготе зависит от широты
		lonStep := resolutionKm / (domain.KmPerDegree * math.Max(math.Cos(midLat*math.Pi/180), 1e-6))
		cols := steps(bounds.MaxLon-bounds.MinLon, lonStep)

		for c := 0; c < cols; c++ {
			lon0 := bounds.MinLon + float64(c)*lonStep
			lon1 := math.Min(lon0+lonStep, bounds.MaxLon)

			cell := domain.NewBoundingBox(lat0, lon0, lat1, lon1)
			area := cell.AreaKm2()
			g.cells = append(g.cells, domain.DemandCell{
				ID:         len(g.cells),
				Lat:        midLat,
				Lon:        (lon0 + lon1) / 2,
				Population: int64(math.Round(densityPerKm2 * area)),
				Density:    densityPerKm2,
			})
		}
	}

	g.finish()
	return g, nil
}

// steps число шагов, покрывающих отрезок; погрешность деления не добавляет лишнюю полоску
func steps(span, step float64) int {
	return int(math.Ceil(span/step - 1e-9))
}

// FromCells оборачивает готовые ячейки от поставщика данных. Ячейки копируются,
// ID переназначаются по позиции.
func FromCells(bounds domain.BoundingBox, cells []domain.DemandCell) (*Grid, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	g := &Grid{bounds: bounds, cells: make([]domain.DemandCell, len(cells))}
	for i, c := range cells {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		c.ID = i
		g.cells[i] = c
	}

	g.finish()
	return g, nil
}

func (g *Grid) finish() {
	coords := make([]domain.Coordinates, len(g.cells))
	for i, c := range g.cells {
		g.total += c.Population
		coords[i] = c.Coords()
	}
	g.index = spatial.NewIndex(coords)
}

// Cells ячейки сетки; срез принадлежит сетке и не должен изменяться
func (g *Grid) Cells() []domain.DemandCell {
	return g.cells
}

// Cell ячейка по индексу
func (g *Grid) Cell(i int) domain.DemandCell {
	return g.cells[i]
}

// Len число ячеек
func (g *Grid) Len() int {
	return len(g.cells)
}

// IsEmpty сетка без ячеек
func (g *Grid) IsEmpty() bool {
	return len(g.cells) == 0
}

// TotalPopulation суммарное население
func (g *Grid) TotalPopulation() int64 {
	return g.total
}

// Bounds область сетки
func (g *Grid) Bounds() domain.BoundingBox {
	return g.bounds
}

// ResolutionKm шаг сетки; 0 для сеток из готовых ячеек
func (g *Grid) ResolutionKm() float64 {
	return g.resolutionKm
}

// Within индексы ячеек в радиусе от точки
func (g *Grid) Within(center domain.Coordinates, radiusKm float64) []int {
	return g.index.Within(center, radiusKm)
}

// PopulationWithin население в радиусе от точки
func (g *Grid) PopulationWithin(center domain.Coordinates, radiusKm float64) int64 {
	var sum int64
	for _, i := range g.Within(center, radiusKm) {
		sum += g.cells[i].Population
	}
	return sum
}

// CoveredBy множество ячеек в радиусе от любого из объектов
func (g *Grid) CoveredBy(facilities []domain.Coordinates, radiusKm float64) map[int]struct{} {
	covered := make(map[int]struct{})
	for _, f := range facilities {
		for _, i := range g.Within(f, radiusKm) {
			covered[i] = struct{}{}
		}
	}
	return covered
}

// Coverage покрытие населения заданным множеством ячеек
func (g *Grid) Coverage(covered map[int]struct{}) domain.CoverageResult {
	var pop int64
	for i := range covered {
		pop += g.cells[i].Population
	}
	return domain.NewCoverageResult(pop, g.total)
}
