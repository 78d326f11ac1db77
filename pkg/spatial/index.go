// Package spatial индексирует точки в quadtree для запросов по радиусу
// и поиска ближайшего соседа по большому кругу.
package spatial

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"

	"siting/pkg/domain"
)

// boundPadding запас вокруг облака точек, градусы
const boundPadding = 1e-6

type entry struct {
	p   orb.Point
	idx int
}

func (e entry) Point() orb.Point { return e.p }

// Index неизменяемый индекс точек. Возвращает позиции точек во входном срезе.
type Index struct {
	qt     *quadtree.Quadtree
	coords []domain.Coordinates
}

// NewIndex строит индекс по координатам
func NewIndex(coords []domain.Coordinates) *Index {
	idx := &Index{coords: coords}
	if len(coords) == 0 {
		return idx
	}

	bound := coords[0].Point().Bound()
	for _, c := range coords[1:] {
		bound = bound.Extend(c.Point())
	}
	idx.qt = quadtree.New(bound.Pad(boundPadding))

	for i, c := range coords {
		// Точка всегда внутри bound, ошибка невозможна
		_ = idx.qt.Add(entry{p: c.Point(), idx: i})
	}
	return idx
}

// Len число точек
func (x *Index) Len() int {
	return len(x.coords)
}

// Within возвращает индексы точек на расстоянии <= radiusKm, по возрастанию
func (x *Index) Within(center domain.Coordinates, radiusKm float64) []int {
	if x.qt == nil || radiusKm < 0 {
		return nil
	}

	found := x.qt.InBound(nil, domain.BoundAround(center, radiusKm))
	result := make([]int, 0, len(found))
	for _, p := range found {
		e := p.(entry)
		if domain.DistanceKm(center, x.coords[e.idx]) <= radiusKm {
			result = append(result, e.idx)
		}
	}
	sort.Ints(result)
	return result
}

// Nearest возвращает индекс ближайшей точки и расстояние в км.
// Для пустого индекса (-1, +Inf).
func (x *Index) Nearest(center domain.Coordinates) (int, float64) {
	if x.qt == nil {
		return -1, math.Inf(1)
	}

	// Планарный сосед даёт верхнюю оценку, точный минимум ищем в круге этого радиуса
	guess := x.qt.Find(center.Point())
	if guess == nil {
		return -1, math.Inf(1)
	}
	bestIdx := guess.(entry).idx
	best := domain.DistanceKm(center, x.coords[bestIdx])

	for _, p := range x.qt.InBound(nil, domain.BoundAround(center, best)) {
		i := p.(entry).idx
		d := domain.DistanceKm(center, x.coords[i])
		if d < best || (d == best && i < bestIdx) {
			best, bestIdx = d, i
		}
	}
	return bestIdx, best
}
