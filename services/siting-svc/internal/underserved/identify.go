// Package underserved отбирает ячейки, не проходящие пороги доступности,
// и группирует их в кластеры одиночной связью.
package underserved

import (
	"math"
	"sort"

	"siting/pkg/domain"
	"siting/pkg/spatial"
)

// Веса приоритета ячейки
const (
	weightPopulation       = 0.4
	penaltyNoEmergency     = 1000.0
	penaltyNoPrimary       = 500.0
	penaltyNoSecondary     = 300.0
	weightPrimaryTravelMin = 10.0
)

// Config параметры отбора и кластеризации
type Config struct {
	PopulationThreshold  int64
	LinkageKm            float64
	TravelTimeCapMinutes float64
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() Config {
	return Config{
		PopulationThreshold:  domain.DefaultPopulationThreshold,
		LinkageKm:            domain.DefaultClusterLinkageKm,
		TravelTimeCapMinutes: domain.DefaultTravelTimeCapMinutes,
	}
}

// Result недообслуженные ячейки и их кластеры
type Result struct {
	Cells    []domain.UnderservedCell
	Clusters []domain.UnderservedCluster
}

// TotalPopulation население недообслуженных ячеек
func (r Result) TotalPopulation() int64 {
	var sum int64
	for _, c := range r.Cells {
		sum += c.Record.Cell.Population
	}
	return sum
}

// IsUnderserved ячейка населена выше порога и не проходит первичный или вторичный уровень
func IsUnderserved(rec domain.AccessibilityRecord, threshold int64) bool {
	return rec.Cell.Population > threshold && (!rec.Accessible.Primary || !rec.Accessible.Secondary)
}

// Priority приоритет ячейки; capMinutes заменяет только бесконечное время,
// конечное время в пути учитывается полностью
func Priority(rec domain.AccessibilityRecord, capMinutes float64) float64 {
	p := weightPopulation * float64(rec.Cell.Population)
	if !rec.Accessible.Emergency {
		p += penaltyNoEmergency
	}
	if !rec.Accessible.Primary {
		p += penaltyNoPrimary
	}
	if !rec.Accessible.Secondary {
		p += penaltyNoSecondary
	}

	t := rec.TravelTimes.Primary
	if math.IsInf(t, 1) {
		t = capMinutes
	}
	return p + weightPrimaryTravelMin*t
}

// Identify отбирает ячейки и кластеризует их: две ячейки в одном кластере,
// если их связывает цепочка ячеек с попарным расстоянием < LinkageKm.
// Кластеры упорядочены по убыванию приоритета.
func Identify(records []domain.AccessibilityRecord, cfg Config) Result {
	var res Result
	for _, rec := range records {
		if IsUnderserved(rec, cfg.PopulationThreshold) {
			res.Cells = append(res.Cells, domain.UnderservedCell{
				Record:   rec,
				Priority: Priority(rec, cfg.TravelTimeCapMinutes),
			})
		}
	}
	if len(res.Cells) == 0 {
		return res
	}

	coords := make([]domain.Coordinates, len(res.Cells))
	for i, c := range res.Cells {
		coords[i] = c.Record.Cell.Coords()
	}
	index := spatial.NewIndex(coords)

	uf := newUnionFind(len(res.Cells))
	for i := range res.Cells {
		for _, j := range index.Within(coords[i], cfg.LinkageKm) {
			if j > i && domain.DistanceKm(coords[i], coords[j]) < cfg.LinkageKm {
				uf.union(i, j)
			}
		}
	}

	// Компоненты в порядке первой ячейки
	groups := make(map[int][]int)
	var roots []int
	for i := range res.Cells {
		r := uf.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	res.Clusters = make([]domain.UnderservedCluster, 0, len(roots))
	for _, r := range roots {
		res.Clusters = append(res.Clusters, buildCluster(res.Cells, groups[r]))
	}

	sort.SliceStable(res.Clusters, func(a, b int) bool {
		return res.Clusters[a].Priority > res.Clusters[b].Priority
	})
	return res
}

func buildCluster(cells []domain.UnderservedCell, members []int) domain.UnderservedCluster {
	cl := domain.UnderservedCluster{
		Members:  make([]domain.DemandCell, 0, len(members)),
		Priority: math.Inf(-1),
	}

	var wLat, wLon, sLat, sLon float64
	for _, i := range members {
		cell := cells[i].Record.Cell
		cl.Members = append(cl.Members, cell)
		cl.TotalPopulation += cell.Population
		cl.Priority = math.Max(cl.Priority, cells[i].Priority)

		w := float64(cell.Population)
		wLat += w * cell.Lat
		wLon += w * cell.Lon
		sLat += cell.Lat
		sLon += cell.Lon
	}

	if cl.TotalPopulation > 0 {
		total := float64(cl.TotalPopulation)
		cl.Centroid = domain.Coordinates{Lat: wLat / total, Lon: wLon / total}
	} else {
		n := float64(len(members))
		cl.Centroid = domain.Coordinates{Lat: sLat / n, Lon: sLon / n}
	}
	return cl
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
