package genetic

import (
	"math"
	"math/rand"

	"github.com/MaxHalford/eaopt"

	"siting/pkg/domain"
)

// typeReassignRate вероятность сменить тип объекта при мутации гена
const typeReassignRate = 0.1

// Gene один объект в решении
type Gene struct {
	Lat      float64             `json:"lat"`
	Lon      float64             `json:"lon"`
	Type     domain.FacilityType `json:"type"`
	Capacity float64             `json:"capacity"`
}

// Coords координаты гена
func (g Gene) Coords() domain.Coordinates {
	return domain.Coordinates{Lat: g.Lat, Lon: g.Lon}
}

// Genome набор объектов фиксированной длины. Реализует eaopt.Genome.
type Genome struct {
	Genes []Gene
	model *model
}

// Evaluate возвращает -fitness: eaopt минимизирует
func (g *Genome) Evaluate() (float64, error) {
	return -g.model.fitness(g.Genes).Total, nil
}

// Mutate гауссово смещение одного гена с обрезкой по области
func (g *Genome) Mutate(rng *rand.Rand) {
	if len(g.Genes) == 0 {
		return
	}
	m := g.model
	i := rng.Intn(len(g.Genes))
	gene := &g.Genes[i]

	sigmaLat := m.cfg.MutationSigmaKm / domain.KmPerDegree
	sigmaLon := sigmaLat / math.Max(math.Cos(gene.Lat*math.Pi/180), 1e-6)
	gene.Lat = clamp(gene.Lat+rng.NormFloat64()*sigmaLat, m.bounds.MinLat, m.bounds.MaxLat)
	gene.Lon = clamp(gene.Lon+rng.NormFloat64()*sigmaLon, m.bounds.MinLon, m.bounds.MaxLon)

	sigmaCap := (m.cfg.MaxCapacity - m.cfg.MinCapacity) * 0.1
	gene.Capacity = clamp(gene.Capacity+rng.NormFloat64()*sigmaCap, m.cfg.MinCapacity, m.cfg.MaxCapacity)

	if len(m.cfg.FacilityTypes) > 1 && rng.Float64() < typeReassignRate {
		gene.Type = m.cfg.FacilityTypes[rng.Intn(len(m.cfg.FacilityTypes))]
	}
}

// Crossover одноточечный обмен хвостами
func (g *Genome) Crossover(other eaopt.Genome, rng *rand.Rand) {
	o := other.(*Genome)
	n := min(len(g.Genes), len(o.Genes))
	if n < 2 {
		return
	}
	point := 1 + rng.Intn(n-1)
	for i := point; i < n; i++ {
		g.Genes[i], o.Genes[i] = o.Genes[i], g.Genes[i]
	}
}

// Clone глубокая копия
func (g *Genome) Clone() eaopt.Genome {
	genes := make([]Gene, len(g.Genes))
	copy(genes, g.Genes)
	return &Genome{Genes: genes, model: g.model}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
