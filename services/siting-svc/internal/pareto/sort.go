package pareto

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"siting/pkg/domain"
)

// NonDominatedSort раскладывает популяцию по фронтам последовательным снятием.
// Заполняет DominationCount, DominatedSolutions (индексы арены) и Rank.
// Возвращает фронты как списки индексов; фронт 0 оптимален по Парето.
func NonDominatedSort(pop []domain.Solution) [][]int {
	n := len(pop)
	if n == 0 {
		return nil
	}

	for i := range pop {
		pop[i].DominationCount = 0
		pop[i].DominatedSolutions = pop[i].DominatedSolutions[:0]
		pop[i].Rank = 0
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case pop[i].Objectives.Dominates(pop[j].Objectives):
				pop[i].DominatedSolutions = append(pop[i].DominatedSolutions, j)
				pop[j].DominationCount++
			case pop[j].Objectives.Dominates(pop[i].Objectives):
				pop[j].DominatedSolutions = append(pop[j].DominatedSolutions, i)
				pop[i].DominationCount++
			}
		}
	}

	// Снятие фронтов работает на копии счётчиков, исходные остаются в решениях
	remaining := make([]int, n)
	var current []int
	for i := range pop {
		remaining[i] = pop[i].DominationCount
		if remaining[i] == 0 {
			current = append(current, i)
		}
	}

	var fronts [][]int
	for rank := 0; len(current) > 0; rank++ {
		fronts = append(fronts, current)
		var next []int
		for _, i := range current {
			pop[i].Rank = rank
			for _, j := range pop[i].DominatedSolutions {
				remaining[j]--
				if remaining[j] == 0 {
					next = append(next, j)
				}
			}
		}
		sort.Ints(next)
		current = next
	}
	return fronts
}

// CrowdingDistance считает дистанцию скученности для членов фронта.
// Граничные решения по каждой цели получают +Inf; внутренние суммируют
// нормированный разрыв между соседями. Цели с нулевым размахом пропускаются.
func CrowdingDistance(pop []domain.Solution, front []int) {
	for _, i := range front {
		pop[i].CrowdingDistance = 0
	}
	if len(front) <= 2 {
		for _, i := range front {
			pop[i].CrowdingDistance = math.Inf(1)
		}
		return
	}

	order := make([]int, len(front))
	values := make([]float64, len(front))
	for m := 0; m < domain.ObjectiveCount; m++ {
		copy(order, front)
		sort.SliceStable(order, func(a, b int) bool {
			return pop[order[a]].Objectives.Values()[m] < pop[order[b]].Objectives.Values()[m]
		})
		for k, i := range order {
			values[k] = pop[i].Objectives.Values()[m]
		}

		pop[order[0]].CrowdingDistance = math.Inf(1)
		pop[order[len(order)-1]].CrowdingDistance = math.Inf(1)

		span := floats.Max(values) - floats.Min(values)
		if span == 0 {
			continue
		}
		for k := 1; k < len(order)-1; k++ {
			i := order[k]
			if math.IsInf(pop[i].CrowdingDistance, 1) {
				continue
			}
			pop[i].CrowdingDistance += (values[k+1] - values[k-1]) / span
		}
	}
}
