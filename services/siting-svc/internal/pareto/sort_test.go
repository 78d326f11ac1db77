package pareto

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/domain"
)

func sol(a, c, r, cost, e float64) domain.Solution {
	return domain.Solution{Objectives: domain.Objectives{
		Accessibility: a, Coverage: c, Resilience: r, Cost: cost, Equity: e,
	}}
}

func TestNonDominatedSort_Fronts(t *testing.T) {
	pop := []domain.Solution{
		sol(0.9, 0.9, 0.9, 0.9, 0.9), // доминирует всех
		sol(0.5, 0.5, 0.5, 0.5, 0.5),
		sol(0.6, 0.4, 0.5, 0.5, 0.5), // несравнимо с 1
		sol(0.1, 0.1, 0.1, 0.1, 0.1),
	}

	fronts := NonDominatedSort(pop)

	require.Len(t, fronts, 3)
	assert.Equal(t, []int{0}, fronts[0])
	assert.Equal(t, []int{1, 2}, fronts[1])
	assert.Equal(t, []int{3}, fronts[2])

	assert.Equal(t, 0, pop[0].DominationCount)
	assert.Equal(t, []int{1, 2, 3}, pop[0].DominatedSolutions)
	assert.Equal(t, 3, pop[3].DominationCount)
	assert.Equal(t, 1, pop[1].Rank)
	assert.Equal(t, 2, pop[3].Rank)
}

func TestNonDominatedSort_EqualObjectivesShareFront(t *testing.T) {
	pop := []domain.Solution{
		sol(0.5, 0.5, 0.5, 0.5, 0.5),
		sol(0.5, 0.5, 0.5, 0.5, 0.5),
	}
	fronts := NonDominatedSort(pop)
	require.Len(t, fronts, 1)
	assert.Equal(t, []int{0, 1}, fronts[0])
}

func TestNonDominatedSort_Empty(t *testing.T) {
	assert.Nil(t, NonDominatedSort(nil))
}

func TestNonDominatedSort_RandomPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pop := make([]domain.Solution, 60)
	for i := range pop {
		pop[i] = sol(rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64())
	}

	fronts := NonDominatedSort(pop)

	seen := 0
	for rank, front := range fronts {
		seen += len(front)
		for _, i := range front {
			assert.Equal(t, rank, pop[i].Rank)
			for _, j := range front {
				assert.False(t, pop[i].Objectives.Dominates(pop[j].Objectives),
					"members of front %d must not dominate each other", rank)
			}
		}
	}
	assert.Equal(t, len(pop), seen)

	// каждый член фронта k>0 доминируется кем-то из фронта k-1
	for k := 1; k < len(fronts); k++ {
		for _, i := range fronts[k] {
			dominated := false
			for _, j := range fronts[k-1] {
				if pop[j].Objectives.Dominates(pop[i].Objectives) {
					dominated = true
					break
				}
			}
			assert.True(t, dominated)
		}
	}
}

func TestCrowdingDistance_Boundaries(t *testing.T) {
	pop := []domain.Solution{
		sol(0.0, 1.0, 0.5, 0.5, 0.5),
		sol(0.25, 0.75, 0.5, 0.5, 0.5),
		sol(0.5, 0.5, 0.5, 0.5, 0.5),
		sol(1.0, 0.0, 0.5, 0.5, 0.5),
	}
	front := []int{0, 1, 2, 3}

	CrowdingDistance(pop, front)

	assert.True(t, math.IsInf(pop[0].CrowdingDistance, 1))
	assert.True(t, math.IsInf(pop[3].CrowdingDistance, 1))
	// (0.5-0)/1 по двум целям
	assert.InDelta(t, 1.0, pop[1].CrowdingDistance, 1e-9)
	// (1-0.25)/1 по двум целям
	assert.InDelta(t, 1.5, pop[2].CrowdingDistance, 1e-9)
}

func TestCrowdingDistance_SmallFront(t *testing.T) {
	pop := []domain.Solution{sol(0.1, 0.2, 0.3, 0.4, 0.5), sol(0.5, 0.4, 0.3, 0.2, 0.1)}
	CrowdingDistance(pop, []int{0, 1})
	assert.True(t, math.IsInf(pop[0].CrowdingDistance, 1))
	assert.True(t, math.IsInf(pop[1].CrowdingDistance, 1))
}
