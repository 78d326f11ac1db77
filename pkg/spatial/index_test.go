package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/domain"
)

func randomCoords(rng *rand.Rand, n int) []domain.Coordinates {
	coords := make([]domain.Coordinates, n)
	for i := range coords {
		coords[i] = domain.Coordinates{Lat: 40 + rng.Float64()*0.5, Lon: -3 + rng.Float64()*0.5}
	}
	return coords
}

func TestIndex_Empty(t *testing.T) {
	idx := NewIndex(nil)

	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.Within(domain.Coordinates{}, 10))

	i, d := idx.Nearest(domain.Coordinates{})
	assert.Equal(t, -1, i)
	assert.True(t, math.IsInf(d, 1))
}

func TestIndex_WithinMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := randomCoords(rng, 500)
	idx := NewIndex(points)

	for q := 0; q < 20; q++ {
		center := randomCoords(rng, 1)[0]
		var expected []int
		for i, p := range points {
			if domain.DistanceKm(center, p) <= 5 {
				expected = append(expected, i)
			}
		}
		got := idx.Within(center, 5)
		if len(expected) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, expected, got)
	}
}

func TestIndex_NearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	points := randomCoords(rng, 200)
	idx := NewIndex(points)

	for q := 0; q < 50; q++ {
		center := randomCoords(rng, 1)[0]
		bestIdx, best := -1, math.Inf(1)
		for i, p := range points {
			if d := domain.DistanceKm(center, p); d < best {
				best, bestIdx = d, i
			}
		}

		gotIdx, gotDist := idx.Nearest(center)
		require.Equal(t, bestIdx, gotIdx)
		assert.InDelta(t, best, gotDist, 1e-9)
	}
}

func TestIndex_DuplicatePoints(t *testing.T) {
	p := domain.Coordinates{Lat: 1, Lon: 1}
	idx := NewIndex([]domain.Coordinates{p, p, p})

	assert.Equal(t, []int{0, 1, 2}, idx.Within(p, 0.1))

	i, d := idx.Nearest(p)
	assert.Equal(t, 0, i)
	assert.Zero(t, d)
}
