package candidates

import (
	"context"
	"math/rand"
	"sync"

	"siting/pkg/domain"
)

// SuitabilityChecker оценивает пригодность участка под объект
type SuitabilityChecker interface {
	Assess(ctx context.Context, p domain.Coordinates) domain.LandSuitability
}

// AlwaysSuitable считает пригодным любой участок
type AlwaysSuitable struct{}

// Assess реализует SuitabilityChecker
func (AlwaysSuitable) Assess(context.Context, domain.Coordinates) domain.LandSuitability {
	return domain.LandSuitability{Suitable: true}
}

// SuitabilityFunc адаптер функции к SuitabilityChecker
type SuitabilityFunc func(ctx context.Context, p domain.Coordinates) domain.LandSuitability

// Assess реализует SuitabilityChecker
func (f SuitabilityFunc) Assess(ctx context.Context, p domain.Coordinates) domain.LandSuitability {
	return f(ctx, p)
}

// Ограничения, которые может выставить RandomSuitability
var simulatedConstraints = []string{"flood_zone", "protected_area", "steep_slope", "zoning_conflict"}

// RandomSuitability имитирует данные о земле: участок пригоден с вероятностью
// Probability. Детерминирована при фиксированном seed и порядке вызовов.
type RandomSuitability struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
}

// NewRandomSuitability создаёт стратегию с собственным генератором
func NewRandomSuitability(seed int64, probability float64) *RandomSuitability {
	return &RandomSuitability{rng: rand.New(rand.NewSource(seed)), probability: probability}
}

// Assess реализует SuitabilityChecker
func (r *RandomSuitability) Assess(context.Context, domain.Coordinates) domain.LandSuitability {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rng.Float64() < r.probability {
		return domain.LandSuitability{Suitable: true}
	}
	return domain.LandSuitability{
		Suitable:    false,
		Constraints: []string{simulatedConstraints[r.rng.Intn(len(simulatedConstraints))]},
	}
}
