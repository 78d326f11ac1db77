package domain

import (
	"encoding/json"
	"math"
)

// ObjectiveCount число целевых функций
const ObjectiveCount = 5

// ObjectiveNames имена целей в порядке Objectives.Values
var ObjectiveNames = [ObjectiveCount]string{"accessibility", "coverage", "resilience", "cost", "equity"}

// Objectives вектор целей; все в [0, 1], больше лучше (стоимость уже инвертирована)
type Objectives struct {
	Accessibility float64 `json:"accessibility"`
	Coverage      float64 `json:"coverage"`
	Resilience    float64 `json:"resilience"`
	Cost          float64 `json:"cost"`
	Equity        float64 `json:"equity"`
}

// Values возвращает цели массивом
func (o Objectives) Values() [ObjectiveCount]float64 {
	return [ObjectiveCount]float64{o.Accessibility, o.Coverage, o.Resilience, o.Cost, o.Equity}
}

// Dominates a доминирует b: не хуже по всем целям и строго лучше хотя бы по одной
func (o Objectives) Dominates(other Objectives) bool {
	a, b := o.Values(), other.Values()
	better := false
	for i := range a {
		if a[i] < b[i] {
			return false
		}
		if a[i] > b[i] {
			better = true
		}
	}
	return better
}

// Solution решение многокритериальной задачи. DominatedSolutions хранит
// индексы в общей арене популяции, а не ссылки.
type Solution struct {
	FacilitySet        []CandidateSite `json:"facility_set"`
	Objectives         Objectives      `json:"objectives"`
	DominationCount    int             `json:"domination_count"`
	DominatedSolutions []int           `json:"dominated_solutions"`
	Rank               int             `json:"rank"`
	CrowdingDistance   float64         `json:"-"`
}

// MarshalJSON кодирует бесконечную crowding distance граничных решений как null
func (s Solution) MarshalJSON() ([]byte, error) {
	type alias Solution
	return json.Marshal(struct {
		alias
		CrowdingDistance *float64 `json:"crowding_distance"`
		Boundary         bool     `json:"boundary"`
	}{
		alias:            alias(s),
		CrowdingDistance: FiniteOrNil(s.CrowdingDistance),
		Boundary:         math.IsInf(s.CrowdingDistance, 1),
	})
}

// UnmarshalJSON восстанавливает +Inf для граничных решений
func (s *Solution) UnmarshalJSON(data []byte) error {
	type alias Solution
	aux := struct {
		*alias
		CrowdingDistance *float64 `json:"crowding_distance"`
		Boundary         bool     `json:"boundary"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.Boundary:
		s.CrowdingDistance = math.Inf(1)
	case aux.CrowdingDistance != nil:
		s.CrowdingDistance = *aux.CrowdingDistance
	default:
		s.CrowdingDistance = 0
	}
	return nil
}
