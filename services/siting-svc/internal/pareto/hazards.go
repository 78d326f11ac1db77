package pareto

import (
	"math/rand"
	"sync"

	"siting/pkg/domain"
)

// Веса рисков в штрафе устойчивости
const (
	WeightFlood      = 0.3
	WeightHeatStress = 0.2
	WeightAirQuality = 0.2
)

// Hazard уровни рисков в точке, каждый в [0, 1]
type Hazard struct {
	Flood      float64 `json:"flood"`
	HeatStress float64 `json:"heat_stress"`
	AirQuality float64 `json:"air_quality"`
}

// Penalty взвешенный штраф
func (h Hazard) Penalty() float64 {
	return WeightFlood*h.Flood + WeightHeatStress*h.HeatStress + WeightAirQuality*h.AirQuality
}

// HazardSampler источник рисков для площадки
type HazardSampler interface {
	Sample(p domain.Coordinates) Hazard
}

// NoHazards нулевые риски везде
type NoHazards struct{}

// Sample реализует HazardSampler
func (NoHazards) Sample(domain.Coordinates) Hazard { return Hazard{} }

// HazardFunc адаптер функции к HazardSampler
type HazardFunc func(p domain.Coordinates) Hazard

// Sample реализует HazardSampler
func (f HazardFunc) Sample(p domain.Coordinates) Hazard { return f(p) }

// RandomHazards имитирует данные о рисках с собственным генератором
type RandomHazards struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomHazards создаёт сэмплер
func NewRandomHazards(seed int64) *RandomHazards {
	return &RandomHazards{rng: rand.New(rand.NewSource(seed))}
}

// Sample реализует HazardSampler
func (r *RandomHazards) Sample(domain.Coordinates) Hazard {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Hazard{
		Flood:      r.rng.Float64(),
		HeatStress: r.rng.Float64(),
		AirQuality: r.rng.Float64(),
	}
}

// VulnerabilityProfile доли уязвимых групп населения
type VulnerabilityProfile struct {
	Under5       float64 `koanf:"under5" json:"under5"`
	Over65       float64 `koanf:"over65" json:"over65"`
	BelowPoverty float64 `koanf:"below_poverty" json:"below_poverty"`
}

// DefaultVulnerability средние доли по умолчанию
func DefaultVulnerability() VulnerabilityProfile {
	return VulnerabilityProfile{Under5: 0.06, Over65: 0.17, BelowPoverty: 0.12}
}

// Share суммарная доля уязвимых, не больше 1
func (v VulnerabilityProfile) Share() float64 {
	return domain.Clamp01(v.Under5 + v.Over65 + v.BelowPoverty)
}

// VulnerabilityFunc профиль уязвимости для ячейки
type VulnerabilityFunc func(cell domain.DemandCell) VulnerabilityProfile
