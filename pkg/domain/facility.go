package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// FacilityType тип объекта инфраструктуры
type FacilityType string

const (
	FacilityHospital   FacilityType = "hospital"
	FacilityClinic     FacilityType = "clinic"
	FacilityPharmacy   FacilityType = "pharmacy"
	FacilityCollection FacilityType = "collection"
	FacilityTreatment  FacilityType = "treatment"
	FacilityRecycling  FacilityType = "recycling"
	FacilityLandfill   FacilityType = "landfill"
)

// Facility существующий или рекомендуемый объект
type Facility struct {
	ID       string       `json:"id"`
	Name     string       `json:"name,omitempty"`
	Coords   Coordinates  `json:"coords"`
	Type     FacilityType `json:"type"`
	Capacity float64      `json:"capacity"`
	Services []string     `json:"services,omitempty"`
}

// Validate проверяет объект
func (f Facility) Validate() error {
	if err := f.Coords.Validate(); err != nil {
		return fmt.Errorf("facility %q: %w", f.ID, err)
	}
	if f.Type == "" {
		return fmt.Errorf("facility %q: type is required", f.ID)
	}
	if f.Capacity < 0 {
		return fmt.Errorf("facility %q: negative capacity %v", f.ID, f.Capacity)
	}
	return nil
}

// Tier уровень медицинской помощи
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierEmergency Tier = "emergency"
)

// AllTiers все уровни в фиксированном порядке
var AllTiers = []Tier{TierPrimary, TierSecondary, TierEmergency}

// IsValid проверяет уровень
func (t Tier) IsValid() bool {
	switch t {
	case TierPrimary, TierSecondary, TierEmergency:
		return true
	}
	return false
}

// TierEligibility какие типы объектов обслуживают какой уровень
type TierEligibility map[FacilityType][]Tier

// DefaultTierEligibility первичный уровень обслуживают больницы и клиники,
// вторичный и экстренный только больницы
func DefaultTierEligibility() TierEligibility {
	return TierEligibility{
		FacilityHospital: {TierPrimary, TierSecondary, TierEmergency},
		FacilityClinic:   {TierPrimary},
	}
}

// Eligible проверяет, обслуживает ли тип объекта уровень
func (e TierEligibility) Eligible(ft FacilityType, tier Tier) bool {
	for _, t := range e[ft] {
		if t == tier {
			return true
		}
	}
	return false
}

// Validate проверяет, что все уровни известны
func (e TierEligibility) Validate() error {
	for ft, tiers := range e {
		for _, t := range tiers {
			if !t.IsValid() {
				return fmt.Errorf("facility type %q: unknown tier %q", ft, t)
			}
		}
	}
	return nil
}

// TierTimes время в пути по уровням, минуты. +Inf означает отсутствие
// подходящего объекта и сериализуется как null.
type TierTimes struct {
	Primary   float64
	Secondary float64
	Emergency float64
}

// UnreachableTimes все уровни недостижимы
func UnreachableTimes() TierTimes {
	inf := math.Inf(1)
	return TierTimes{Primary: inf, Secondary: inf, Emergency: inf}
}

// Get значение для уровня
func (t TierTimes) Get(tier Tier) float64 {
	switch tier {
	case TierSecondary:
		return t.Secondary
	case TierEmergency:
		return t.Emergency
	default:
		return t.Primary
	}
}

// Set устанавливает значение для уровня
func (t *TierTimes) Set(tier Tier, v float64) {
	switch tier {
	case TierSecondary:
		t.Secondary = v
	case TierEmergency:
		t.Emergency = v
	default:
		t.Primary = v
	}
}

type tierTimesJSON struct {
	Primary   *float64 `json:"primary"`
	Secondary *float64 `json:"secondary"`
	Emergency *float64 `json:"emergency"`
}

// MarshalJSON кодирует бесконечности как null
func (t TierTimes) MarshalJSON() ([]byte, error) {
	return json.Marshal(tierTimesJSON{
		Primary:   FiniteOrNil(t.Primary),
		Secondary: FiniteOrNil(t.Secondary),
		Emergency: FiniteOrNil(t.Emergency),
	})
}

// UnmarshalJSON декодирует null как +Inf
func (t *TierTimes) UnmarshalJSON(data []byte) error {
	var raw tierTimesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Primary = OrInf(raw.Primary)
	t.Secondary = OrInf(raw.Secondary)
	t.Emergency = OrInf(raw.Emergency)
	return nil
}

// TierFlags флаги доступности по уровням
type TierFlags struct {
	Primary   bool `json:"primary"`
	Secondary bool `json:"secondary"`
	Emergency bool `json:"emergency"`
}

// Get флаг для уровня
func (f TierFlags) Get(tier Tier) bool {
	switch tier {
	case TierSecondary:
		return f.Secondary
	case TierEmergency:
		return f.Emergency
	default:
		return f.Primary
	}
}

// Set устанавливает флаг для уровня
func (f *TierFlags) Set(tier Tier, v bool) {
	switch tier {
	case TierSecondary:
		f.Secondary = v
	case TierEmergency:
		f.Emergency = v
	default:
		f.Primary = v
	}
}

// FiniteOrNil указатель на значение или nil для Inf/NaN
func FiniteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// OrInf разыменовывает указатель, nil превращается в +Inf
func OrInf(v *float64) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return *v
}
