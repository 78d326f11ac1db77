package access

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/domain"
)

func km(v float64) float64 { return v / domain.KmPerDegree }

func TestCalculator_TierEligibility(t *testing.T) {
	facilities := []domain.Facility{
		{ID: "clinic", Coords: domain.Coordinates{Lat: 0, Lon: km(1)}, Type: domain.FacilityClinic},
		{ID: "hospital", Coords: domain.Coordinates{Lat: 0, Lon: km(20)}, Type: domain.FacilityHospital},
	}
	calc := NewCalculator(facilities, DefaultConfig())

	rec := calc.Record(domain.DemandCell{Lat: 0, Lon: 0, Population: 100})

	// Первичный уровень обслуживает клиника в 1 км: 2 минуты при 30 км/ч
	assert.InDelta(t, 2.0, rec.TravelTimes.Primary, 0.05)
	assert.True(t, rec.Accessible.Primary)

	// Вторичный и экстренный только больница в 20 км: 40 минут
	assert.InDelta(t, 40.0, rec.TravelTimes.Secondary, 0.5)
	assert.True(t, rec.Accessible.Secondary)
	assert.False(t, rec.Accessible.Emergency)
}

func TestCalculator_ConfigurableEligibility(t *testing.T) {
	facilities := []domain.Facility{
		{ID: "clinic", Coords: domain.Coordinates{Lat: 0, Lon: km(1)}, Type: domain.FacilityClinic},
	}
	cfg := DefaultConfig()
	cfg.Eligibility = domain.TierEligibility{
		domain.FacilityClinic: {domain.TierPrimary, domain.TierSecondary},
	}
	calc := NewCalculator(facilities, cfg)

	rec := calc.Record(domain.DemandCell{Lat: 0, Lon: 0})
	assert.True(t, rec.Accessible.Secondary)
	assert.True(t, math.IsInf(rec.TravelTimes.Emergency, 1))
	assert.False(t, rec.Accessible.Emergency)
}

func TestCalculator_NoFacilities(t *testing.T) {
	calc := NewCalculator(nil, DefaultConfig())

	rec := calc.Record(domain.DemandCell{Lat: 10, Lon: 10})
	assert.True(t, math.IsInf(rec.TravelTimes.Primary, 1))
	assert.Equal(t, domain.TierFlags{}, rec.Accessible)
	assert.True(t, math.IsInf(calc.NearestFacilityKm(domain.Coordinates{}), 1))
}

func TestCalculator_MatchesCrossProduct(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	types := []domain.FacilityType{domain.FacilityHospital, domain.FacilityClinic, domain.FacilityPharmacy}

	facilities := make([]domain.Facility, 40)
	for i := range facilities {
		facilities[i] = domain.Facility{
			Coords: domain.Coordinates{Lat: rng.Float64() * 0.3, Lon: rng.Float64() * 0.3},
			Type:   types[rng.Intn(len(types))],
		}
	}
	cells := make([]domain.DemandCell, 300)
	for i := range cells {
		cells[i] = domain.DemandCell{ID: i, Lat: rng.Float64() * 0.3, Lon: rng.Float64() * 0.3, Population: 10}
	}

	cfg := DefaultConfig()
	cfg.Workers = 4
	calc := NewCalculator(facilities, cfg)

	records, err := calc.Evaluate(context.Background(), cells)
	require.NoError(t, err)
	require.Len(t, records, len(cells))

	for i, rec := range records {
		assert.Equal(t, cells[i].ID, rec.Cell.ID)
		for _, tier := range domain.AllTiers {
			best := math.Inf(1)
			for _, f := range facilities {
				if cfg.Eligibility.Eligible(f.Type, tier) {
					best = math.Min(best, domain.TravelMinutes(domain.DistanceKm(cells[i].Coords(), f.Coords), cfg.Speed()))
				}
			}
			assert.InDelta(t, best, rec.TravelTimes.Get(tier), 1e-9)
			assert.Equal(t, best <= cfg.Thresholds.Get(tier), rec.Accessible.Get(tier))
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Thresholds.Emergency = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.AreaClass = "desert"
	assert.Error(t, bad.Validate())

	fast := DefaultConfig()
	fast.SpeedKmh = 60
	assert.Equal(t, 60.0, fast.Speed())
}
