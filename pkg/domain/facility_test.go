package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTierEligibility(t *testing.T) {
	e := DefaultTierEligibility()

	assert.True(t, e.Eligible(FacilityHospital, TierPrimary))
	assert.True(t, e.Eligible(FacilityHospital, TierSecondary))
	assert.True(t, e.Eligible(FacilityHospital, TierEmergency))
	assert.True(t, e.Eligible(FacilityClinic, TierPrimary))
	assert.False(t, e.Eligible(FacilityClinic, TierSecondary))
	assert.False(t, e.Eligible(FacilityPharmacy, TierPrimary))
	assert.NoError(t, e.Validate())

	bad := TierEligibility{FacilityClinic: {Tier("tertiary")}}
	assert.Error(t, bad.Validate())
}

func TestFacility_Validate(t *testing.T) {
	ok := Facility{ID: "h1", Coords: Coordinates{Lat: 1, Lon: 1}, Type: FacilityHospital, Capacity: 100}
	assert.NoError(t, ok.Validate())

	noType := ok
	noType.Type = ""
	assert.Error(t, noType.Validate())

	negative := ok
	negative.Capacity = -1
	assert.Error(t, negative.Validate())
}

func TestTierTimes_JSON(t *testing.T) {
	times := TierTimes{Primary: 12.5, Secondary: math.Inf(1), Emergency: 3}

	data, err := json.Marshal(times)
	require.NoError(t, err)
	assert.JSONEq(t, `{"primary":12.5,"secondary":null,"emergency":3}`, string(data))

	var decoded TierTimes
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 12.5, decoded.Primary)
	assert.True(t, math.IsInf(decoded.Secondary, 1))
}

func TestTierFlags(t *testing.T) {
	var f TierFlags
	f.Set(TierEmergency, true)
	assert.True(t, f.Get(TierEmergency))
	assert.False(t, f.Get(TierPrimary))
}

func TestCoverageResult(t *testing.T) {
	res := NewCoverageResult(250, 1000)
	assert.Equal(t, 0.25, res.CoveragePercentage)

	capped := NewCoverageResult(2000, 1000)
	assert.Equal(t, int64(1000), capped.PopulationCovered)
	assert.Equal(t, 1.0, capped.CoveragePercentage)

	empty := NewCoverageResult(0, 0)
	assert.Zero(t, empty.CoveragePercentage)

	imp := NewCoverageImprovement(res, NewCoverageResult(600, 1000))
	assert.InDelta(t, 0.35, imp.Improvement, 1e-9)
}
