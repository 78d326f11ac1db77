package domain

// CandidateType происхождение кандидата
type CandidateType string

const (
	CandidateClusterCenter CandidateType = "cluster_center"
	CandidateSpatialSample CandidateType = "spatial_sample"
	CandidateRandom        CandidateType = "random_location"
)

// LandSuitability пригодность участка
type LandSuitability struct {
	Suitable    bool     `json:"suitable"`
	Constraints []string `json:"constraints,omitempty"`
}

// CandidateSite кандидат на размещение. Оценивается один раз и дальше не меняется.
type CandidateSite struct {
	ID                        string          `json:"id"`
	Coords                    Coordinates     `json:"coords"`
	Type                      CandidateType   `json:"type"`
	ClusterIndex              int             `json:"cluster_index"`
	EstimatedServedPopulation int64           `json:"estimated_served_population"`
	LandSuitability           LandSuitability `json:"land_suitability"`
	AccessibilityScore        float64         `json:"accessibility_score"`
	Priority                  float64         `json:"priority"`
}

// SelectedSite кандидат, выбранный решателем
type SelectedSite struct {
	CandidateSite
	SelectionOrder               int     `json:"selection_order"`
	AdditionalCoverage           int64   `json:"additional_coverage"`
	CumulativeCoverage           int64   `json:"cumulative_coverage"`
	CumulativeCoveragePercentage float64 `json:"cumulative_coverage_percentage"`
}

// AsFacility превращает выбранную площадку в рекомендуемый объект
func (s SelectedSite) AsFacility(ft FacilityType, capacity float64) Facility {
	return Facility{
		ID:       s.ID,
		Name:     "Recommended site " + s.ID,
		Coords:   s.Coords,
		Type:     ft,
		Capacity: capacity,
	}
}

// Reason почему решатель остановился
type Reason string

const (
	ReasonNoSuitableCandidates Reason = "no_suitable_candidates"
	ReasonNoAdditionalCoverage Reason = "no_additional_coverage"
	ReasonMaxFacilities        Reason = "max_facilities_reached"
	ReasonCancelled            Reason = "cancelled"
)
