package engine

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"

	"siting/pkg/apperror"
	"siting/pkg/domain"
	"siting/services/siting-svc/internal/access"
	"siting/services/siting-svc/internal/candidates"
	"siting/services/siting-svc/internal/genetic"
	"siting/services/siting-svc/internal/pareto"
	"siting/services/siting-svc/internal/underserved"
)

// Thresholds пороги доступности по уровням, минуты
type Thresholds struct {
	Primary   float64 `koanf:"primary"`
	Secondary float64 `koanf:"secondary"`
	Emergency float64 `koanf:"emergency"`
}

// TierTimes переводит пороги в доменный тип
func (t Thresholds) TierTimes() domain.TierTimes {
	return domain.TierTimes{Primary: t.Primary, Secondary: t.Secondary, Emergency: t.Emergency}
}

// Config параметры движка. Значения по умолчанию задаёт DefaultConfig,
// секция optimizer.engine конфигурации переопределяет отдельные ключи.
type Config struct {
	Seed    int64 `koanf:"seed"`
	Workers int   `koanf:"workers"` // 0 означает NumCPU

	AreaClass       domain.AreaClass                      `koanf:"area_class"`
	SpeedKmh        float64                               `koanf:"speed_kmh"`
	TierEligibility map[domain.FacilityType][]domain.Tier `koanf:"tier_eligibility"`

	Thresholds            Thresholds `koanf:"thresholds"`
	PopulationThreshold   int64      `koanf:"population_threshold"`
	ServiceRadiusKm       float64    `koanf:"service_radius_km"`
	MaxCandidateSites     int        `koanf:"max_candidate_sites"`
	LatticeSamples        int        `koanf:"lattice_samples"`
	ClusterLinkageKm      float64    `koanf:"cluster_linkage_km"`
	TravelTimeCapMinutes  float64    `koanf:"travel_time_cap_minutes"`
	CountExistingCoverage bool       `koanf:"count_existing_coverage"`

	// Тип и мощность рекомендуемых объектов в выдаче
	RecommendedType     domain.FacilityType `koanf:"recommended_type"`
	RecommendedCapacity float64             `koanf:"recommended_capacity"`

	Pareto  pareto.Config  `koanf:"pareto"`
	Genetic genetic.Config `koanf:"genetic"`
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() Config {
	return Config{
		Seed:      42,
		AreaClass: domain.AreaUrban,
		Thresholds: Thresholds{
			Primary:   domain.DefaultPrimaryThresholdMin,
			Secondary: domain.DefaultSecondaryThresholdMin,
			Emergency: domain.DefaultEmergencyThresholdMin,
		},
		TierEligibility:       domain.DefaultTierEligibility(),
		PopulationThreshold:   domain.DefaultPopulationThreshold,
		ServiceRadiusKm:       domain.DefaultServiceRadiusKm,
		MaxCandidateSites:     domain.DefaultMaxCandidateSites,
		LatticeSamples:        domain.DefaultLatticeSamples,
		ClusterLinkageKm:      domain.DefaultClusterLinkageKm,
		TravelTimeCapMinutes:  domain.DefaultTravelTimeCapMinutes,
		CountExistingCoverage: true,
		RecommendedType:       domain.FacilityClinic,
		RecommendedCapacity:   100,
		Pareto:                pareto.DefaultConfig(),
		Genetic:               genetic.DefaultConfig(),
	}
}

// Validate проверяет конфигурацию; ошибка всегда CONFIGURATION_ERROR
func (c Config) Validate() error {
	if c.Workers < 0 {
		return apperror.Configuration("workers", "must be non-negative, got %d", c.Workers)
	}
	if err := c.accessConfig(c.Thresholds.TierTimes()).Validate(); err != nil {
		return apperror.Configuration("thresholds", "%v", err)
	}
	if c.PopulationThreshold < 0 {
		return apperror.Configuration("population_threshold", "must be non-negative, got %d", c.PopulationThreshold)
	}
	if !(c.ServiceRadiusKm > 0) {
		return apperror.Configuration("service_radius_km", "must be positive, got %v", c.ServiceRadiusKm)
	}
	if c.MaxCandidateSites <= 0 {
		return apperror.Configuration("max_candidate_sites", "must be positive, got %d", c.MaxCandidateSites)
	}
	if c.LatticeSamples < 0 {
		return apperror.Configuration("lattice_samples", "must be non-negative, got %d", c.LatticeSamples)
	}
	if !(c.ClusterLinkageKm > 0) {
		return apperror.Configuration("cluster_linkage_km", "must be positive, got %v", c.ClusterLinkageKm)
	}
	if !(c.TravelTimeCapMinutes > 0) {
		return apperror.Configuration("travel_time_cap_minutes", "must be positive, got %v", c.TravelTimeCapMinutes)
	}
	if c.RecommendedType == "" || c.RecommendedCapacity < 0 {
		return apperror.Configuration("recommended_type", "recommended facility type and capacity are invalid")
	}
	if err := c.Pareto.Validate(); err != nil {
		return apperror.Configuration("pareto", "%v", err)
	}
	if err := c.Genetic.Validate(); err != nil {
		return apperror.Configuration("genetic", "%v", err)
	}
	return nil
}

func (c Config) accessConfig(thresholds domain.TierTimes) access.Config {
	return access.Config{
		Thresholds:  thresholds,
		AreaClass:   c.AreaClass,
		SpeedKmh:    c.SpeedKmh,
		Eligibility: c.TierEligibility,
		Workers:     c.Workers,
	}
}

func (c Config) underservedConfig(populationThreshold int64) underserved.Config {
	return underserved.Config{
		PopulationThreshold:  populationThreshold,
		LinkageKm:            c.ClusterLinkageKm,
		TravelTimeCapMinutes: c.TravelTimeCapMinutes,
	}
}

func (c Config) candidatesConfig(radiusKm float64, maxSites int) candidates.Config {
	return candidates.Config{
		ServiceRadiusKm:   radiusKm,
		MaxCandidateSites: maxSites,
		LatticeSamples:    c.LatticeSamples,
	}
}

// DecodeConfig накладывает raw на DefaultConfig. Неизвестные ключи
// и значения неверного типа дают CONFIGURATION_ERROR.
func DecodeConfig(raw map[string]any) (Config, error) {
	cfg := DefaultConfig()
	if len(raw) == 0 {
		return cfg, nil
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(raw, "."), nil); err != nil {
		return cfg, apperror.Configuration("optimizer.engine", "load: %v", err)
	}

	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			ErrorUnused:      true,
			ZeroFields:       true,
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	})
	if err != nil {
		return cfg, apperror.Configuration("optimizer.engine", "%v", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
