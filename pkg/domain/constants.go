package domain

import "math"

// Математические константы
const (
	Epsilon  = 1e-9
	Infinity = math.MaxFloat64
)

// Геодезия
const (
	EarthRadiusKm = 6371.0088
	KmPerDegree   = 111.32
	MetersPerKm   = 1000.0
)

// Значения по умолчанию для движка размещения
const (
	DefaultServiceRadiusKm      = 5.0
	DefaultMaxCandidateSites    = 50
	DefaultGridResolutionKm     = 1.0
	DefaultClusterLinkageKm     = 2.0
	DefaultLatticeSamples       = 20
	DefaultPopulationThreshold  = 100
	DefaultTravelTimeCapMinutes = 240.0
)

// Пороги доступности по умолчанию, минуты
const (
	DefaultPrimaryThresholdMin   = 30.0
	DefaultSecondaryThresholdMin = 60.0
	DefaultEmergencyThresholdMin = 15.0
)

// Скорости по классам местности, км/ч
const (
	UrbanSpeedKmh    = 30.0
	SuburbanSpeedKmh = 50.0
	RuralSpeedKmh    = 70.0
)

// AreaClass класс местности для оценки времени в пути
type AreaClass string

const (
	AreaUrban    AreaClass = "urban"
	AreaSuburban AreaClass = "suburban"
	AreaRural    AreaClass = "rural"
)

// SpeedKmh возвращает среднюю скорость для класса местности
func (c AreaClass) SpeedKmh() float64 {
	switch c {
	case AreaSuburban:
		return SuburbanSpeedKmh
	case AreaRural:
		return RuralSpeedKmh
	default:
		return UrbanSpeedKmh
	}
}

// IsValid проверяет класс местности
func (c AreaClass) IsValid() bool {
	switch c {
	case AreaUrban, AreaSuburban, AreaRural:
		return true
	}
	return false
}

// FloatEquals сравнивает два float64 с учётом Epsilon
func FloatEquals(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// FloatGreater проверяет a > b с учётом Epsilon
func FloatGreater(a, b float64) bool {
	return a > b+Epsilon
}

// Clamp01 ограничивает значение отрезком [0, 1]
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
