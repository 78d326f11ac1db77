package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Coordinates географическая точка в градусах WGS84
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point возвращает точку orb (lon, lat)
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Validate проверяет диапазоны широты и долготы
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lon)
	}
	return nil
}

// FromPoint создаёт Coordinates из точки orb
func FromPoint(p orb.Point) Coordinates {
	return Coordinates{Lat: p.Lat(), Lon: p.Lon()}
}

// DistanceKm расстояние по большому кругу (haversine) в километрах
func DistanceKm(a, b Coordinates) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point()) / MetersPerKm
}

// TravelMinutes переводит расстояние в минуты при заданной скорости
func TravelMinutes(distanceKm, speedKmh float64) float64 {
	if speedKmh <= 0 {
		return math.Inf(1)
	}
	return distanceKm / speedKmh * 60
}

// GradedAccess оценка доступа: 1 в пределах порога, линейно убывает
// до 0 на двойном пороге
func GradedAccess(minutes, threshold float64) float64 {
	switch {
	case minutes <= threshold:
		return 1
	case minutes >= 2*threshold:
		return 0
	default:
		return 2 - minutes/threshold
	}
}

// BoundingBox прямоугольная область в градусах
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// NewBoundingBox создаёт область по углам
func NewBoundingBox(minLat, minLon, maxLat, maxLon float64) BoundingBox {
	return BoundingBox{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
}

// Validate проверяет диапазоны и порядок углов. Вырожденная область допустима.
func (b BoundingBox) Validate() error {
	if err := (Coordinates{Lat: b.MinLat, Lon: b.MinLon}).Validate(); err != nil {
		return err
	}
	if err := (Coordinates{Lat: b.MaxLat, Lon: b.MaxLon}).Validate(); err != nil {
		return err
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return fmt.Errorf("inverted bounding box (%v,%v)-(%v,%v)", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
	}
	return nil
}

// IsDegenerate область нулевой площади
func (b BoundingBox) IsDegenerate() bool {
	return b.MaxLat-b.MinLat <= 0 || b.MaxLon-b.MinLon <= 0
}

// Contains проверяет попадание точки в область (границы включительно)
func (b BoundingBox) Contains(c Coordinates) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// Center центр области
func (b BoundingBox) Center() Coordinates {
	return Coordinates{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// Bound возвращает orb.Bound
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
}

// AreaKm2 площадь области на сфере
func (b BoundingBox) AreaKm2() float64 {
	if b.IsDegenerate() {
		return 0
	}
	return math.Abs(geo.Area(b.Bound())) / (MetersPerKm * MetersPerKm)
}

// Key строковый ключ области для кэшей
func (b BoundingBox) Key() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// BoundAround возвращает orb.Bound, описывающий круг радиуса radiusKm
func BoundAround(c Coordinates, radiusKm float64) orb.Bound {
	return geo.NewBoundAroundPoint(c.Point(), radiusKm*MetersPerKm)
}
