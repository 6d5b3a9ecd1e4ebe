package geo

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6_371_000.0

// ErrInvalidCoordinates is returned for NaN, infinite or out-of-range lat/lng.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// PointDistance is Haversine over two orb points ([lng, lat] order).
func PointDistance(a, b orb.Point) float64 {
	return Haversine(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

// PolylineLength sums the haversine distance between consecutive points of ls.
// A line with fewer than two points has length 0.
func PolylineLength(ls orb.LineString) float64 {
	var total float64
	for i := 0; i+1 < len(ls); i++ {
		total += PointDistance(ls[i], ls[i+1])
	}
	return total
}

// ValidateLatLng rejects non-finite and out-of-range coordinates.
func ValidateLatLng(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Region is a lat/lng bounding box. The zero Region contains every point.
type Region struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLng float64 `yaml:"max_lng"`
}

// IsZero reports whether no bound is configured.
func (r Region) IsZero() bool {
	return r == Region{}
}

// Bound returns the region as an orb.Bound.
func (r Region) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.MinLng, r.MinLat},
		Max: orb.Point{r.MaxLng, r.MaxLat},
	}
}

// Contains reports whether the point lies inside the region, edges included.
func (r Region) Contains(lat, lng float64) bool {
	if r.IsZero() {
		return true
	}
	return r.Bound().Contains(orb.Point{lng, lat})
}
