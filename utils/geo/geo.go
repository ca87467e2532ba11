package geo

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DistanceMeters is DistanceKm scaled to meters.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceKm(lat1, lon1, lat2, lon2) * 1000
}

// Destination returns the point distanceKm away from (lat, lon) along
// bearingDeg, measured clockwise from north.
func Destination(lat, lon, distanceKm, bearingDeg float64) (float64, float64) {
	angular := distanceKm / earthRadiusKm
	bearing := toRadians(bearingDeg)
	lat1 := toRadians(lat)
	lon1 := toRadians(lon)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2))

	lon2Deg := math.Mod(lon2*180/math.Pi+540, 360) - 180
	return lat2 * 180 / math.Pi, lon2Deg
}

// Bucket quantizes a position onto a grid of cellDegrees cells and returns a
// stable label. 0.01 degrees of latitude is roughly 1.1 km.
func Bucket(lat, lon, cellDegrees float64) string {
	if cellDegrees <= 0 {
		cellDegrees = 0.01
	}
	return fmt.Sprintf("%d:%d",
		int64(math.Floor(lat/cellDegrees)),
		int64(math.Floor(lon/cellDegrees)))
}

// ValidCoordinates reports whether lat/lon lie in their WGS84 ranges.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
