package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between a and b in
// kilometers. The function is symmetric and returns exactly 0 for
// coordinate-wise equal inputs.
func DistanceKm(a, b Coordinate) float64 {
	if a.Equal(b) {
		return 0
	}

	latA := degToRad(a.Latitude)
	latB := degToRad(b.Latitude)
	dLat := degToRad(b.Latitude - a.Latitude)
	dLon := degToRad(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon

	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
