package geo

import (
	"math"
	"math/rand"
)

// DefaultArrivalEpsilonDeg is the degree-space distance under which a moving
// point is considered to have reached its target.
const DefaultArrivalEpsilonDeg = 0.001

// StepToward moves current toward target by stepDeg in degree space, scaled
// along the remaining (dLat, dLon) delta and clamped so the step never
// overshoots. Each axis then receives independent uniform jitter in
// [-jitterDeg, +jitterDeg]. When the remaining Euclidean degree-distance is
// below epsilonDeg the target itself is returned and jitter is suppressed, so
// a stepping loop is guaranteed to converge.
//
// rng may be nil only when jitterDeg is 0.
func StepToward(current, target Coordinate, stepDeg, jitterDeg, epsilonDeg float64, rng *rand.Rand) Coordinate {
	dLat := target.Latitude - current.Latitude
	dLon := target.Longitude - current.Longitude

	remaining := math.Hypot(dLat, dLon)
	if remaining < epsilonDeg {
		return target
	}

	fraction := stepDeg / remaining
	if fraction > 1 {
		fraction = 1
	}

	next := Coordinate{
		Latitude:  current.Latitude + dLat*fraction,
		Longitude: current.Longitude + dLon*fraction,
	}

	if jitterDeg > 0 && rng != nil {
		next.Latitude += uniform(rng, -jitterDeg, jitterDeg)
		next.Longitude += uniform(rng, -jitterDeg, jitterDeg)
	}

	return next
}

// OffsetByKm returns the coordinate displaced from origin by distanceKm at
// the given bearing (radians, 0 = north). Longitude displacement is corrected
// for the origin latitude; close to the poles the correction is clamped to
// keep the result finite.
func OffsetByKm(origin Coordinate, distanceKm, bearingRad float64) Coordinate {
	const kmPerDegree = 111.32

	latScale := math.Cos(degToRad(origin.Latitude))
	if latScale < 0.01 {
		latScale = 0.01
	}

	return Coordinate{
		Latitude:  origin.Latitude + (distanceKm/kmPerDegree)*math.Cos(bearingRad),
		Longitude: origin.Longitude + (distanceKm/(kmPerDegree*latScale))*math.Sin(bearingRad),
	}
}

// uniform draws from [min, max).
func uniform(rng *rand.Rand, min, max float64) float64 {
	return min + rng.Float64()*(max-min)
}
