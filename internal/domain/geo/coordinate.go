package geo

import (
	"errors"
	"fmt"
	"math"
)

// Coordinate is a geographic point in degrees. It is a value type: decoding,
// geolocation queries and arithmetic always produce new values, never mutate
// in place.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// NewCoordinate constructs a validated Coordinate.
func NewCoordinate(latitude, longitude float64) (Coordinate, error) {
	coordinate := Coordinate{Latitude: latitude, Longitude: longitude}
	if err := coordinate.Validate(); err != nil {
		return Coordinate{}, err
	}
	return coordinate, nil
}

// Validate checks the coordinate ranges. NaN fails the range checks.
func (coordinate Coordinate) Validate() error {
	if math.IsNaN(coordinate.Latitude) || coordinate.Latitude < -90 || coordinate.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(coordinate.Longitude) || coordinate.Longitude < -180 || coordinate.Longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// Equal reports coordinate-wise equality.
func (coordinate Coordinate) Equal(other Coordinate) bool {
	return coordinate.Latitude == other.Latitude && coordinate.Longitude == other.Longitude
}

// String returns "lat,lng" with five decimals, the precision of the encoded
// polyline format.
func (coordinate Coordinate) String() string {
	return fmt.Sprintf("%.5f,%.5f", coordinate.Latitude, coordinate.Longitude)
}
