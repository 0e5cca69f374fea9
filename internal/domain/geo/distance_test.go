package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistanceKm(t *testing.T) {
	t.Run("identity is zero", func(t *testing.T) {
		p := Coordinate{Latitude: 46.8139, Longitude: -71.2082}
		require.Zero(t, DistanceKm(p, p))
	})

	t.Run("one degree of longitude at the equator", func(t *testing.T) {
		a := Coordinate{Latitude: 0, Longitude: 0}
		b := Coordinate{Latitude: 0, Longitude: 1}
		require.InDelta(t, 111.19, DistanceKm(a, b), 0.5)
	})

	t.Run("symmetry", func(t *testing.T) {
		a := Coordinate{Latitude: 46.8139, Longitude: -71.2082}
		b := Coordinate{Latitude: 45.5017, Longitude: -73.5673}
		require.Equal(t, DistanceKm(a, b), DistanceKm(b, a))
	})

	t.Run("triangle inequality", func(t *testing.T) {
		a := Coordinate{Latitude: 46.8139, Longitude: -71.2082}
		b := Coordinate{Latitude: 45.5017, Longitude: -73.5673}
		c := Coordinate{Latitude: 43.6532, Longitude: -79.3832}
		require.LessOrEqual(t, DistanceKm(a, c), DistanceKm(a, b)+DistanceKm(b, c)+1e-9)
	})

	t.Run("antipodal points stay finite", func(t *testing.T) {
		a := Coordinate{Latitude: 0, Longitude: 0}
		b := Coordinate{Latitude: 0, Longitude: 180}
		d := DistanceKm(a, b)
		require.InDelta(t, 20015, d, 10) // half the circumference
	})
}

func TestCoordinateValidate(t *testing.T) {
	cases := []struct {
		name string
		lat  float64
		lng  float64
		err  error
	}{
		{"valid", 46.8139, -71.2082, nil},
		{"lat above range", 90.1, 0, ErrInvalidLatitude},
		{"lat below range", -90.1, 0, ErrInvalidLatitude},
		{"lng above range", 0, 180.1, ErrInvalidLongitude},
		{"lng below range", 0, -180.1, ErrInvalidLongitude},
		{"boundary", 90, -180, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Coordinate{Latitude: tc.lat, Longitude: tc.lng}
			if tc.err == nil {
				require.NoError(t, c.Validate())
			} else {
				require.ErrorIs(t, c.Validate(), tc.err)
			}
		})
	}
}
