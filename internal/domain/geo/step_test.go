package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepToward(t *testing.T) {
	target := Coordinate{Latitude: 46.8000, Longitude: -71.2000}

	t.Run("moves by the requested step without jitter", func(t *testing.T) {
		current := Coordinate{Latitude: 46.8139, Longitude: -71.2082}
		next := StepToward(current, target, 0.001, 0, DefaultArrivalEpsilonDeg, nil)

		moved := math.Hypot(next.Latitude-current.Latitude, next.Longitude-current.Longitude)
		require.InDelta(t, 0.001, moved, 1e-12)
	})

	t.Run("never overshoots the target", func(t *testing.T) {
		current := Coordinate{Latitude: 46.8050, Longitude: -71.2030}
		next := StepToward(current, target, 0.5, 0, DefaultArrivalEpsilonDeg, nil)
		require.True(t, next.Equal(target), "large step must clamp onto the target, got %s", next)
	})

	t.Run("snaps to target inside epsilon", func(t *testing.T) {
		current := Coordinate{Latitude: target.Latitude + 0.0004, Longitude: target.Longitude}
		next := StepToward(current, target, 0.001, 0.0002, DefaultArrivalEpsilonDeg, rand.New(rand.NewSource(1)))
		require.True(t, next.Equal(target), "inside epsilon the exact target is returned, jitter suppressed")
	})

	t.Run("jitter stays within bounds", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		current := Coordinate{Latitude: 46.8139, Longitude: -71.2082}
		const jitter = 0.0002

		for i := 0; i < 200; i++ {
			plain := StepToward(current, target, 0.001, 0, DefaultArrivalEpsilonDeg, nil)
			jittered := StepToward(current, target, 0.001, jitter, DefaultArrivalEpsilonDeg, rng)

			require.LessOrEqual(t, math.Abs(jittered.Latitude-plain.Latitude), jitter)
			require.LessOrEqual(t, math.Abs(jittered.Longitude-plain.Longitude), jitter)
		}
	})

	t.Run("stepping loop converges", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		current := Coordinate{Latitude: 46.8139, Longitude: -71.2082}

		for i := 0; i < 10000; i++ {
			if current.Equal(target) {
				break
			}
			current = StepToward(current, target, 0.001, 0.0002, DefaultArrivalEpsilonDeg, rng)
		}
		require.True(t, current.Equal(target), "loop must converge onto the target")
	})
}

func TestOffsetByKm(t *testing.T) {
	origin := Coordinate{Latitude: 46.8139, Longitude: -71.2082}

	t.Run("displacement magnitude roughly matches", func(t *testing.T) {
		for _, km := range []float64{2, 3.5, 5} {
			for _, bearing := range []float64{0, math.Pi / 4, math.Pi / 2, math.Pi, 3 * math.Pi / 2} {
				p := OffsetByKm(origin, km, bearing)
				require.InDelta(t, km, DistanceKm(origin, p), km*0.05,
					"offset of %.1f km at bearing %.2f", km, bearing)
			}
		}
	})

	t.Run("bearing zero moves north only", func(t *testing.T) {
		p := OffsetByKm(origin, 3, 0)
		require.Greater(t, p.Latitude, origin.Latitude)
		require.InDelta(t, origin.Longitude, p.Longitude, 1e-9)
	})

	t.Run("near-pole longitude scale stays finite", func(t *testing.T) {
		polar := Coordinate{Latitude: 89.99, Longitude: 0}
		p := OffsetByKm(polar, 3, math.Pi/2)
		require.False(t, math.IsInf(p.Longitude, 0))
		require.False(t, math.IsNaN(p.Longitude))
	})
}
