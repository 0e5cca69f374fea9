// Package polyline implements the compact ASCII polyline encoding used by
// mapping providers: per point, latitude then longitude deltas are scaled by
// 1e5, zig-zag signed, split into 5-bit groups (low group first), offset by
// 63 into printable ASCII, with bit 0x20 marking continuation.
package polyline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"courier-track/internal/domain/geo"
)

// ErrMalformedPolyline reports input that ends mid-codon: a 5-bit group
// sequence without a terminating byte whose continuation bit is unset.
var ErrMalformedPolyline = errors.New("malformed polyline: truncated codon")

const precision = 1e5

// Decode converts an encoded polyline into its coordinate sequence. An empty
// string decodes to an empty sequence. Truncated input fails with
// ErrMalformedPolyline; Decode never panics on malformed bytes.
func Decode(encoded string) ([]geo.Coordinate, error) {
	coords := make([]geo.Coordinate, 0, len(encoded)/4)

	var lat, lng int64
	for i := 0; i < len(encoded); {
		dLat, next, err := decodeDelta(encoded, i)
		if err != nil {
			return nil, err
		}
		dLng, next, err := decodeDelta(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dLat
		lng += dLng
		coords = append(coords, geo.Coordinate{
			Latitude:  float64(lat) / precision,
			Longitude: float64(lng) / precision,
		})
	}

	return coords, nil
}

// decodeDelta reads one codon starting at position i and returns the signed
// delta plus the position of the next codon.
func decodeDelta(encoded string, i int) (int64, int, error) {
	var result int64
	var shift uint

	for {
		if i >= len(encoded) {
			return 0, i, fmt.Errorf("%w at byte %d", ErrMalformedPolyline, len(encoded))
		}
		b := int64(encoded[i]) - 63
		i++

		result |= (b & 0x1f) << shift
		shift += 5

		if b < 0x20 {
			break
		}
	}

	if result&1 == 1 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}

// Encode is the inverse of Decode. Coordinates round-trip within 1e-5
// degrees, the fixed precision of the format. Used mostly for test fixtures
// and the straight-line fallback route.
func Encode(coords []geo.Coordinate) string {
	var b strings.Builder

	var prevLat, prevLng int64
	for _, c := range coords {
		lat := int64(math.Round(c.Latitude * precision))
		lng := int64(math.Round(c.Longitude * precision))

		encodeDelta(&b, lat-prevLat)
		encodeDelta(&b, lng-prevLng)

		prevLat, prevLng = lat, lng
	}

	return b.String()
}

func encodeDelta(b *strings.Builder, delta int64) {
	v := delta << 1
	if delta < 0 {
		v = ^v
	}
	for v >= 0x20 {
		b.WriteByte(byte((v&0x1f)|0x20) + 63)
		v >>= 5
	}
	b.WriteByte(byte(v) + 63)
}
