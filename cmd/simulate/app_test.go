package simulate

import (
	"testing"

	"courier-track/internal/domain/geo"

	"github.com/stretchr/testify/require"
)

func TestParseCoord(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    geo.Coordinate
		wantErr bool
	}{
		{name: "plain", input: "46.8139,-71.2082", want: geo.Coordinate{Latitude: 46.8139, Longitude: -71.2082}},
		{name: "spaces around parts", input: " 46.8139 , -71.2082 ", want: geo.Coordinate{Latitude: 46.8139, Longitude: -71.2082}},
		{name: "missing comma", input: "46.8139 -71.2082", wantErr: true},
		{name: "too many parts", input: "46.8,-71.2,0", wantErr: true},
		{name: "not a number", input: "north,west", wantErr: true},
		{name: "latitude out of range", input: "91,-71.2", wantErr: true},
		{name: "longitude out of range", input: "46.8,181", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseCoord(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
