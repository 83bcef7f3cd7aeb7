package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yash/flightvectors/internal/analysis"
	"github.com/yash/flightvectors/pkg/models"
)

func rec(icao, callsign string, alt, rate float64) models.FlightRecord {
	return models.FlightRecord{ICAO24: icao, Callsign: callsign, GeoAltitude: alt, VerticalRate: rate}
}

func TestDetails(t *testing.T) {
	cases := []struct {
		name string
		in   models.EnrichedRecord
		want string
	}{
		{
			name: "callsign only",
			in:   models.EnrichedRecord{FlightRecord: rec("a1", "SWA12  ", 0, 0)},
			want: "SWA12",
		},
		{
			name: "blank callsign",
			in:   models.EnrichedRecord{FlightRecord: rec("a1", "   ", 0, 0), AircraftInfo: models.UnknownAircraft()},
			want: "a1",
		},
		{
			name: "with metadata",
			in: models.EnrichedRecord{
				FlightRecord: rec("a1", "SWA12 ", 0, 0),
				AircraftInfo: models.AircraftInfo{Manufacturer: "Boeing", Type: "737-800", RegisteredOwners: "Southwest"},
			},
			want: "SWA12 (Boeing 737-800)",
		},
		{
			name: "partial metadata",
			in: models.EnrichedRecord{
				FlightRecord: rec("a1", "N172SP", 0, 0),
				AircraftInfo: models.AircraftInfo{Manufacturer: models.Unknown, Type: "C172"},
			},
			want: "N172SP (C172)",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Details(tc.in))
		})
	}
}

func TestRender(t *testing.T) {
	records := []models.FlightRecord{
		rec("aaa", "LOW1  ", 300, 1.5),
		rec("bbb", "HIGH2 ", 11000, -12.25),
		rec("ccc", "UP3   ", 4000, 18),
	}
	records[0].Latitude, records[0].Longitude = 34.5, -112.4

	s, err := analysis.Summarize(records, 34.61449, -112.44597)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = Render(&buf, s, Options{
		ReferenceName: "ERAU",
		Aircraft: map[string]models.AircraftInfo{
			"bbb": {Manufacturer: "Airbus", Type: "A320"},
		},
	})
	require.NoError(t, err)

	want := "Flight Vector Analysis (3 aircraft):\n" +
		"Lowest flying plane: LOW1 at 300 meters\n" +
		"Highest flying plane: HIGH2 (Airbus A320) at 11000 meters\n" +
		"Fastest descender: HIGH2 (Airbus A320) at a rate of -12.25 meters/second\n" +
		"Fastest climber: UP3 at a rate of 18 meters/second\n" +
		"Closest to ERAU: LOW1 about 13 km away\n"
	assert.Equal(t, want, buf.String())
}

func TestAircraftIndex(t *testing.T) {
	boeing := models.AircraftInfo{Manufacturer: "Boeing"}
	idx := AircraftIndex([]models.EnrichedRecord{
		{FlightRecord: rec("aaa", "X", 0, 0), AircraftInfo: boeing},
		{FlightRecord: rec("bbb", "Y", 0, 0), AircraftInfo: models.UnknownAircraft()},
	})
	assert.Len(t, idx, 2)
	assert.Equal(t, boeing, idx["aaa"])
}
