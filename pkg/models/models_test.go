package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeVector() StateVector {
	return StateVector{
		ICAO24:       "a1b2c3",
		Callsign:     Ptr("SWA1234 "),
		Longitude:    Ptr(-112.4),
		Latitude:     Ptr(34.6),
		Velocity:     Ptr(220.5),
		VerticalRate: Ptr(-3.25),
		GeoAltitude:  Ptr(4572.0),
	}
}

func TestRecordComplete(t *testing.T) {
	rec, err := completeVector().Record()
	require.NoError(t, err)

	assert.Equal(t, "a1b2c3", rec.ICAO24)
	assert.Equal(t, "SWA1234 ", rec.Callsign)
	assert.InDelta(t, 34.6, rec.Latitude, 1e-9)
	assert.InDelta(t, -112.4, rec.Longitude, 1e-9)
	assert.InDelta(t, 220.5, rec.Velocity, 1e-9)
	assert.InDelta(t, -3.25, rec.VerticalRate, 1e-9)
	assert.InDelta(t, 4572.0, rec.GeoAltitude, 1e-9)
}

func TestRecordMissingField(t *testing.T) {
	tests := []struct {
		name  string
		clear func(*StateVector)
		field string
	}{
		{"icao24", func(sv *StateVector) { sv.ICAO24 = "" }, "icao24"},
		{"callsign", func(sv *StateVector) { sv.Callsign = nil }, "callsign"},
		{"longitude", func(sv *StateVector) { sv.Longitude = nil }, "longitude"},
		{"latitude", func(sv *StateVector) { sv.Latitude = nil }, "latitude"},
		{"velocity", func(sv *StateVector) { sv.Velocity = nil }, "velocity"},
		{"vertical rate", func(sv *StateVector) { sv.VerticalRate = nil }, "vertical_rate"},
		{"geo altitude", func(sv *StateVector) { sv.GeoAltitude = nil }, "geo_altitude"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sv := completeVector()
			tc.clear(&sv)

			_, err := sv.Record()
			require.Error(t, err)

			var mfe *MissingFieldError
			require.True(t, errors.As(err, &mfe))
			assert.Equal(t, tc.field, mfe.Field)
		})
	}
}

func TestRecordReportsFirstMissingField(t *testing.T) {
	sv := completeVector()
	sv.Velocity = nil
	sv.GeoAltitude = nil

	_, err := sv.Record()
	var mfe *MissingFieldError
	require.ErrorAs(t, err, &mfe)
	assert.Equal(t, "velocity", mfe.Field)
	assert.Contains(t, err.Error(), "a1b2c3")
}

func TestStateVectorDecodesNulls(t *testing.T) {
	raw := `{"icao24":"abc123","callsign":"UAL1  ","latitude":40.1,"longitude":-73.2,
		"velocity":250.0,"vertical_rate":null,"geo_altitude":10500.0}`

	var sv StateVector
	require.NoError(t, json.Unmarshal([]byte(raw), &sv))
	assert.Nil(t, sv.VerticalRate)
	require.NotNil(t, sv.GeoAltitude)

	_, err := sv.Record()
	var mfe *MissingFieldError
	require.ErrorAs(t, err, &mfe)
	assert.Equal(t, "vertical_rate", mfe.Field)
}

func TestAircraftInfoUnknown(t *testing.T) {
	assert.True(t, UnknownAircraft().IsUnknown())
	assert.True(t, AircraftInfo{}.IsUnknown())
	assert.False(t, AircraftInfo{Manufacturer: "Boeing", Type: Unknown}.IsUnknown())
}

func TestEnrichedRecordFlatJSON(t *testing.T) {
	rec, err := completeVector().Record()
	require.NoError(t, err)

	er := EnrichedRecord{FlightRecord: rec, AircraftInfo: UnknownAircraft(), CenterDistanceKm: 12.5}
	data, err := json.Marshal(er)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "a1b2c3", flat["icao24"])
	assert.Equal(t, "unknown", flat["Manufacturer"])
	assert.Equal(t, 12.5, flat["center_distance"])
}
