// Package models defines the flight records that move through ingestion,
// enrichment and analysis.
package models

import "fmt"

// StateVector is one aircraft state as delivered by a record source.
// Nullable columns are pointers; nil means the source reported null.
type StateVector struct {
	ICAO24        string   `json:"icao24"`
	Callsign      *string  `json:"callsign"`
	OriginCountry string   `json:"origin_country,omitempty"`
	LastContact   int64    `json:"last_contact,omitempty"`
	Longitude     *float64 `json:"longitude"`
	Latitude      *float64 `json:"latitude"`
	BaroAltitude  *float64 `json:"baro_altitude,omitempty"`
	OnGround      bool     `json:"on_ground"`
	Velocity      *float64 `json:"velocity"`
	TrueTrack     *float64 `json:"true_track,omitempty"`
	VerticalRate  *float64 `json:"vertical_rate"`
	GeoAltitude   *float64 `json:"geo_altitude"`
}

// MissingFieldError reports a required field absent from a StateVector.
type MissingFieldError struct {
	ICAO24 string
	Field  string
}

func (e *MissingFieldError) Error() string {
	if e.ICAO24 == "" {
		return fmt.Sprintf("state vector missing %s", e.Field)
	}
	return fmt.Sprintf("state vector %s missing %s", e.ICAO24, e.Field)
}

// Record converts the vector into an analyzable FlightRecord. Fields are
// checked in a fixed order and the first absent one is reported.
func (sv StateVector) Record() (FlightRecord, error) {
	missing := func(field string) (FlightRecord, error) {
		return FlightRecord{}, &MissingFieldError{ICAO24: sv.ICAO24, Field: field}
	}

	switch {
	case sv.ICAO24 == "":
		return missing("icao24")
	case sv.Callsign == nil:
		return missing("callsign")
	case sv.Longitude == nil:
		return missing("longitude")
	case sv.Latitude == nil:
		return missing("latitude")
	case sv.Velocity == nil:
		return missing("velocity")
	case sv.VerticalRate == nil:
		return missing("vertical_rate")
	case sv.GeoAltitude == nil:
		return missing("geo_altitude")
	}

	return FlightRecord{
		ICAO24:       sv.ICAO24,
		Callsign:     *sv.Callsign,
		Longitude:    *sv.Longitude,
		Latitude:     *sv.Latitude,
		Velocity:     *sv.Velocity,
		VerticalRate: *sv.VerticalRate,
		GeoAltitude:  *sv.GeoAltitude,
	}, nil
}

// FlightRecord is a complete aircraft state eligible for analysis.
type FlightRecord struct {
	ICAO24       string  `json:"icao24"`
	Callsign     string  `json:"callsign"`
	Longitude    float64 `json:"longitude"`
	Latitude     float64 `json:"latitude"`
	Velocity     float64 `json:"velocity"`
	VerticalRate float64 `json:"vertical_rate"`
	GeoAltitude  float64 `json:"geo_altitude"`
}

// Unknown is the placeholder used when aircraft metadata cannot be found.
const Unknown = "unknown"

// AircraftInfo is registry metadata for one airframe.
type AircraftInfo struct {
	Manufacturer     string `json:"Manufacturer"`
	Type             string `json:"Type"`
	RegisteredOwners string `json:"RegisteredOwners"`
}

// UnknownAircraft returns the metadata used when a lookup fails.
func UnknownAircraft() AircraftInfo {
	return AircraftInfo{Manufacturer: Unknown, Type: Unknown, RegisteredOwners: Unknown}
}

// IsUnknown reports whether no field carries real metadata.
func (a AircraftInfo) IsUnknown() bool {
	known := func(s string) bool { return s != "" && s != Unknown }
	return !known(a.Manufacturer) && !known(a.Type) && !known(a.RegisteredOwners)
}

// EnrichedRecord decorates a copy of a FlightRecord with aircraft metadata and
// its distance from the snapshot center.
type EnrichedRecord struct {
	FlightRecord
	AircraftInfo
	CenterDistanceKm float64 `json:"center_distance"`
}

// Ptr returns a pointer to v. Handy for building StateVectors.
func Ptr[T any](v T) *T {
	return &v
}
