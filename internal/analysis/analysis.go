// Package analysis answers extremal and proximity queries over a snapshot of
// flight records. Every function is a single left-to-right scan; records are
// never modified.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/yash/flightvectors/internal/geodesy"
	"github.com/yash/flightvectors/pkg/models"
)

var (
	// ErrEmptyInput is returned by every query given zero eligible records.
	ErrEmptyInput = errors.New("no eligible flight records")

	ErrUnknownQuery = errors.New("unknown query")
)

// Field selects the value a query ranks records by.
type Field func(models.FlightRecord) float64

// GeoAltitude selects FlightRecord.GeoAltitude.
func GeoAltitude(r models.FlightRecord) float64 { return r.GeoAltitude }

// VerticalRate selects FlightRecord.VerticalRate.
func VerticalRate(r models.FlightRecord) float64 { return r.VerticalRate }

// Comparator reports whether candidate strictly improves on best.
type Comparator func(candidate, best float64) bool

// GreaterThan selects maxima.
func GreaterThan(candidate, best float64) bool { return candidate > best }

// LessThan selects minima.
func LessThan(candidate, best float64) bool { return candidate < best }

// ExtremeBy returns the item whose key is extremal under better. The running
// best is only replaced on strict improvement, so the first of several equal
// items wins.
func ExtremeBy[T any](items []T, key func(T) float64, better Comparator) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, ErrEmptyInput
	}

	best := items[0]
	bestKey := key(best)
	for _, item := range items[1:] {
		if k := key(item); better(k, bestKey) {
			best, bestKey = item, k
		}
	}
	return best, nil
}

func extreme(query string, records []models.FlightRecord, field Field, better Comparator) (models.FlightRecord, error) {
	rec, err := ExtremeBy(records, field, better)
	if err != nil {
		return rec, fmt.Errorf("%s: %w", query, err)
	}
	return rec, nil
}

// Lowest returns the record with the smallest geo altitude.
func Lowest(records []models.FlightRecord) (models.FlightRecord, error) {
	return extreme("lowest", records, GeoAltitude, LessThan)
}

// Highest returns the record with the largest geo altitude.
func Highest(records []models.FlightRecord) (models.FlightRecord, error) {
	return extreme("highest", records, GeoAltitude, GreaterThan)
}

// FastestClimber returns the record with the largest vertical rate.
func FastestClimber(records []models.FlightRecord) (models.FlightRecord, error) {
	return extreme("fastest climber", records, VerticalRate, GreaterThan)
}

// FastestDescender returns the record with the most negative vertical rate.
func FastestDescender(records []models.FlightRecord) (models.FlightRecord, error) {
	return extreme("fastest descender", records, VerticalRate, LessThan)
}

// NearestTo returns the record closest to the reference point and its
// great-circle distance rounded to the nearest whole kilometer (halves round
// to even).
func NearestTo(records []models.FlightRecord, refLat, refLon float64) (models.FlightRecord, float64, error) {
	distance := func(r models.FlightRecord) float64 {
		return geodesy.GreatCircleDistanceKm(refLat, refLon, r.Latitude, r.Longitude)
	}

	rec, err := ExtremeBy(records, distance, LessThan)
	if err != nil {
		return rec, 0, fmt.Errorf("nearest: %w", err)
	}
	return rec, math.RoundToEven(distance(rec)), nil
}

// Nearest pairs the closest record with its rounded distance.
type Nearest struct {
	Record     models.FlightRecord `json:"record"`
	DistanceKm float64             `json:"distance_km"`
}

// Summary holds the answers to all five queries over one snapshot.
type Summary struct {
	Count            int                 `json:"count"`
	Lowest           models.FlightRecord `json:"lowest"`
	Highest          models.FlightRecord `json:"highest"`
	FastestClimber   models.FlightRecord `json:"fastest_climber"`
	FastestDescender models.FlightRecord `json:"fastest_descender"`
	Nearest          Nearest             `json:"nearest"`
}

// Summarize runs every query against records.
func Summarize(records []models.FlightRecord, refLat, refLon float64) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, fmt.Errorf("summary: %w", ErrEmptyInput)
	}

	var err error
	s := Summary{Count: len(records)}
	if s.Lowest, err = Lowest(records); err != nil {
		return Summary{}, err
	}
	if s.Highest, err = Highest(records); err != nil {
		return Summary{}, err
	}
	if s.FastestClimber, err = FastestClimber(records); err != nil {
		return Summary{}, err
	}
	if s.FastestDescender, err = FastestDescender(records); err != nil {
		return Summary{}, err
	}
	if s.Nearest.Record, s.Nearest.DistanceKm, err = NearestTo(records, refLat, refLon); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// Query names one of the four extremal queries.
type Query string

const (
	QueryLowest           Query = "lowest"
	QueryHighest          Query = "highest"
	QueryFastestClimber   Query = "climber"
	QueryFastestDescender Query = "descender"
)

// Run dispatches q against records.
func (q Query) Run(records []models.FlightRecord) (models.FlightRecord, error) {
	switch q {
	case QueryLowest:
		return Lowest(records)
	case QueryHighest:
		return Highest(records)
	case QueryFastestClimber:
		return FastestClimber(records)
	case QueryFastestDescender:
		return FastestDescender(records)
	default:
		return models.FlightRecord{}, fmt.Errorf("%w %q", ErrUnknownQuery, string(q))
	}
}
