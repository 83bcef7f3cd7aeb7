// Package report renders analyzer results as plain text.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yash/flightvectors/internal/analysis"
	"github.com/yash/flightvectors/pkg/models"
)

// Options tunes Render.
type Options struct {
	// ReferenceName labels the nearest-aircraft line. Defaults to
	// "the reference point".
	ReferenceName string
	// Aircraft, keyed by icao24, adds metadata to each line when present.
	Aircraft map[string]models.AircraftInfo
}

// AircraftIndex builds the Options.Aircraft map from enriched records.
func AircraftIndex(records []models.EnrichedRecord) map[string]models.AircraftInfo {
	idx := make(map[string]models.AircraftInfo, len(records))
	for _, r := range records {
		idx[r.ICAO24] = r.AircraftInfo
	}
	return idx
}

// Render writes the five query results to w.
func Render(w io.Writer, s analysis.Summary, opts Options) error {
	ref := opts.ReferenceName
	if ref == "" {
		ref = "the reference point"
	}
	name := func(r models.FlightRecord) string {
		return Details(models.EnrichedRecord{FlightRecord: r, AircraftInfo: opts.Aircraft[r.ICAO24]})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Flight Vector Analysis (%d aircraft):\n", s.Count)
	fmt.Fprintf(&b, "Lowest flying plane: %s at %s meters\n", name(s.Lowest), num(s.Lowest.GeoAltitude))
	fmt.Fprintf(&b, "Highest flying plane: %s at %s meters\n", name(s.Highest), num(s.Highest.GeoAltitude))
	fmt.Fprintf(&b, "Fastest descender: %s at a rate of %s meters/second\n",
		name(s.FastestDescender), num(s.FastestDescender.VerticalRate))
	fmt.Fprintf(&b, "Fastest climber: %s at a rate of %s meters/second\n",
		name(s.FastestClimber), num(s.FastestClimber.VerticalRate))
	fmt.Fprintf(&b, "Closest to %s: %s about %s km away\n", ref, name(s.Nearest.Record), num(s.Nearest.DistanceKm))

	_, err := io.WriteString(w, b.String())
	return err
}

// Details identifies an aircraft by trimmed callsign, or icao24 when the
// callsign is blank, followed by any known manufacturer and type.
func Details(r models.EnrichedRecord) string {
	label := strings.TrimSpace(r.Callsign)
	if label == "" {
		label = r.ICAO24
	}

	var meta []string
	for _, s := range []string{r.Manufacturer, r.Type} {
		if s != "" && s != models.Unknown {
			meta = append(meta, s)
		}
	}
	if len(meta) == 0 {
		return label
	}
	return label + " (" + strings.Join(meta, " ") + ")"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
