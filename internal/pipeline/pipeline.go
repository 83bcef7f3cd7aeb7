// Package pipeline turns raw state vectors into an analyzable snapshot:
// cleanup, metadata enrichment, and center-distance customization.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/skypies/geo"

	"github.com/yash/flightvectors/internal/cache"
	"github.com/yash/flightvectors/internal/geodesy"
	"github.com/yash/flightvectors/internal/metrics"
	"github.com/yash/flightvectors/pkg/models"
)

// ---------------------------------------------------------------------------
// Cleanup
// ---------------------------------------------------------------------------

// Cleanup keeps the vectors that carry every analyzed field and returns how
// many were dropped. Incomplete vectors are never an error.
func Cleanup(vectors []models.StateVector) ([]models.FlightRecord, int) {
	records := make([]models.FlightRecord, 0, len(vectors))
	for _, sv := range vectors {
		rec, err := sv.Record()
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	dropped := len(vectors) - len(records)
	metrics.RecordsDropped.Add(int64(dropped))
	return records, dropped
}

// ---------------------------------------------------------------------------
// Enrichment
// ---------------------------------------------------------------------------

// MetadataLookup resolves registry metadata for an airframe.
type MetadataLookup interface {
	FetchAircraft(ctx context.Context, icao24 string) (models.AircraftInfo, error)
}

// Enricher attaches aircraft metadata to records.
type Enricher struct {
	lookup MetadataLookup
	cache  cache.Store
	logger *slog.Logger
}

// NewEnricher creates an Enricher. A nil store disables caching.
func NewEnricher(lookup MetadataLookup, store cache.Store, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{lookup: lookup, cache: store, logger: logger}
}

// Enrich returns one EnrichedRecord per input record, in order. Lookups that
// fail or come back empty yield UnknownAircraft.
func (e *Enricher) Enrich(ctx context.Context, records []models.FlightRecord) []models.EnrichedRecord {
	out := make([]models.EnrichedRecord, len(records))
	for i, rec := range records {
		out[i] = models.EnrichedRecord{
			FlightRecord: rec,
			AircraftInfo: e.info(ctx, rec.ICAO24),
		}
	}
	return out
}

func (e *Enricher) info(ctx context.Context, icao24 string) models.AircraftInfo {
	if e.cache != nil {
		info, ok, err := e.cache.Get(ctx, icao24)
		switch {
		case err != nil:
			e.logger.Warn("cache read failed", "icao24", icao24, "error", err)
		case ok:
			metrics.CacheHits.Inc()
			return info
		default:
			metrics.CacheMisses.Inc()
		}
	}

	if e.lookup == nil {
		return models.UnknownAircraft()
	}

	metrics.LookupRequests.Inc()
	info, err := e.lookup.FetchAircraft(ctx, icao24)
	if err != nil || info.IsUnknown() {
		metrics.LookupFailures.Inc()
		if err != nil {
			e.logger.Debug("aircraft lookup failed", "icao24", icao24, "error", err)
		}
		return models.UnknownAircraft()
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, icao24, info); err != nil {
			e.logger.Warn("cache write failed", "icao24", icao24, "error", err)
		}
	}
	return info
}

// ---------------------------------------------------------------------------
// Customization
// ---------------------------------------------------------------------------

// Customize sets each record's distance from center, in kilometres.
func Customize(records []models.EnrichedRecord, center geo.Latlong) {
	for i := range records {
		pos := geo.Latlong{Lat: records[i].Latitude, Long: records[i].Longitude}
		records[i].CenterDistanceKm = geodesy.Distance(center, pos)
	}
}
