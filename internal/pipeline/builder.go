package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skypies/geo"

	"github.com/yash/flightvectors/internal/geodesy"
	"github.com/yash/flightvectors/internal/metrics"
	"github.com/yash/flightvectors/internal/snapshot"
	"github.com/yash/flightvectors/pkg/models"
)

// Source names where a snapshot's vectors came from.
type Source string

const (
	SourceLive Source = "live"
	SourceFile Source = "file"
)

// Snapshot is a fully materialized, read-only set of enriched records.
type Snapshot struct {
	Records  []models.EnrichedRecord `json:"records"`
	Center   geo.Latlong             `json:"center"`
	Source   Source                  `json:"source"`
	TakenAt  time.Time               `json:"taken_at"`
	Received int                     `json:"received"`
	Dropped  int                     `json:"dropped"`
}

// Flights returns the plain records for analysis.
func (s *Snapshot) Flights() []models.FlightRecord {
	out := make([]models.FlightRecord, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.FlightRecord
	}
	return out
}

// StateFetcher queries a live feed for vectors inside a box.
type StateFetcher interface {
	FetchStates(ctx context.Context, box geo.LatlongBox) ([]models.StateVector, error)
}

// Locator reports the current position of this host.
type Locator interface {
	Locate(ctx context.Context) (geo.Latlong, error)
}

// VectorSource supplies vectors when the live feed is unavailable.
type VectorSource interface {
	Vectors(ctx context.Context) ([]models.StateVector, error)
}

// Options configures a Builder.
type Options struct {
	Locator   Locator      // nil: always use Reference
	Fetcher   StateFetcher // nil: always use Fallback
	Fallback  VectorSource
	Enricher  *Enricher
	Reference geo.Latlong
	RadiusKm  float64
	DumpPath  string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Builder assembles snapshots.
type Builder struct {
	opts Options
}

// NewBuilder validates opts and returns a Builder.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Fetcher == nil && opts.Fallback == nil {
		return nil, fmt.Errorf("pipeline: no record source configured")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Enricher == nil {
		opts.Enricher = NewEnricher(nil, nil, opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{opts: opts}, nil
}

// Build runs one full pass: locate, fetch (falling back to the file
// source), dump, cleanup, enrich, customize.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	log := b.opts.Logger
	center := b.locate(ctx)

	vectors, source, err := b.vectors(ctx, &center)
	if err != nil {
		return nil, err
	}

	if b.opts.DumpPath != "" {
		if err := snapshot.WriteJSON(b.opts.DumpPath, vectors); err != nil {
			log.Warn("raw dump failed", "path", b.opts.DumpPath, "error", err)
		} else {
			log.Debug("raw vectors dumped", "path", b.opts.DumpPath, "count", len(vectors))
		}
	}

	records, dropped := Cleanup(vectors)
	log.Debug("cleanup complete", "kept", len(records), "dropped", dropped)

	enriched := b.opts.Enricher.Enrich(ctx, records)
	Customize(enriched, center)

	snap := &Snapshot{
		Records:  enriched,
		Center:   center,
		Source:   source,
		TakenAt:  b.opts.Now().UTC(),
		Received: len(vectors),
		Dropped:  dropped,
	}

	metrics.SnapshotBuilds.Inc()
	metrics.SnapshotRecords.Set(float64(len(enriched)))
	log.Info("snapshot built",
		"source", source,
		"records", len(enriched),
		"dropped", dropped,
		"lat", center.Lat,
		"lon", center.Long,
	)
	return snap, nil
}

func (b *Builder) locate(ctx context.Context) geo.Latlong {
	if b.opts.Locator == nil {
		return b.opts.Reference
	}
	pos, err := b.opts.Locator.Locate(ctx)
	if err != nil {
		b.opts.Logger.Warn("geolocation failed, using reference point", "error", err)
		return b.opts.Reference
	}
	return pos
}

// vectors tries the live feed around *center and falls back to the file
// source, resetting *center to the reference point when it does.
func (b *Builder) vectors(ctx context.Context, center *geo.Latlong) ([]models.StateVector, Source, error) {
	if b.opts.Fetcher != nil {
		box := geodesy.BoundingBoxAround(*center, b.opts.RadiusKm)
		vectors, err := b.opts.Fetcher.FetchStates(ctx, box)
		switch {
		case err != nil:
			b.opts.Logger.Warn("live fetch failed, using fallback file", "error", err)
		case len(vectors) == 0:
			b.opts.Logger.Warn("live feed returned no vectors, using fallback file")
		default:
			return vectors, SourceLive, nil
		}
	}

	if b.opts.Fallback == nil {
		return nil, "", fmt.Errorf("live feed unavailable and no fallback configured")
	}

	*center = b.opts.Reference
	vectors, err := b.opts.Fallback.Vectors(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("loading fallback vectors: %w", err)
	}
	return vectors, SourceFile, nil
}
