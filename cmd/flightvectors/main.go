package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/skypies/geo"

	"github.com/yash/flightvectors/internal/analysis"
	"github.com/yash/flightvectors/internal/cache"
	"github.com/yash/flightvectors/internal/config"
	"github.com/yash/flightvectors/internal/ingestion"
	"github.com/yash/flightvectors/internal/logging"
	"github.com/yash/flightvectors/internal/pipeline"
	"github.com/yash/flightvectors/internal/report"
	"github.com/yash/flightvectors/internal/server"
	"github.com/yash/flightvectors/internal/snapshot"
	"github.com/yash/flightvectors/internal/sphere"
)

const usage = `usage: flightvectors <command> [flags]

commands:
  analyze   analyze a record file (default vectors.json)
  live      fetch live state vectors around this host, enrich and analyze
  serve     serve the HTTP API over a refreshed snapshot
  sphere    print the properties of a sphere
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg := config.Load()
	logger := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)

	var err error
	switch args[0] {
	case "analyze":
		err = runAnalyze(ctx, cfg, args[1:], stdout, stderr)
	case "live":
		err = runLive(ctx, cfg, args[1:], stdout, stderr)
	case "serve":
		err = runServe(ctx, cfg, args[1:], stderr)
	case "sphere":
		err = runSphere(args[1:], stdin, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		logger.Error(args[0]+" failed", "error", err)
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Flags shared by snapshot commands
// ---------------------------------------------------------------------------

func bindSnapshotFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.VectorsFile, "file", cfg.VectorsFile, "record file (.json or .json.zst)")
	fs.Float64Var(&cfg.Reference.Lat, "lat", cfg.Reference.Lat, "reference latitude")
	fs.Float64Var(&cfg.Reference.Long, "lon", cfg.Reference.Long, "reference longitude")
	fs.Float64Var(&cfg.RadiusKm, "radius", cfg.RadiusKm, "search radius in km")
	fs.StringVar(&cfg.DumpRaw, "dump", cfg.DumpRaw, "write raw vectors to this path")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address for the metadata cache")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
}

func parseFlags(fs *flag.FlagSet, cfg *config.Config, args []string, stderr io.Writer) (*slog.Logger, error) {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return logging.New(stderr, cfg.LogLevel, cfg.LogFormat), nil
}

// ---------------------------------------------------------------------------
// Component wiring
// ---------------------------------------------------------------------------

func newOpenSkyClient(cfg config.Config, logger *slog.Logger) *ingestion.Client {
	// Try loading credentials.json if OAuth2 env vars are not set
	if cfg.OpenSkyClientID == "" || cfg.OpenSkyClientSecret == "" {
		if creds, err := ingestion.LoadCredentials(cfg.CredentialsFile); err == nil {
			cfg.OpenSkyClientID = creds.ClientID
			cfg.OpenSkyClientSecret = creds.ClientSecret
			logger.Info("loaded OAuth2 credentials", "file", cfg.CredentialsFile, "client_id", creds.ClientID)
		}
	}

	opts := []ingestion.ClientOption{
		ingestion.WithBaseURL(cfg.OpenSkyBaseURL),
		ingestion.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	}
	switch {
	case cfg.OpenSkyClientID != "" && cfg.OpenSkyClientSecret != "":
		logger.Info("OpenSky auth: OAuth2 client credentials", "client_id", cfg.OpenSkyClientID)
		opts = append(opts, ingestion.WithClientCredentials(cfg.OpenSkyClientID, cfg.OpenSkyClientSecret))
	case cfg.OpenSkyUsername != "" && cfg.OpenSkyPassword != "":
		logger.Info("OpenSky auth: basic", "username", cfg.OpenSkyUsername)
		opts = append(opts, ingestion.WithCredentials(cfg.OpenSkyUsername, cfg.OpenSkyPassword))
	default:
		logger.Info("OpenSky auth: anonymous")
	}
	return ingestion.NewClient(opts...)
}

// newCache returns a Redis store when configured and reachable, otherwise an
// in-memory one. The returned func releases it.
func newCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.Store, func()) {
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		r, err := cache.NewRedis(pingCtx, cfg.RedisAddr, cfg.CacheTTL)
		if err == nil {
			logger.Info("metadata cache: redis", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
			return r, func() { r.Close() }
		}
		logger.Warn("redis unavailable, using in-memory cache", "error", err)
	}
	mem := cache.NewMemory(cfg.CacheTTL)
	go mem.Run(ctx)
	logger.Info("metadata cache: memory", "ttl", cfg.CacheTTL)
	return mem, func() {}
}

// newBuilder wires a pipeline. live=false reads only the record file and
// skips enrichment.
func newBuilder(ctx context.Context, cfg config.Config, logger *slog.Logger, live bool) (*pipeline.Builder, func(), error) {
	opts := pipeline.Options{
		Fallback:  snapshot.FileSource{Path: cfg.VectorsFile},
		Reference: cfg.Reference,
		RadiusKm:  cfg.RadiusKm,
		DumpPath:  cfg.DumpRaw,
		Logger:    logger,
	}
	release := func() {}

	if live {
		client := newOpenSkyClient(cfg, logger)
		store, closeCache := newCache(ctx, cfg, logger)
		release = closeCache

		opts.Locator = ingestion.NewGeolocator(cfg.GeolocateURL)
		opts.Fetcher = client
		opts.Enricher = pipeline.NewEnricher(client, store, logger)
	}

	b, err := pipeline.NewBuilder(opts)
	if err != nil {
		release()
		return nil, nil, err
	}
	return b, release, nil
}

func printReport(w io.Writer, snap *pipeline.Snapshot, refName string) error {
	s, err := analysis.Summarize(snap.Flights(), snap.Center.Lat, snap.Center.Long)
	if err != nil {
		return err
	}
	return report.Render(w, s, report.Options{
		ReferenceName: refName,
		Aircraft:      report.AircraftIndex(snap.Records),
	})
}

func referenceName(cfg config.Config, center geo.Latlong) string {
	if center == config.ERAU {
		return "ERAU"
	}
	if center == cfg.Reference {
		return "the reference point"
	}
	return fmt.Sprintf("(%.4f, %.4f)", center.Lat, center.Long)
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func runAnalyze(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	bindSnapshotFlags(fs, &cfg)
	logger, err := parseFlags(fs, &cfg, args, stderr)
	if err != nil {
		return err
	}

	b, release, err := newBuilder(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer release()

	snap, err := b.Build(ctx)
	if err != nil {
		return err
	}
	return printReport(stdout, snap, referenceName(cfg, snap.Center))
}

func runLive(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("live", flag.ContinueOnError)
	bindSnapshotFlags(fs, &cfg)
	out := fs.String("out", "", "write the enriched snapshot to this path (.json or .json.zst)")
	logger, err := parseFlags(fs, &cfg, args, stderr)
	if err != nil {
		return err
	}

	b, release, err := newBuilder(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer release()

	snap, err := b.Build(ctx)
	if err != nil {
		return err
	}

	if *out != "" {
		if err := snapshot.WriteJSON(*out, snap); err != nil {
			return err
		}
		logger.Info("snapshot written", "path", *out, "records", len(snap.Records))
	}
	return printReport(stdout, snap, referenceName(cfg, snap.Center))
}

func runServe(ctx context.Context, cfg config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	bindSnapshotFlags(fs, &cfg)
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address")
	fs.IntVar(&cfg.HTTPPort, "port", cfg.HTTPPort, "listen port")
	offline := fs.Bool("offline", false, "serve the record file only, without the live feed")
	interval := fs.Duration("refresh", 0, "rebuild the snapshot on this interval (0 disables)")
	logger, err := parseFlags(fs, &cfg, args, stderr)
	if err != nil {
		return err
	}

	b, release, err := newBuilder(ctx, cfg, logger, !*offline)
	if err != nil {
		return err
	}
	defer release()

	srv := server.New(b, logger)
	if _, err := srv.Refresh(ctx); err != nil {
		logger.Warn("initial snapshot failed; serving without data", "error", err)
	}

	if *interval > 0 {
		go refreshLoop(ctx, srv, *interval, logger)
	}

	return srv.Run(ctx, cfg.Addr())
}

func refreshLoop(ctx context.Context, srv *server.Server, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := srv.Refresh(ctx); err != nil {
				logger.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}

func runSphere(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("sphere", flag.ContinueOnError)
	radius := fs.String("radius", "", "sphere radius")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := *radius
	if raw == "" && fs.NArg() > 0 {
		raw = fs.Arg(0)
	}
	if raw == "" {
		fmt.Fprint(stdout, "Enter the radius: ")
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading radius: %w", err)
		}
		raw = line
	}

	r, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid radius %q", strings.TrimSpace(raw))
	}
	props, err := sphere.Compute(r)
	if err != nil {
		return err
	}
	return sphere.Write(stdout, props)
}
