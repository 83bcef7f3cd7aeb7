package metrics

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Prometheus-compatible Metrics Registry
// ---------------------------------------------------------------------------

// Registry holds application metrics keyed by name.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram

	startTime time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Counter),
		gauges:    make(map[string]*Gauge),
		histos:    make(map[string]*Histogram),
		startTime: time.Now(),
	}
}

// Counter returns or creates a counter metric.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	return c
}

// Gauge returns or creates a gauge metric.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, help: help}
	r.gauges[name] = g
	return g
}

// Histogram returns or creates a histogram metric.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.histos[name]; ok {
		return h
	}
	h := NewHistogram(name, help, buckets)
	r.histos[name] = h
	return h
}

// Export renders every metric in Prometheus text format, sorted by name.
func (r *Registry) Export() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder

	writeHeader(&b, "go_goroutines", "Number of goroutines.", "gauge")
	fmt.Fprintf(&b, "go_goroutines %d\n", runtime.NumGoroutine())

	writeHeader(&b, "process_uptime_seconds", "Time since process start.", "gauge")
	fmt.Fprintf(&b, "process_uptime_seconds %f\n", time.Since(r.startTime).Seconds())

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		writeHeader(&b, c.name, c.help, "counter")
		fmt.Fprintf(&b, "%s %d\n", c.name, c.Value())
	}

	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		writeHeader(&b, g.name, g.help, "gauge")
		fmt.Fprintf(&b, "%s %g\n", g.name, g.Get())
	}

	for _, name := range sortedKeys(r.histos) {
		r.histos[name].export(&b)
	}

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// Counter
// ---------------------------------------------------------------------------

// Counter is a monotonically increasing metric.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds v to the counter.
func (c *Counter) Add(v int64) {
	c.value.Add(v)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// ---------------------------------------------------------------------------
// Gauge
// ---------------------------------------------------------------------------

// Gauge is a metric that can go up and down.
type Gauge struct {
	name string
	help string
	bits atomic.Uint64
}

// Set sets the gauge to v.
func (g *Gauge) Set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

// Add adds v to the gauge.
func (g *Gauge) Add(v float64) {
	for {
		old := g.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if g.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.Add(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.Add(-1) }

// Get returns the current gauge value.
func (g *Gauge) Get() float64 {
	return math.Float64frombits(g.bits.Load())
}

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

// Histogram tracks a value distribution over fixed cumulative buckets.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	counts  []atomic.Int64
	sumBits atomic.Uint64
	count   atomic.Int64
}

// NewHistogram creates a histogram with the given upper bounds.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	return &Histogram{
		name:    name,
		help:    help,
		buckets: buckets,
		counts:  make([]atomic.Int64, len(buckets)),
	}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i].Add(1)
		}
	}
	for {
		old := h.sumBits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if h.sumBits.CompareAndSwap(old, next) {
			break
		}
	}
	h.count.Add(1)
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	return h.count.Load()
}

// Since observes the seconds elapsed since start.
func (h *Histogram) Since(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

func (h *Histogram) export(b *strings.Builder) {
	writeHeader(b, h.name, h.help, "histogram")
	for i, bound := range h.buckets {
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"} %d\n", h.name, bound, h.counts[i].Load())
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count.Load())
	fmt.Fprintf(b, "%s_sum %g\n", h.name, math.Float64frombits(h.sumBits.Load()))
	fmt.Fprintf(b, "%s_count %d\n", h.name, h.count.Load())
}

// ---------------------------------------------------------------------------
// Default Registry
// ---------------------------------------------------------------------------

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

var (
	// Record sources
	FetchRequests   = defaultRegistry.Counter("flightvectors_fetch_requests_total", "State vector fetches against the live feed")
	FetchErrors     = defaultRegistry.Counter("flightvectors_fetch_errors_total", "Failed state vector fetches")
	FetchLatency    = defaultRegistry.Histogram("flightvectors_fetch_latency_seconds", "Live feed request latency", []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10})
	FileLoads       = defaultRegistry.Counter("flightvectors_file_loads_total", "Record files read")
	RecordsReceived = defaultRegistry.Counter("flightvectors_records_received_total", "Raw state vectors received from any source")
	RecordsDropped  = defaultRegistry.Counter("flightvectors_records_dropped_total", "State vectors dropped for missing fields")

	// Enrichment
	LookupRequests = defaultRegistry.Counter("flightvectors_lookup_requests_total", "Aircraft metadata lookups")
	LookupFailures = defaultRegistry.Counter("flightvectors_lookup_failures_total", "Aircraft metadata lookups that fell back to unknown")
	CacheHits      = defaultRegistry.Counter("flightvectors_cache_hits_total", "Aircraft metadata cache hits")
	CacheMisses    = defaultRegistry.Counter("flightvectors_cache_misses_total", "Aircraft metadata cache misses")

	// Snapshot and queries
	SnapshotRecords = defaultRegistry.Gauge("flightvectors_snapshot_records", "Records in the current snapshot")
	SnapshotBuilds  = defaultRegistry.Counter("flightvectors_snapshot_builds_total", "Snapshots built")
	QueryRequests   = defaultRegistry.Counter("flightvectors_query_requests_total", "Analyzer queries served")
	QueryErrors     = defaultRegistry.Counter("flightvectors_query_errors_total", "Analyzer queries that failed")

	// HTTP
	HTTPRequests      = defaultRegistry.Counter("flightvectors_http_requests_total", "Total HTTP requests")
	HTTPLatency       = defaultRegistry.Histogram("flightvectors_http_latency_seconds", "HTTP request latency", []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1})
	ActiveConnections = defaultRegistry.Gauge("flightvectors_active_connections", "In-flight HTTP requests")
)
