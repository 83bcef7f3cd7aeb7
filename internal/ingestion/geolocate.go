package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/skypies/geo"
)

const defaultGeolocateURL = "https://ipinfo.io/loc"

// Geolocator finds the caller's approximate position from its public IP
// address. The endpoint answers with a plain "lat,lon" body.
type Geolocator struct {
	url        string
	httpClient *http.Client
}

// NewGeolocator creates a Geolocator for endpoint; empty selects ipinfo.io.
func NewGeolocator(endpoint string) *Geolocator {
	if endpoint == "" {
		endpoint = defaultGeolocateURL
	}
	return &Geolocator{
		url:        endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Locate returns the current position.
func (g *Geolocator) Locate(ctx context.Context) (geo.Latlong, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return geo.Latlong{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return geo.Latlong{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Latlong{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return geo.Latlong{}, fmt.Errorf("reading body: %w", err)
	}
	return ParseLatlong(string(body))
}

// ParseLatlong parses "lat,lon" in decimal degrees.
func ParseLatlong(s string) (geo.Latlong, error) {
	latStr, lonStr, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return geo.Latlong{}, fmt.Errorf("malformed location %q", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Latlong{}, fmt.Errorf("parsing latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return geo.Latlong{}, fmt.Errorf("parsing longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return geo.Latlong{}, fmt.Errorf("location %q out of range", s)
	}
	return geo.Latlong{Lat: lat, Long: lon}, nil
}
