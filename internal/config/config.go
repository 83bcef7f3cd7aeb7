// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/skypies/geo"
)

// ERAU is the Embry-Riddle Prescott campus, the default reference point.
var ERAU = geo.Latlong{Lat: 34.61449, Long: -112.44597}

// Config holds application configuration.
type Config struct {
	// Server
	HTTPAddr string
	HTTPPort int

	// OpenSky API - OAuth2 (preferred)
	OpenSkyBaseURL      string
	OpenSkyClientID     string
	OpenSkyClientSecret string

	// OpenSky API - Basic Auth (legacy)
	OpenSkyUsername string
	OpenSkyPassword string

	// Path to credentials.json (optional)
	CredentialsFile string

	// Geolocation service returning "lat,lon"
	GeolocateURL string

	// Search area and fallback data
	RadiusKm    float64
	Reference   geo.Latlong
	VectorsFile string
	DumpRaw     string

	// Aircraft metadata cache; empty RedisAddr selects the in-memory cache
	RedisAddr string
	CacheTTL  time.Duration

	RequestTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables, falling back to
// defaults for anything unset or unparsable.
func Load() Config {
	return Config{
		HTTPAddr:            getEnv("HTTP_ADDR", "0.0.0.0"),
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		OpenSkyBaseURL:      getEnv("OPENSKY_BASE_URL", "https://opensky-network.org/api"),
		OpenSkyClientID:     getEnv("OPENSKY_CLIENT_ID", ""),
		OpenSkyClientSecret: getEnv("OPENSKY_CLIENT_SECRET", ""),
		OpenSkyUsername:     getEnv("OPENSKY_USERNAME", ""),
		OpenSkyPassword:     getEnv("OPENSKY_PASSWORD", ""),
		CredentialsFile:     getEnv("CREDENTIALS_FILE", "credentials.json"),
		GeolocateURL:        getEnv("GEOLOCATE_URL", "https://ipinfo.io/loc"),
		RadiusKm:            getEnvFloat("SEARCH_RADIUS_KM", 100),
		Reference: geo.Latlong{
			Lat:  getEnvFloat("REFERENCE_LAT", ERAU.Lat),
			Long: getEnvFloat("REFERENCE_LON", ERAU.Long),
		},
		VectorsFile:    getEnv("VECTORS_FILE", "vectors.json"),
		DumpRaw:        getEnv("DUMP_RAW", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		CacheTTL:       getEnvDuration("CACHE_TTL", 24*time.Hour),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}
}

// Validate rejects settings the pipeline cannot work with.
func (c Config) Validate() error {
	if math.IsNaN(c.Reference.Lat) || c.Reference.Lat < -90 || c.Reference.Lat > 90 {
		return fmt.Errorf("reference latitude %v out of range", c.Reference.Lat)
	}
	if math.IsNaN(c.Reference.Long) || c.Reference.Long < -180 || c.Reference.Long > 180 {
		return fmt.Errorf("reference longitude %v out of range", c.Reference.Long)
	}
	if math.IsNaN(c.RadiusKm) || math.IsInf(c.RadiusKm, 0) || c.RadiusKm <= 0 {
		return fmt.Errorf("search radius must be positive, got %v", c.RadiusKm)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port %d", c.HTTPPort)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPAddr, c.HTTPPort)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
