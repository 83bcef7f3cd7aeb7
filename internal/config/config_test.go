package config

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, ERAU, cfg.Reference)
	assert.Equal(t, 100.0, cfg.RadiusKm)
	assert.Equal(t, "vectors.json", cfg.VectorsFile)
	assert.Equal(t, "https://ipinfo.io/loc", cfg.GeolocateURL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REFERENCE_LAT", "49.1967")
	t.Setenv("REFERENCE_LON", "-123.1815")
	t.Setenv("SEARCH_RADIUS_KM", "250.5")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CACHE_TTL", "90m")
	t.Setenv("OPENSKY_USERNAME", "pilot")

	cfg := Load()
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.InDelta(t, 49.1967, cfg.Reference.Lat, 1e-9)
	assert.InDelta(t, -123.1815, cfg.Reference.Long, 1e-9)
	assert.Equal(t, 250.5, cfg.RadiusKm)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 90*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "pilot", cfg.OpenSkyUsername)
}

func TestLoadIgnoresMalformed(t *testing.T) {
	t.Setenv("HTTP_PORT", "eighty")
	t.Setenv("SEARCH_RADIUS_KM", "far")
	t.Setenv("CACHE_TTL", "forever")

	cfg := Load()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 100.0, cfg.RadiusKm)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Reference.Lat = 91
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Reference.Long = -181
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.RadiusKm = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.HTTPPort = 70000
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Load().Validate())
}

func TestValidateRejectsNonFinite(t *testing.T) {
	cases := map[string]func(*Config){
		"lat NaN":    func(c *Config) { c.Reference.Lat = math.NaN() },
		"lon NaN":    func(c *Config) { c.Reference.Long = math.NaN() },
		"radius NaN": func(c *Config) { c.RadiusKm = math.NaN() },
		"radius Inf": func(c *Config) { c.RadiusKm = math.Inf(1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Load()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsNaNReference(t *testing.T) {
	t.Setenv("REFERENCE_LAT", "NaN")
	assert.Error(t, Load().Validate())
}
