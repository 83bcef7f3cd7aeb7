package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLatlong(t *testing.T) {
	pos, err := ParseLatlong("34.5400,-112.4685\n")
	require.NoError(t, err)
	assert.InDelta(t, 34.54, pos.Lat, 1e-9)
	assert.InDelta(t, -112.4685, pos.Long, 1e-9)

	for _, bad := range []string{"", "34.5", "north,west", "34.5,west", "95,10", "10,200"} {
		_, err := ParseLatlong(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestGeolocatorLocate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("49.2497,-123.1193\n"))
	}))
	defer srv.Close()

	pos, err := NewGeolocator(srv.URL).Locate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 49.2497, pos.Lat, 1e-9)
	assert.InDelta(t, -123.1193, pos.Long, 1e-9)
}

func TestGeolocatorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGeolocator(srv.URL).Locate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
