package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yash/flightvectors/internal/snapshot"
)

const vectorsJSON = `[
  {"icao24": "a00001", "callsign": "LOW1    ", "longitude": -112.40, "latitude": 34.50,
   "velocity": 60.0, "vertical_rate": 1.5, "geo_altitude": 300.0, "on_ground": false},
  {"icao24": "a00002", "callsign": "HIGH2   ", "longitude": -111.65, "latitude": 35.20,
   "velocity": 230.0, "vertical_rate": -12.25, "geo_altitude": 11000.0, "on_ground": false},
  {"icao24": "a00003", "callsign": "UP3     ", "longitude": -112.07, "latitude": 33.45,
   "velocity": 140.0, "vertical_rate": 18.0, "geo_altitude": 4000.0, "on_ground": false},
  {"icao24": "a00004", "callsign": null, "longitude": -112.45, "latitude": 34.61,
   "velocity": 0.0, "vertical_rate": null, "geo_altitude": null, "on_ground": true}
]`

func runCmd(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeVectors(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if strings.HasSuffix(name, snapshot.ZstdExt) {
		data, err := snapshot.CompressBytes([]byte(vectorsJSON))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o644))
	} else {
		require.NoError(t, os.WriteFile(path, []byte(vectorsJSON), 0o644))
	}
	return path
}

func TestAnalyze(t *testing.T) {
	for _, name := range []string{"vectors.json", "vectors.json.zst"} {
		t.Run(name, func(t *testing.T) {
			code, out, errOut := runCmd(t, "", "analyze", "-file", writeVectors(t, name))
			require.Equal(t, 0, code, errOut)

			want := "Flight Vector Analysis (3 aircraft):\n" +
				"Lowest flying plane: LOW1 at 300 meters\n" +
				"Highest flying plane: HIGH2 at 11000 meters\n" +
				"Fastest descender: HIGH2 at a rate of -12.25 meters/second\n" +
				"Fastest climber: UP3 at a rate of 18 meters/second\n" +
				"Closest to ERAU: LOW1 about 13 km away\n"
			assert.Equal(t, want, out)
		})
	}
}

func TestAnalyzeDumpsRawVectors(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "raw.json")
	code, _, errOut := runCmd(t, "", "analyze", "-file", writeVectors(t, "vectors.json"), "-dump", dump)
	require.Equal(t, 0, code, errOut)

	raw, err := snapshot.ReadVectors(dump)
	require.NoError(t, err)
	assert.Len(t, raw, 4)
}

func TestAnalyzeCustomReference(t *testing.T) {
	code, out, errOut := runCmd(t, "", "analyze",
		"-file", writeVectors(t, "vectors.json"), "-lat", "35.1983", "-lon", "-111.6513")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Closest to the reference point: HIGH2 about 0 km away")
}

func TestAnalyzeErrors(t *testing.T) {
	code, _, _ := runCmd(t, "", "analyze", "-file", filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, 1, code)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0o644))
	code, _, _ = runCmd(t, "", "analyze", "-file", empty)
	assert.Equal(t, 1, code, "no eligible records is an error")

	code, _, _ = runCmd(t, "", "analyze", "-radius", "-5")
	assert.Equal(t, 1, code)

	code, out, _ := runCmd(t, "", "analyze", "-file", writeVectors(t, "vectors.json"), "-lat", "NaN")
	assert.Equal(t, 1, code)
	assert.NotContains(t, out, "NaN km")
}

func TestSphere(t *testing.T) {
	want := "Diameter is 2.00\nCircumference is 6.28\nSurface area is 12.57\nVolume is 4.19\n"

	code, out, _ := runCmd(t, "", "sphere", "1")
	require.Equal(t, 0, code)
	assert.Equal(t, want, out)

	code, out, _ = runCmd(t, "", "sphere", "-radius", "1")
	require.Equal(t, 0, code)
	assert.Equal(t, want, out)

	code, out, _ = runCmd(t, "1\n", "sphere")
	require.Equal(t, 0, code)
	assert.Equal(t, "Enter the radius: "+want, out)
}

func TestSphereInvalid(t *testing.T) {
	for _, arg := range []string{"abc", "-1", "NaN"} {
		code, _, _ := runCmd(t, "", "sphere", "--", arg)
		assert.Equal(t, 1, code, "radius %q", arg)
	}

	code, _, _ := runCmd(t, "", "sphere")
	assert.Equal(t, 1, code, "no radius on stdin")
}

func TestUsage(t *testing.T) {
	code, _, errOut := runCmd(t, "")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: flightvectors")

	code, _, errOut = runCmd(t, "", "fly")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "fly"`)

	code, out, _ := runCmd(t, "", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "sphere")
}
