package aircraft

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufobeep/beepnet/internal/geo"
)

type fakeFetcher struct {
	states []AircraftState
	err    error
}

func (f *fakeFetcher) StatesInBBox(ctx context.Context, box geo.Box, quantizedUnixTime int64) ([]AircraftState, error) {
	return f.states, f.err
}

// TestMatch_PerfectAlignment mirrors spec.md §8 seed scenario (d): an
// observer whose sensor pose points exactly at an aircraft's computed
// bearing/elevation should match with near-zero angular error and high
// confidence.
func TestMatch_PerfectAlignment(t *testing.T) {
	observerLat, observerLon := 37.6213, -122.3790

	// Place the aircraft so its line-of-sight bearing/elevation from the
	// observer is (45.0, 30.0): walk ~20km along bearing 45 then set a
	// baro altitude that yields a 30-degree elevation at that distance.
	bearing := 45.0
	distanceKM := 20.0
	aircraftLat, aircraftLon := destinationPoint(observerLat, observerLon, bearing, distanceKM)
	altitudeM := distanceKM * 1000 * math.Tan(30*math.Pi/180) // elevation 30deg: rise = run * tan(30deg)

	fetcher := &fakeFetcher{states: []AircraftState{
		{ICAO24: "abc123", Callsign: "TEST123", Lat: aircraftLat, Lon: aircraftLon, BaroAltitude: altitudeM, VelocityMS: 230},
	}}

	m := New(DefaultConfig(), fetcher)
	result, err := m.Match(context.Background(), SensorPose{
		Timestamp:  time.Now(),
		Lat:        observerLat,
		Lon:        observerLon,
		AzimuthDeg: 45.0,
		PitchDeg:   30.0,
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsPlane)
	require.NotNil(t, result.Matched)
	assert.Equal(t, "TEST123", result.Matched.Callsign)
	assert.Less(t, result.Matched.AngularErrorDeg, 0.5)
	assert.Greater(t, result.Confidence, 0.8)
}

func TestMatch_NoAircraftInArea(t *testing.T) {
	m := New(DefaultConfig(), &fakeFetcher{states: nil})
	result, err := m.Match(context.Background(), SensorPose{
		Timestamp: time.Now(), Lat: 39.5, Lon: -119.8, AzimuthDeg: 90, PitchDeg: 45,
	})
	require.NoError(t, err)
	assert.False(t, result.IsPlane)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Contains(t, result.Reason, "no aircraft found")
}

func TestMatch_NoCandidateWithinTolerance(t *testing.T) {
	fetcher := &fakeFetcher{states: []AircraftState{
		{ICAO24: "xyz", Callsign: "FAR1", Lat: 10, Lon: 10, BaroAltitude: 9000},
	}}
	m := New(DefaultConfig(), fetcher)
	result, err := m.Match(context.Background(), SensorPose{
		Timestamp: time.Now(), Lat: 37.6, Lon: -122.4, AzimuthDeg: 0, PitchDeg: 0,
	})
	require.NoError(t, err)
	assert.False(t, result.IsPlane)
	assert.Contains(t, result.Reason, "tolerance")
}

func TestMatch_RadiusCappedAtHardLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RadiusKM = 200
	m := New(cfg, &fakeFetcher{states: nil})
	if m.cfg.RadiusKM != 200 {
		t.Fatalf("configured radius should be preserved, capping happens at Match time")
	}
	result, err := m.Match(context.Background(), SensorPose{Timestamp: time.Now(), Lat: 1, Lon: 1, AzimuthDeg: 0, PitchDeg: 0})
	require.NoError(t, err)
	assert.Contains(t, result.Reason, "within 80km radius")
}

func TestComputeConfidence_Thresholds(t *testing.T) {
	tests := []struct {
		name       string
		distanceKM float64
		altitudeM  float64
		wantAbove  float64
		wantBelow  float64
	}{
		{"very close penalised", 0.5, 5000, 0.0, 0.6},
		{"optimal range", 20, 8000, 0.9, 1.01},
		{"far still good", 70, 8000, 0.8, 1.0},
		{"low altitude penalised", 20, 500, 0.0, 0.8},
		{"very high altitude", 20, 15000, 0.8, 1.0},
	}
	for _, tt := range tests {
		got := computeConfidence(0, 2.5, tt.distanceKM, tt.altitudeM)
		assert.GreaterOrEqual(t, got, tt.wantAbove, tt.name)
		assert.LessOrEqual(t, got, tt.wantBelow, tt.name)
	}
}

func TestQuantizeTimestamp_RoundsDownToBucket(t *testing.T) {
	ts := time.Date(2026, 1, 21, 10, 0, 7, 0, time.UTC)
	got := quantizeTimestamp(ts, 5)
	want := time.Date(2026, 1, 21, 10, 0, 5, 0, time.UTC).Unix()
	assert.Equal(t, want, got)
}

func TestLineOfSight_ElevationSignMatchesAltitudeDiff(t *testing.T) {
	bearing, elevation, distanceKM, err := lineOfSight(37.6, -122.4, 0, 37.7, -122.4, 10000)
	require.NoError(t, err)
	assert.Greater(t, elevation, 0.0)
	assert.Greater(t, distanceKM, 0.0)
	assert.GreaterOrEqual(t, bearing, 0.0)
	assert.Less(t, bearing, 360.0)
}

// destinationPoint walks distanceKM along bearingDeg from (lat,lon) using the
// direct geodesic formula, for building synthetic fixture aircraft positions.
func destinationPoint(lat, lon, bearingDeg, distanceKM float64) (float64, float64) {
	const earthRadiusKM = 6371.0
	lat1 := lat * math.Pi / 180
	lon1 := lon * math.Pi / 180
	brng := bearingDeg * math.Pi / 180
	dOverR := distanceKM / earthRadiusKM

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(dOverR) + math.Cos(lat1)*math.Sin(dOverR)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(dOverR)*math.Cos(lat1), math.Cos(dOverR)-math.Sin(lat1)*math.Sin(lat2))

	return lat2 * 180 / math.Pi, lon2 * 180 / math.Pi
}
