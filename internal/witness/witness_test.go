package witness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufobeep/beepnet/internal/beeperr"
	"github.com/ufobeep/beepnet/internal/model"
	"github.com/ufobeep/beepnet/internal/rategate"
	"github.com/ufobeep/beepnet/internal/store/memstore"
)

func f64(v float64) *float64 { return &v }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newSighting(t *testing.T, gw *memstore.Store, createdAt time.Time, lat, lon float64) *model.Sighting {
	t.Helper()
	s := &model.Sighting{
		CreatedAt:  createdAt,
		SensorData: model.SensorData{Location: model.Location{Lat: lat, Lon: lon}},
	}
	id, err := gw.CreateSighting(context.Background(), s)
	require.NoError(t, err)
	s.ID = id
	return s
}

func TestValidateConfirmation_WindowClosed(t *testing.T) {
	gw := memstore.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sighting := newSighting(t, gw, now.Add(-2*time.Hour), 47.62, -122.33)

	a := New(DefaultConfig(), gw, nil, fixedClock{now: now})
	err := a.ValidateConfirmation(context.Background(), sighting, "dev1", nil, nil, 0)

	require.Error(t, err)
	assert.True(t, beeperr.Is(err, beeperr.KindWindowClosed))
}

func TestValidateConfirmation_DuplicateWitness(t *testing.T) {
	gw := memstore.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sighting := newSighting(t, gw, now, 47.62, -122.33)

	_, err := gw.AddWitness(context.Background(), &model.WitnessConfirmation{SightingID: sighting.ID, DeviceID: "dev1", ConfirmedAt: now})
	require.NoError(t, err)

	a := New(DefaultConfig(), gw, nil, fixedClock{now: now})
	err = a.ValidateConfirmation(context.Background(), sighting, "dev1", nil, nil, 0)

	require.Error(t, err)
	assert.True(t, beeperr.Is(err, beeperr.KindDuplicateWitness))
}

// TestValidateConfirmation_RateLimited mirrors spec.md §8 seed scenario (c): a
// device that has already used up its hourly confirmation allowance is
// rejected on its next attempt, regardless of which sighting it targets.
func TestValidateConfirmation_RateLimited(t *testing.T) {
	gw := memstore.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}
	gate := rategate.NewWitnessGate(5, clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, gate.Allow("dev1"))
	}

	sighting := newSighting(t, gw, now, 47.62, -122.33)
	a := New(DefaultConfig(), gw, gate, clock)
	err := a.ValidateConfirmation(context.Background(), sighting, "dev1", nil, nil, 0)

	require.Error(t, err)
	assert.True(t, beeperr.Is(err, beeperr.KindRateLimited))
}

func TestValidateConfirmation_OutOfRangeUsesDefaultLimit(t *testing.T) {
	gw := memstore.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sighting := newSighting(t, gw, now, 47.6213, -122.3790)

	// ~64km away, beyond the default 50km bound.
	witnessLat, witnessLon := 48.2, -122.3790

	a := New(DefaultConfig(), gw, nil, fixedClock{now: now})
	err := a.ValidateConfirmation(context.Background(), sighting, "dev1", &witnessLat, &witnessLon, 0)

	require.Error(t, err)
	assert.True(t, beeperr.Is(err, beeperr.KindOutOfRangeWitness))
}

// TestValidateConfirmation_VisibilityNarrowsDistanceGuard mirrors spec.md §8
// seed scenario (f): a reported visibility_km=5 narrows the effective distance
// bound to 2x visibility = 10km, so a witness 15km away is rejected even
// though it would pass the 50km default.
func TestValidateConfirmation_VisibilityNarrowsDistanceGuard(t *testing.T) {
	gw := memstore.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sighting := newSighting(t, gw, now, 47.6213, -122.3790)

	witnessLat, witnessLon := 47.6213, -122.1790 // roughly 15km east

	a := New(DefaultConfig(), gw, nil, fixedClock{now: now})
	err := a.ValidateConfirmation(context.Background(), sighting, "dev1", &witnessLat, &witnessLon, 5)

	require.Error(t, err)
	var be *beeperr.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, beeperr.KindOutOfRangeWitness, be.Kind)
	assert.InDelta(t, 10.0, be.LimitKM, 0.01)
}

func TestValidateConfirmation_WithinRangePasses(t *testing.T) {
	gw := memstore.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sighting := newSighting(t, gw, now, 47.6213, -122.3790)

	witnessLat, witnessLon := 47.6213, -122.3657 // roughly 1km east

	a := New(DefaultConfig(), gw, nil, fixedClock{now: now})
	err := a.ValidateConfirmation(context.Background(), sighting, "dev1", &witnessLat, &witnessLon, 0)

	assert.NoError(t, err)
}

// TestAnalyze_TriangulationTwoWay mirrors spec.md §8 seed scenario (e): two
// witnesses at (0,0)/bearing 45° and (0.01,0)/bearing 135° should triangulate
// near (0.005, 0.005).
func TestAnalyze_TriangulationTwoWay(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	points := []WitnessPoint{
		{DeviceID: "a", Lat: 0.00, Lon: 0.00, BearingDeg: f64(45), Timestamp: now},
		{DeviceID: "b", Lat: 0.00, Lon: 0.01, BearingDeg: f64(135), Timestamp: now.Add(10 * time.Second)},
	}

	result := Analyze(points, now.Add(20*time.Second))

	require.NotNil(t, result.ObjectLat)
	require.NotNil(t, result.ObjectLon)
	assert.InDelta(t, 0.005, *result.ObjectLat, 0.01)
	assert.InDelta(t, 0.005, *result.ObjectLon, 0.01)
}

func TestAnalyze_InsufficientWitnesses(t *testing.T) {
	result := Analyze([]WitnessPoint{{DeviceID: "a", Lat: 0, Lon: 0, Timestamp: time.Now()}}, time.Now())
	assert.Equal(t, "insufficient", result.ConsensusQuality)
	assert.Nil(t, result.ObjectLat)
	assert.False(t, result.ShouldEscalate)
}

func TestAnalyze_MultiLineUsesCentroidOfPairwiseIntersections(t *testing.T) {
	now := time.Now()
	points := []WitnessPoint{
		{DeviceID: "a", Lat: 0.00, Lon: 0.00, BearingDeg: f64(45), Timestamp: now},
		{DeviceID: "b", Lat: 0.00, Lon: 0.01, BearingDeg: f64(135), Timestamp: now},
		{DeviceID: "c", Lat: 0.01, Lon: 0.00, BearingDeg: f64(90), Timestamp: now},
	}
	result := Analyze(points, now)
	require.NotNil(t, result.ObjectLat)
	assert.Equal(t, 3, result.WitnessCount)
}

func TestQualityRating_Thresholds(t *testing.T) {
	tests := []struct {
		confidence float64
		expected   string
	}{
		{0.9, "excellent"},
		{0.8, "excellent"},
		{0.7, "good"},
		{0.6, "good"},
		{0.4, "poor"},
		{0.3, "poor"},
		{0.1, "insufficient"},
	}
	for _, tt := range tests {
		if got := qualityRating(tt.confidence); got != tt.expected {
			t.Errorf("qualityRating(%v) = %s, expected %s", tt.confidence, got, tt.expected)
		}
	}
}

func TestAutoEscalate_ThreeRecentWithGoodConsensus(t *testing.T) {
	now := time.Now()
	points := []WitnessPoint{
		{Timestamp: now},
		{Timestamp: now.Add(-10 * time.Second)},
		{Timestamp: now.Add(-20 * time.Second)},
	}
	assert.True(t, autoEscalate(points, 0.6, now))
	assert.False(t, autoEscalate(points, 0.5, now))
}

func TestAutoEscalate_FiveTotalWitnessesRegardlessOfTiming(t *testing.T) {
	now := time.Now()
	old := now.Add(-time.Hour)
	points := make([]WitnessPoint, 5)
	for i := range points {
		points[i] = WitnessPoint{Timestamp: old}
	}
	assert.True(t, autoEscalate(points, 0.0, now))
}

func TestAutoEscalate_HighConfidenceWithThreeWitnesses(t *testing.T) {
	now := time.Now()
	old := now.Add(-time.Hour)
	points := []WitnessPoint{{Timestamp: old}, {Timestamp: old}, {Timestamp: old}}
	assert.True(t, autoEscalate(points, 0.8, now))
	assert.False(t, autoEscalate(points, 0.7, now))
}

func TestAngleDifference_WrapsAroundNorth(t *testing.T) {
	assert.InDelta(t, 10.0, angleDifference(5, 355), 0.001)
	assert.InDelta(t, 90.0, angleDifference(0, 90), 0.001)
}

func TestTemporalScore_DecaysOverAnHour(t *testing.T) {
	base := time.Now()
	points := []WitnessPoint{
		{Timestamp: base},
		{Timestamp: base.Add(30 * time.Minute)},
	}
	score := temporalScore(points)
	assert.InDelta(t, 0.5, score, 0.01)
}

func TestSpatialScore_ClampedAtOneKM(t *testing.T) {
	points := []WitnessPoint{
		{Lat: 0, Lon: 0},
		{Lat: 1, Lon: 0}, // ~111km apart, far beyond the 1km normalisation
	}
	assert.Equal(t, 1.0, spatialScore(points))
}
