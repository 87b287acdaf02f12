package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKM_SeedScenarioA(t *testing.T) {
	d, err := DistanceKM(47.6110, -122.3310, 47.6213, -122.3790)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, d, 0.3)
}

func TestBearingDeg_SeedScenarioA(t *testing.T) {
	b, err := BearingDeg(47.6110, -122.3310, 47.6213, -122.3790)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, b, 280.0)
}

func TestDistanceKM_InvalidInput(t *testing.T) {
	_, err := DistanceKM(95, 0, 0, 0)
	require.Error(t, err)
	var inputErr *InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestAngularSeparationDeg_Symmetric(t *testing.T) {
	a, err := AngularSeparationDeg(45, 30, 200, -10)
	require.NoError(t, err)
	b, err := AngularSeparationDeg(200, -10, 45, 30)
	require.NoError(t, err)
	assert.InDelta(t, a, b, 1e-6)
}

func TestAngularSeparationDeg_SamePoseIsZero(t *testing.T) {
	a, err := AngularSeparationDeg(10, 20, 10, 20)
	require.NoError(t, err)
	assert.InDelta(t, 0, a, 1e-9)
}

func TestAngularSeparationDeg_OppositeIs180(t *testing.T) {
	a, err := AngularSeparationDeg(0, 0, 180, 0)
	require.NoError(t, err)
	assert.InDelta(t, 180, a, 1e-6)
}

func TestBBox_ContainsRadius(t *testing.T) {
	box, err := BBox(47.6, -122.3, 10)
	require.NoError(t, err)
	assert.Less(t, box.MinLat, 47.6)
	assert.Greater(t, box.MaxLat, 47.6)
	assert.Less(t, box.MinLon, -122.3)
	assert.Greater(t, box.MaxLon, -122.3)

	// A point at the box's max-lat edge should be roughly radiusKM away.
	d, err := DistanceKM(47.6, -122.3, box.MaxLat, -122.3)
	require.NoError(t, err)
	assert.InDelta(t, 10, d, 0.5)
}

func TestNormalizeAzimuth(t *testing.T) {
	assert.InDelta(t, 10.0, NormalizeAzimuth(370), 1e-9)
	assert.InDelta(t, 350.0, NormalizeAzimuth(-10), 1e-9)
	assert.InDelta(t, 0.0, NormalizeAzimuth(360), 1e-9)
}

func TestGeohashEncode_Deterministic(t *testing.T) {
	h1 := Encode(47.6205, -122.3493, 7)
	h2 := Encode(47.6205, -122.3493, 7)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 7)
}

func TestGeohashNeighbors_IncludesSelf(t *testing.T) {
	self := Encode(47.6205, -122.3493, 6)
	neighbors := Neighbors(47.6205, -122.3493, 6)
	assert.Contains(t, neighbors, self)
}

func TestDistanceKM_ZeroForSamePoint(t *testing.T) {
	d, err := DistanceKM(10, 10, 10, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestBearingDeg_NorthIsZero(t *testing.T) {
	b, err := BearingDeg(0, 0, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, b, 1e-6)
}

func TestBearingDeg_EastIsNinety(t *testing.T) {
	b, err := BearingDeg(0, 0, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 90, b, 1e-6)
}

func TestValidateElevation(t *testing.T) {
	require.NoError(t, ValidateElevation(45))
	require.Error(t, ValidateElevation(91))
	require.Error(t, ValidateElevation(-91))
}

func TestAngularSeparation_FarApartLargerThanClose(t *testing.T) {
	close_, err := AngularSeparationDeg(45, 30, 46, 30)
	require.NoError(t, err)
	far, err := AngularSeparationDeg(45, 30, 90, 30)
	require.NoError(t, err)
	assert.True(t, far > close_)
	assert.False(t, math.IsNaN(far))
}
