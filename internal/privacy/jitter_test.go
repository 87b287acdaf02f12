package privacy

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufobeep/beepnet/internal/geo"
)

func TestApply_WithinMaxRadius(t *testing.T) {
	cfg := DefaultConfig()
	rng := rand.New(rand.NewPCG(1, 2))

	lat, lon := 47.6205, -122.3493
	jLat, jLon, err := Apply(cfg, lat, lon, rng)
	require.NoError(t, err)

	d, err := geo.DistanceKM(lat, lon, jLat, jLon)
	require.NoError(t, err)
	assert.LessOrEqual(t, d*1000, cfg.MaxMeters+1)
}

func TestApply_AtLeastMinRadius(t *testing.T) {
	cfg := DefaultConfig()
	for seed := uint64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed+1))
		lat, lon := 10.0, 20.0
		jLat, jLon, err := Apply(cfg, lat, lon, rng)
		require.NoError(t, err)
		d, err := geo.DistanceKM(lat, lon, jLat, jLon)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, d*1000, cfg.MinMeters-1)
	}
}

func TestApply_DeterministicWithSeed(t *testing.T) {
	cfg := DefaultConfig()
	rng1 := rand.New(rand.NewPCG(42, 42))
	rng2 := rand.New(rand.NewPCG(42, 42))

	lat1, lon1, err := Apply(cfg, 1, 1, rng1)
	require.NoError(t, err)
	lat2, lon2, err := Apply(cfg, 1, 1, rng2)
	require.NoError(t, err)

	assert.Equal(t, lat1, lat2)
	assert.Equal(t, lon1, lon2)
}

func TestApply_ClampsLatitude(t *testing.T) {
	cfg := Config{MinMeters: 100, MaxMeters: 300}
	rng := rand.New(rand.NewPCG(7, 7))
	jLat, _, err := Apply(cfg, 89.9999, 0, rng)
	require.NoError(t, err)
	assert.LessOrEqual(t, jLat, 90.0)
}

func TestApply_RejectsInvalidInput(t *testing.T) {
	cfg := DefaultConfig()
	_, _, err := Apply(cfg, 200, 0, nil)
	require.Error(t, err)
}
