// Package privacy perturbs reported coordinates within a configured radius so
// that no publicly readable sighting ever exposes its reporter's true location.
package privacy

import (
	"math"
	"math/rand/v2"

	"github.com/ufobeep/beepnet/internal/geo"
)

// Config bounds the jitter disc radius, in metres.
type Config struct {
	MinMeters float64
	MaxMeters float64
}

// DefaultConfig matches the spec's default jitter_min_m/jitter_max_m.
func DefaultConfig() Config {
	return Config{MinMeters: 100, MaxMeters: 300}
}

const metersPerDegLat = 111_320.0

// Apply perturbs (lat, lon) by a point drawn uniformly from the annulus
// [cfg.MinMeters, cfg.MaxMeters], using rng for both the radius and the angle.
// Pass a *rand.Rand seeded deterministically in tests; pass nil in production to
// use the package-level (non-deterministic) source.
func Apply(cfg Config, lat, lon float64, rng *rand.Rand) (jitteredLat, jitteredLon float64, err error) {
	if err := geo.ValidateLatLon(lat, lon); err != nil {
		return 0, 0, err
	}

	randFloat := rand.Float64
	if rng != nil {
		randFloat = rng.Float64
	}

	// Uniform point in an annulus: sample r^2 uniformly between min^2 and max^2
	// so the resulting distribution is uniform over the disc area, not biased
	// toward the centre.
	minSq := cfg.MinMeters * cfg.MinMeters
	maxSq := cfg.MaxMeters * cfg.MaxMeters
	r := math.Sqrt(minSq + randFloat()*(maxSq-minSq))
	theta := randFloat() * 2 * math.Pi

	dNorth := r * math.Sin(theta)
	dEast := r * math.Cos(theta)

	latDelta := dNorth / metersPerDegLat

	cosLat := math.Cos(lat * math.Pi / 180)
	var lonDelta float64
	if math.Abs(cosLat) < 1e-9 {
		lonDelta = 0
	} else {
		metersPerDegLon := metersPerDegLat * cosLat
		lonDelta = dEast / metersPerDegLon
	}

	jitteredLat = clamp(lat+latDelta, -90, 90)
	jitteredLon = wrapLon(lon + lonDelta)
	return jitteredLat, jitteredLon, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrapLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
