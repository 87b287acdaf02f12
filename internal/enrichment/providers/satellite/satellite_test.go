package satellite

import (
	"testing"
	"time"
)

func mustParseRFC3339(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPassDirection_ProgradeAndRetrograde(t *testing.T) {
	tests := []struct {
		orbitPhase     float64
		inclinationDeg float64
		expected       string
	}{
		{0.2, 51.6, "SW to NE"},
		{0.8, 51.6, "NW to SE"},
		{0.2, 97.0, "SE to NW"},
		{0.8, 97.0, "NE to SW"},
	}
	for _, tt := range tests {
		if got := passDirection(tt.orbitPhase, tt.inclinationDeg); got != tt.expected {
			t.Errorf("passDirection(%v, %v) = %s, expected %s", tt.orbitPhase, tt.inclinationDeg, got, tt.expected)
		}
	}
}

func TestCacheKey_QuantizesToHour(t *testing.T) {
	a := cacheKey(40.71, -74.00, mustParseRFC3339("2026-01-21T10:10:00Z"))
	b := cacheKey(40.71, -74.00, mustParseRFC3339("2026-01-21T10:50:00Z"))
	if a != b {
		t.Errorf("expected same-hour keys to collide, got %q and %q", a, b)
	}
}

func TestTrackedSatellites_NonEmpty(t *testing.T) {
	if len(trackedSatellites) == 0 {
		t.Fatal("expected at least one tracked satellite")
	}
	for _, s := range trackedSatellites {
		if s.name == "" {
			t.Error("tracked satellite missing name")
		}
		if s.period <= 0 {
			t.Errorf("tracked satellite %s has non-positive period", s.name)
		}
	}
}
