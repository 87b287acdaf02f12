package celestial

import (
	"testing"
	"time"
)

func TestTwilightType_Thresholds(t *testing.T) {
	tests := []struct {
		altDeg   float64
		expected string
	}{
		{10, "day"},
		{-3, "civil_twilight"},
		{-9, "nautical_twilight"},
		{-15, "astronomical_twilight"},
		{-30, "night"},
	}
	for _, tt := range tests {
		if got := twilightType(tt.altDeg); got != tt.expected {
			t.Errorf("twilightType(%v) = %s, expected %s", tt.altDeg, got, tt.expected)
		}
	}
}

func TestPhaseFromAngle_EightPhases(t *testing.T) {
	tests := []struct {
		angle    float64
		expected string
	}{
		{0, "new"},
		{45, "waxing_crescent"},
		{90, "first_quarter"},
		{135, "waxing_gibbous"},
		{180, "full"},
		{225, "waning_gibbous"},
		{270, "last_quarter"},
		{315, "waning_crescent"},
		{359, "new"},
	}
	for _, tt := range tests {
		if got := phaseFromAngle(tt.angle); got != tt.expected {
			t.Errorf("phaseFromAngle(%v) = %s, expected %s", tt.angle, got, tt.expected)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(2, -1, 1); got != 1 {
		t.Errorf("clamp(2, -1, 1) = %v, expected 1", got)
	}
	if got := clamp(-2, -1, 1); got != -1 {
		t.Errorf("clamp(-2, -1, 1) = %v, expected -1", got)
	}
	if got := clamp(0.5, -1, 1); got != 0.5 {
		t.Errorf("clamp(0.5, -1, 1) = %v, expected 0.5", got)
	}
}

func TestJulianDay_KnownEpoch(t *testing.T) {
	// 2000-01-01T12:00:00Z is JD 2451545.0 by definition.
	epoch := julianDay(time.Unix(946728000, 0).UTC())
	if epoch < 2451544.99 || epoch > 2451545.01 {
		t.Errorf("julianDay reference epoch check failed: %v", epoch)
	}
}
