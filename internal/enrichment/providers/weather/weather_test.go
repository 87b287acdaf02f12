package weather

import (
	"testing"
	"time"
)

func TestConditionFromCode(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{0, "clear"},
		{1, "clear"},
		{2, "cloudy"},
		{3, "cloudy"},
		{45, "atmosphere"},
		{48, "atmosphere"},
		{53, "drizzle"},
		{63, "rain"},
		{73, "snow"},
		{81, "rain"},
		{85, "snow"},
		{95, "thunderstorm"},
		{99, "thunderstorm"},
		{4, "unknown"},
	}

	for _, tt := range tests {
		if got := conditionFromCode(tt.code); got != tt.expected {
			t.Errorf("conditionFromCode(%d) = %s, expected %s", tt.code, got, tt.expected)
		}
	}
}

func TestClosestHourIndex(t *testing.T) {
	times := []string{
		"2026-01-21T10:00",
		"2026-01-21T11:00",
		"2026-01-21T12:00",
		"2026-01-21T13:00",
	}

	tests := []struct {
		target   string
		expected int
	}{
		{"2026-01-21T10:15", 0},
		{"2026-01-21T10:45", 1},
		{"2026-01-21T13:30", 3},
	}

	for _, tt := range tests {
		target, err := time.Parse("2006-01-02T15:04", tt.target)
		if err != nil {
			t.Fatalf("parse target: %v", err)
		}
		if got := closestHourIndex(times, target); got != tt.expected {
			t.Errorf("closestHourIndex(%s) = %d, expected %d", tt.target, got, tt.expected)
		}
	}
}

func TestCacheKey_QuantizesLocationAndHour(t *testing.T) {
	ts := time.Date(2026, 1, 21, 10, 30, 0, 0, time.UTC)
	a := cacheKey(40.71234, -74.00123, ts)
	b := cacheKey(40.71239, -74.00129, ts.Add(20*time.Minute))
	if a != b {
		t.Errorf("expected quantized cache keys to collide, got %q and %q", a, b)
	}

	c := cacheKey(40.71234, -74.00123, ts.Add(2*time.Hour))
	if a == c {
		t.Errorf("expected cache key to change across hour boundary")
	}
}
