// Package bootstrap wires every component into a root internal/alertsvc.Core
// value and configures the ambient stack (structured logging, Sentry, Pub/Sub,
// Firestore, Firebase) — grounded on pkg/bootstrap/bootstrap.go's NewService,
// adapted per SPEC_FULL.md §9's "construct a root core value explicitly,
// pass it to handlers" decision: there is deliberately no package-level
// singleton or sync.Once here.
package bootstrap

import (
	"os"
	"strconv"
)

// Config holds every environment-driven setting this repository reads. Reused
// directly by cmd/api and functions/fanout-deferred so both entrypoints see
// identical wiring.
type Config struct {
	ProjectID string

	JitterMinM float64
	JitterMaxM float64

	RingsKM                       []float64
	RingConcurrency               int
	EmergencyOverrideWitnessCount int

	EnrichmentConcurrency int

	WitnessRateLimitPerHour int
	WitnessWindowMinutes    int
	WitnessDefaultMaxKM     float64

	FanoutRateCapPer15Min int

	WeatherAPIKey   string
	GeminiAPIKey    string
	ContentFilterURL string
	ContentFilterKey string

	OpenSkyClientID     string
	OpenSkyClientSecret string
	AircraftRadiusKM    float64

	MediaBucket string

	SentryDSN string
	Release   string
}

// LoadConfig reads Config from the environment, falling back to spec.md's
// documented §6 defaults for anything unset.
func LoadConfig() *Config {
	cfg := &Config{
		ProjectID: envOr("GOOGLE_CLOUD_PROJECT", ""),

		JitterMinM: envFloatOr("JITTER_MIN_M", 100),
		JitterMaxM: envFloatOr("JITTER_MAX_M", 300),

		RingsKM:                       []float64{1, 5, 10, 25},
		RingConcurrency:               int(envFloatOr("RING_CONCURRENCY", 4)),
		EmergencyOverrideWitnessCount: int(envFloatOr("EMERGENCY_OVERRIDE_WITNESS_COUNT", 10)),

		EnrichmentConcurrency: int(envFloatOr("ENRICHMENT_CONCURRENCY", 3)),

		WitnessRateLimitPerHour: int(envFloatOr("WITNESS_RATE_LIMIT_PER_HOUR", 5)),
		WitnessWindowMinutes:    int(envFloatOr("WITNESS_WINDOW_MINUTES", 60)),
		WitnessDefaultMaxKM:     envFloatOr("WITNESS_DEFAULT_MAX_KM", 50),

		FanoutRateCapPer15Min: int(envFloatOr("FANOUT_RATE_15MIN_CAP", 3)),

		WeatherAPIKey:    os.Getenv("WEATHER_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		ContentFilterURL: os.Getenv("CONTENT_FILTER_URL"),
		ContentFilterKey: os.Getenv("CONTENT_FILTER_API_KEY"),

		OpenSkyClientID:     os.Getenv("OPENSKY_CLIENT_ID"),
		OpenSkyClientSecret: os.Getenv("OPENSKY_CLIENT_SECRET"),
		AircraftRadiusKM:    envFloatOr("AIRCRAFT_RADIUS_KM", 50),

		MediaBucket: envOr("MEDIA_BUCKET", "beepnet-media"),

		SentryDSN: os.Getenv("SENTRY_DSN"),
		Release:   envOr("SENTRY_RELEASE", envOr("K_REVISION", "unknown")),
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloatOr(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
