// Package weather implements the §4.I weather processor: current conditions
// for a (lat, lon, timestamp) via the Open-Meteo archive API. Grounded on
// pkg/enricher_providers/weather/weather.go's plain net/http + encoding/json
// client against the same Open-Meteo family of endpoints, adapted from a
// fitness-activity weather summary into a sighting enrichment record.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ufobeep/beepnet/internal/enrichment"
)

// cacheTTL matches §4.H's "weather 10 min" cache TTL guidance.
const cacheTTL = 10 * time.Minute

type cacheEntry struct {
	data      map[string]any
	expiresAt time.Time
}

// Provider implements enrichment.Processor for current weather conditions.
type Provider struct {
	client *http.Client
	cache  *lru.Cache[string, cacheEntry]
}

// New builds the weather processor with a quantised-key LRU cache.
func New(client *http.Client) *Provider {
	if client == nil {
		client = http.DefaultClient
	}
	cache, _ := lru.New[string, cacheEntry](256)
	return &Provider{client: client, cache: cache}
}

func (p *Provider) Name() string                     { return "weather" }
func (p *Provider) Priority() int                    { return 1 }
func (p *Provider) TimeoutSeconds() int              { return 10 }
func (p *Provider) IsAvailable(context.Context) bool { return true }

// cacheKey quantises location to 3 decimals (~110m) and timestamp to the hour.
func cacheKey(lat, lon float64, ts time.Time) string {
	return fmt.Sprintf("%.3f,%.3f,%s", lat, lon, ts.UTC().Format("2006-01-02T15"))
}

func (p *Provider) Process(ctx context.Context, ectx enrichment.Context) enrichment.Result {
	key := cacheKey(ectx.Latitude, ectx.Longitude, ectx.Timestamp)
	if entry, ok := p.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
		return enrichment.Result{Success: true, Data: entry.data, Confidence: 0.9}
	}

	dateStr := ectx.Timestamp.UTC().Format("2006-01-02")
	url := fmt.Sprintf(
		"https://archive-api.open-meteo.com/v1/archive?latitude=%.6f&longitude=%.6f&start_date=%s&end_date=%s"+
			"&hourly=temperature_2m,apparent_temperature,relative_humidity_2m,surface_pressure,wind_speed_10m,"+
			"wind_direction_10m,visibility,cloud_cover,weather_code&daily=sunrise,sunset&timezone=UTC",
		ectx.Latitude, ectx.Longitude, dateStr, dateStr,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return enrichment.Result{Success: false, Error: err.Error()}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return enrichment.Result{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return enrichment.Result{Success: false, Error: fmt.Sprintf("upstream status %d", resp.StatusCode)}
	}

	var parsed openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return enrichment.Result{Success: false, Error: "failed to parse upstream response"}
	}

	idx := closestHourIndex(parsed.Hourly.Time, ectx.Timestamp)
	if idx == -1 || idx >= len(parsed.Hourly.Temperature) {
		return enrichment.Result{Success: false, Error: "no hourly data for requested time"}
	}

	data := map[string]any{
		"temperature_c":       parsed.Hourly.Temperature[idx],
		"feels_like_c":        parsed.Hourly.ApparentTemp[idx],
		"humidity_percent":    parsed.Hourly.Humidity[idx],
		"pressure_hpa":        parsed.Hourly.Pressure[idx],
		"wind_speed_ms":       parsed.Hourly.WindSpeed[idx] / 3.6,
		"wind_direction_deg":  parsed.Hourly.WindDirection[idx],
		"visibility_km":       parsed.Hourly.Visibility[idx] / 1000.0,
		"cloud_cover_percent": parsed.Hourly.CloudCover[idx],
		"weather_condition":   conditionFromCode(parsed.Hourly.WeatherCode[idx]),
	}
	if len(parsed.Daily.Sunrise) > 0 {
		if t, err := time.Parse("2006-01-02T15:04", parsed.Daily.Sunrise[0]); err == nil {
			data["sunrise_unix"] = t.Unix()
		}
	}
	if len(parsed.Daily.Sunset) > 0 {
		if t, err := time.Parse("2006-01-02T15:04", parsed.Daily.Sunset[0]); err == nil {
			data["sunset_unix"] = t.Unix()
		}
	}

	p.cache.Add(key, cacheEntry{data: data, expiresAt: time.Now().Add(cacheTTL)})
	return enrichment.Result{Success: true, Data: data, Confidence: 0.9}
}

type openMeteoResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		ApparentTemp  []float64 `json:"apparent_temperature"`
		Humidity      []float64 `json:"relative_humidity_2m"`
		Pressure      []float64 `json:"surface_pressure"`
		WindSpeed     []float64 `json:"wind_speed_10m"`
		WindDirection []float64 `json:"wind_direction_10m"`
		Visibility    []float64 `json:"visibility"`
		CloudCover    []float64 `json:"cloud_cover"`
		WeatherCode   []int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

func closestHourIndex(times []string, target time.Time) int {
	best := -1
	bestDiff := time.Duration(math.MaxInt64)
	for i, s := range times {
		t, err := time.Parse("2006-01-02T15:04", s)
		if err != nil {
			continue
		}
		diff := target.UTC().Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return best
}

// conditionFromCode maps WMO weather codes to the spec's fixed condition set.
func conditionFromCode(code int) string {
	switch {
	case code == 0 || code == 1:
		return "clear"
	case code == 2 || code == 3:
		return "cloudy"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain"
	case code >= 85 && code <= 86:
		return "snow"
	case code >= 95:
		return "thunderstorm"
	case code >= 45 && code <= 48:
		return "atmosphere"
	default:
		return "unknown"
	}
}

var _ enrichment.Processor = (*Provider)(nil)
