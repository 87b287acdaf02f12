// Package geocoding implements the §4.I geocoding processor: reverse
// geocoding a (lat, lon) into a human-readable location name. Grounded on
// functions/enricher/providers/location_naming/location_naming.go's Nominatim
// reverse-geocode client and rate-limit discipline, adapted to a quantised-key
// LRU cache in place of the teacher's plain map + mutex.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ufobeep/beepnet/internal/enrichment"
)

const cacheTTL = time.Hour

type cacheEntry struct {
	data      map[string]any
	expiresAt time.Time
}

// Provider implements enrichment.Processor for reverse geocoding.
type Provider struct {
	client *http.Client
	cache  *lru.Cache[string, cacheEntry]

	// Nominatim's usage policy caps anonymous use at 1 request/second.
	mu            sync.Mutex
	lastRequestAt time.Time
}

// New builds the geocoding processor.
func New(client *http.Client) *Provider {
	if client == nil {
		client = http.DefaultClient
	}
	cache, _ := lru.New[string, cacheEntry](256)
	return &Provider{client: client, cache: cache}
}

func (p *Provider) Name() string                     { return "geocoding" }
func (p *Provider) Priority() int                    { return 1 }
func (p *Provider) TimeoutSeconds() int              { return 8 }
func (p *Provider) IsAvailable(context.Context) bool { return true }

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lon)
}

func (p *Provider) Process(ctx context.Context, ectx enrichment.Context) enrichment.Result {
	key := cacheKey(ectx.Latitude, ectx.Longitude)
	if entry, ok := p.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
		return enrichment.Result{Success: true, Data: entry.data, Confidence: 0.9}
	}

	p.throttle()

	url := fmt.Sprintf(
		"https://nominatim.openstreetmap.org/reverse?format=jsonv2&lat=%.6f&lon=%.6f&zoom=10",
		ectx.Latitude, ectx.Longitude,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return enrichment.Result{Success: false, Error: err.Error()}
	}
	req.Header.Set("User-Agent", "beepnet/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return enrichment.Result{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return enrichment.Result{Success: false, Error: fmt.Sprintf("upstream status %d", resp.StatusCode)}
	}

	var parsed nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return enrichment.Result{Success: false, Error: "failed to parse upstream response"}
	}

	data := buildLocationData(parsed)
	p.cache.Add(key, cacheEntry{data: data, expiresAt: time.Now().Add(cacheTTL)})
	return enrichment.Result{Success: true, Data: data, Confidence: 0.9}
}

func (p *Provider) throttle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := time.Since(p.lastRequestAt)
	if elapsed < time.Second {
		time.Sleep(time.Second - elapsed)
	}
	p.lastRequestAt = time.Now()
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// buildLocationData implements §4.I's "City, State" (US) vs "City, Country"
// (elsewhere) location-name assembly, falling back to country or a literal
// "Unknown Location".
func buildLocationData(r nominatimResponse) map[string]any {
	city := r.Address.City
	if city == "" {
		city = r.Address.Town
	}
	if city == "" {
		city = r.Address.Village
	}

	var name string
	switch {
	case city != "" && r.Address.CountryCode == "us" && r.Address.State != "":
		name = fmt.Sprintf("%s, %s", city, r.Address.State)
	case city != "" && r.Address.Country != "":
		name = fmt.Sprintf("%s, %s", city, r.Address.Country)
	case r.Address.Country != "":
		name = r.Address.Country
	default:
		name = "Unknown Location"
	}

	data := map[string]any{
		"location_name":     name,
		"country":           r.Address.Country,
		"formatted_address": r.DisplayName,
	}
	if city != "" {
		data["city"] = city
	}
	if r.Address.State != "" {
		data["state"] = r.Address.State
	}
	if r.Address.CountryCode != "" {
		data["country_code"] = r.Address.CountryCode
	}
	return data
}

var _ enrichment.Processor = (*Provider)(nil)
