// Package memstore is an in-memory store.Gateway used by tests across the
// fanout, witness and alertsvc packages, grounded on the teacher's function-field
// mock style (pkg/testing/mocks/mocks.go) but implemented as a working fake
// rather than an interaction-recording stub — the concurrency/atomicity
// properties in spec.md §8 (counter atomicity, ring partition under concurrent
// fan-out) need real transactional behaviour, not just call verification.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ufobeep/beepnet/internal/beeperr"
	"github.com/ufobeep/beepnet/internal/geo"
	"github.com/ufobeep/beepnet/internal/model"
	"github.com/ufobeep/beepnet/internal/store"
)

// Store is an in-memory store.Gateway.
type Store struct {
	mu         sync.Mutex
	sightings  map[string]*model.Sighting
	witnesses  map[string]map[string]*model.WitnessConfirmation // sightingID -> deviceID -> confirmation
	devices    map[string]*model.Device
	engagement []*model.EngagementEvent
	alerts     []*model.AlertRecord
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		sightings: make(map[string]*model.Sighting),
		witnesses: make(map[string]map[string]*model.WitnessConfirmation),
		devices:   make(map[string]*model.Device),
	}
}

func (s *Store) CreateSighting(ctx context.Context, sighting *model.Sighting) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sighting.ID == "" {
		sighting.ID = uuid.NewString()
	}
	if sighting.CreatedAt.IsZero() {
		sighting.CreatedAt = time.Now()
	}
	sighting.UpdatedAt = sighting.CreatedAt
	if sighting.Category == "" {
		sighting.Category = "ufo"
	}
	if sighting.AlertLevel == "" {
		sighting.AlertLevel = model.LevelNormal
	}
	sighting.Status = model.StatusCreated
	sighting.WitnessCount = 1
	sighting.IsPublic = true
	if sighting.EnrichmentData == nil {
		sighting.EnrichmentData = map[string]any{}
	}

	cp := *sighting
	s.sightings[sighting.ID] = &cp
	return sighting.ID, nil
}

func (s *Store) GetSighting(ctx context.Context, id string) (*model.Sighting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sighting, ok := s.sightings[id]
	if !ok {
		return nil, beeperr.New(beeperr.KindNotFound, "memstore", "sighting not found")
	}
	cp := *sighting
	return &cp, nil
}

func (s *Store) ListPublicSightings(ctx context.Context, limit, offset int) ([]*model.Sighting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*model.Sighting, 0, len(s.sightings))
	for _, sighting := range s.sightings {
		if sighting.IsPublic {
			cp := *sighting
			all = append(all, &cp)
		}
	}
	for i := 1; i < len(all); i++ {
		j := i
		for j > 0 && all[j-1].CreatedAt.Before(all[j].CreatedAt) {
			all[j-1], all[j] = all[j], all[j-1]
			j--
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) || limit <= 0 {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *Store) UpdateEnrichment(ctx context.Context, sightingID, processorName string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sighting, ok := s.sightings[sightingID]
	if !ok {
		return beeperr.New(beeperr.KindNotFound, "memstore", "sighting not found")
	}
	if sighting.EnrichmentData == nil {
		sighting.EnrichmentData = map[string]any{}
	}
	sighting.EnrichmentData[processorName] = data
	sighting.UpdatedAt = time.Now()
	return nil
}

func (s *Store) AttachMedia(ctx context.Context, sightingID string, files []model.MediaFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sighting, ok := s.sightings[sightingID]
	if !ok {
		return beeperr.New(beeperr.KindNotFound, "memstore", "sighting not found")
	}
	sighting.MediaInfo.Files = append(sighting.MediaInfo.Files, files...)
	sighting.MediaInfo.Count = len(sighting.MediaInfo.Files)
	sighting.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ClearFanoutPending(ctx context.Context, sightingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sighting, ok := s.sightings[sightingID]
	if !ok {
		return false, beeperr.New(beeperr.KindNotFound, "memstore", "sighting not found")
	}
	wasPending := sighting.FanoutPending
	sighting.FanoutPending = false
	return wasPending, nil
}

func (s *Store) AddWitness(ctx context.Context, c *model.WitnessConfirmation) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sighting, ok := s.sightings[c.SightingID]
	if !ok {
		return 0, beeperr.New(beeperr.KindNotFound, "memstore", "sighting not found")
	}

	byDevice, ok := s.witnesses[c.SightingID]
	if !ok {
		byDevice = make(map[string]*model.WitnessConfirmation)
		s.witnesses[c.SightingID] = byDevice
	}
	if _, exists := byDevice[c.DeviceID]; exists {
		return 0, beeperr.New(beeperr.KindDuplicateWitness, "memstore", "device already witnessed this sighting")
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ConfirmedAt.IsZero() {
		c.ConfirmedAt = time.Now()
	}
	cp := *c
	byDevice[c.DeviceID] = &cp

	sighting.WitnessCount++
	return sighting.WitnessCount, nil
}

func (s *Store) ListWitnesses(ctx context.Context, sightingID string) ([]*model.WitnessConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDevice := s.witnesses[sightingID]
	out := make([]*model.WitnessConfirmation, 0, len(byDevice))
	for _, c := range byDevice {
		cp := *c
		out = append(out, &cp)
	}
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].ConfirmedAt.After(out[j].ConfirmedAt) {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out, nil
}

func (s *Store) HasWitnessed(ctx context.Context, sightingID, deviceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDevice, ok := s.witnesses[sightingID]
	if !ok {
		return false, nil
	}
	_, exists := byDevice[deviceID]
	return exists, nil
}

func (s *Store) ListDevicesForRing(ctx context.Context, centerLat, centerLon, radiusKM float64, excludeDeviceID string) ([]store.DeviceRingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.DeviceRingResult
	for _, d := range s.devices {
		if !d.EligibleForFanout() || d.DeviceID == excludeDeviceID {
			continue
		}
		if d.Lat == nil || d.Lon == nil {
			if radiusKM >= 25 {
				out = append(out, store.DeviceRingResult{
					DeviceID: d.DeviceID, PushToken: *d.PushToken, Platform: d.Platform, DistanceKM: radiusKM,
				})
			}
			continue
		}
		dist, err := geo.DistanceKM(centerLat, centerLon, *d.Lat, *d.Lon)
		if err != nil || dist > radiusKM {
			continue
		}
		out = append(out, store.DeviceRingResult{
			DeviceID: d.DeviceID, PushToken: *d.PushToken, Platform: d.Platform,
			Lat: *d.Lat, Lon: *d.Lon, DistanceKM: dist,
		})
	}
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].DistanceKM > out[j].DistanceKM {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out, nil
}

func (s *Store) GetDevice(ctx context.Context, deviceID string) (*model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return nil, beeperr.New(beeperr.KindNotFound, "memstore", "device not found")
	}
	cp := *d
	return &cp, nil
}

func (s *Store) UpsertDevice(ctx context.Context, d *model.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.devices[d.DeviceID] = &cp
	return nil
}

func (s *Store) AppendEngagement(ctx context.Context, e *model.EngagementEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	cp := *e
	s.engagement = append(s.engagement, &cp)
	return nil
}

func (s *Store) RecordAlert(ctx context.Context, r *model.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.SentAt.IsZero() {
		r.SentAt = time.Now()
	}
	cp := *r
	s.alerts = append(s.alerts, &cp)
	return nil
}

func (s *Store) RecentWitnessCount(ctx context.Context, centerLat, centerLon, radiusKM float64, windowMinutes int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)
	count := 0
	for _, byDevice := range s.witnesses {
		for _, c := range byDevice {
			if c.ConfirmedAt.Before(since) {
				continue
			}
			if c.Latitude == nil || c.Longitude == nil {
				continue
			}
			dist, err := geo.DistanceKM(centerLat, centerLon, *c.Latitude, *c.Longitude)
			if err == nil && dist <= radiusKM {
				count++
			}
		}
	}
	return count, nil
}

// Alerts returns a snapshot of every recorded alert, for test assertions.
func (s *Store) Alerts() []*model.AlertRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.AlertRecord, len(s.alerts))
	copy(out, s.alerts)
	return out
}

var _ store.Gateway = (*Store)(nil)
