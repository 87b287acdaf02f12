package store

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/ufobeep/beepnet/internal/beeperr"
	"github.com/ufobeep/beepnet/internal/geo"
	"github.com/ufobeep/beepnet/internal/model"
)

const (
	sightingsCollection = "sightings"
	witnessesSubcoll    = "witnesses"
	alertsSubcoll       = "alerts"
	devicesCollection   = "devices"
	engagementColl      = "engagement_events"

	// devicesGeohashPrecision is the stored precision for a device's geohash
	// field. Geohash prefixes are hierarchical, so ListDevicesForRing's range
	// query can truncate to any coarser precision geo.PrecisionForRadius
	// picks and still match documents stored at this finer precision.
	devicesGeohashPrecision = 6
)

// FirestoreGateway implements Gateway against Firestore. Grounded on the
// teacher's FirestoreAdapter (pkg/infrastructure/database/firestore.go):
// firestore.Increment for atomic counters, firestore.ServerTimestamp for
// created_at/updated_at, firestore.MergeAll for enrichment merges, and the
// subcollection-per-child pattern used there for destination outcomes, applied
// here to witnesses/alerts to avoid read-modify-write races.
type FirestoreGateway struct {
	Client *firestore.Client
}

// NewFirestoreGateway wraps an existing Firestore client.
func NewFirestoreGateway(client *firestore.Client) *FirestoreGateway {
	return &FirestoreGateway{Client: client}
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "NotFound") || strings.Contains(s, "not found") || strings.Contains(s, "no such")
}

func sightingDoc(data map[string]any) *model.Sighting {
	s := &model.Sighting{EnrichmentData: map[string]any{}}
	if v, ok := data["id"].(string); ok {
		s.ID = v
	}
	if v, ok := data["created_at"].(time.Time); ok {
		s.CreatedAt = v
	}
	if v, ok := data["updated_at"].(time.Time); ok {
		s.UpdatedAt = v
	}
	if v, ok := data["reporter_device_id"].(string); ok {
		s.ReporterDeviceID = v
	}
	if v, ok := data["category"].(string); ok {
		s.Category = v
	}
	if v, ok := data["alert_level"].(string); ok {
		s.AlertLevel = model.AlertLevel(v)
	}
	if v, ok := data["status"].(string); ok {
		s.Status = model.SightingStatus(v)
	}
	if v, ok := data["is_public"].(bool); ok {
		s.IsPublic = v
	}
	if v, ok := data["witness_count"].(int64); ok {
		s.WitnessCount = int(v)
	}
	if v, ok := data["lat"].(float64); ok {
		s.SensorData.Location.Lat = v
	}
	if v, ok := data["lon"].(float64); ok {
		s.SensorData.Location.Lon = v
	}
	if v, ok := data["enrichment_data"].(map[string]any); ok {
		s.EnrichmentData = v
	}
	if v, ok := data["fanout_pending"].(bool); ok {
		s.FanoutPending = v
	}
	if raw, ok := data["media_files"].([]any); ok {
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			s.MediaInfo.Files = append(s.MediaInfo.Files, mediaFileDoc(m))
		}
		s.MediaInfo.Count = len(s.MediaInfo.Files)
	}
	return s
}

func mediaFileDoc(m map[string]any) model.MediaFile {
	f := model.MediaFile{}
	if v, ok := m["id"].(string); ok {
		f.ID = v
	}
	if v, ok := m["kind"].(string); ok {
		f.Kind = model.MediaKind(v)
	}
	if v, ok := m["filename"].(string); ok {
		f.Filename = v
	}
	if v, ok := m["url"].(string); ok {
		f.URL = v
	}
	if v, ok := m["thumbnail_url"].(string); ok {
		f.ThumbnailURL = v
	}
	if v, ok := m["web_url"].(string); ok {
		f.WebURL = v
	}
	if v, ok := m["preview_url"].(string); ok {
		f.PreviewURL = v
	}
	if v, ok := m["size_bytes"].(int64); ok {
		f.SizeBytes = v
	}
	return f
}

func mediaFileMap(f model.MediaFile) map[string]any {
	return map[string]any{
		"id": f.ID, "kind": string(f.Kind), "filename": f.Filename,
		"url": f.URL, "thumbnail_url": f.ThumbnailURL, "web_url": f.WebURL,
		"preview_url": f.PreviewURL, "size_bytes": f.SizeBytes,
	}
}

// CreateSighting writes a new sighting document, idempotent by caller-supplied
// ID. Coordinates written here are the caller's responsibility to have already
// jittered (§4.C runs before this in the alert facade); the gateway never
// jitters on its own.
func (g *FirestoreGateway) CreateSighting(ctx context.Context, s *model.Sighting) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	data := map[string]any{
		"id":                  s.ID,
		"created_at":          firestore.ServerTimestamp,
		"updated_at":          firestore.ServerTimestamp,
		"reporter_device_id":  s.ReporterDeviceID,
		"category":            orDefault(s.Category, "ufo"),
		"tags":                s.Tags,
		"alert_level":         string(orDefaultLevel(s.AlertLevel)),
		"status":              string(model.StatusCreated),
		"witness_count":       1,
		"is_public":           true,
		"lat":                 s.SensorData.Location.Lat,
		"lon":                 s.SensorData.Location.Lon,
		"original_lat":        valueOrZero(s.SensorData.Location.OriginalLat),
		"original_lon":        valueOrZero(s.SensorData.Location.OriginalLon),
		"azimuth_deg":         s.SensorData.AzimuthDeg,
		"pitch_deg":           s.SensorData.PitchDeg,
		"roll_deg":            s.SensorData.RollDeg,
		"device_id":           s.SensorData.DeviceID,
		"enrichment_data":     map[string]any{},
		"fanout_pending":      s.FanoutPending,
		"media_files":         []any{},
	}
	if s.Title != nil {
		data["title"] = *s.Title
	}
	if s.Description != nil {
		data["description"] = *s.Description
	}

	_, err := g.Client.Collection(sightingsCollection).Doc(s.ID).Set(ctx, data)
	if err != nil {
		return "", beeperr.Wrap(beeperr.KindTransientBackend, "store", "create_sighting failed", err)
	}
	return s.ID, nil
}

// GetSighting fetches a sighting by id.
func (g *FirestoreGateway) GetSighting(ctx context.Context, id string) (*model.Sighting, error) {
	doc, err := g.Client.Collection(sightingsCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFoundError(err) {
			return nil, beeperr.New(beeperr.KindNotFound, "store", "sighting "+id+" not found")
		}
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "store", "get_sighting failed", err)
	}
	return sightingDoc(doc.Data()), nil
}

// ListPublicSightings returns public sightings ordered by created_at desc.
func (g *FirestoreGateway) ListPublicSightings(ctx context.Context, limit, offset int) ([]*model.Sighting, error) {
	q := g.Client.Collection(sightingsCollection).
		Where("is_public", "==", true).
		OrderBy("created_at", firestore.Desc).
		Offset(offset).
		Limit(limit)

	iter := q.Documents(ctx)
	docs, err := iter.GetAll()
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "store", "list_public_sightings failed", err)
	}

	out := make([]*model.Sighting, len(docs))
	for i, d := range docs {
		out[i] = sightingDoc(d.Data())
	}
	return out, nil
}

// UpdateEnrichment merges data into enrichment_data[processorName] atomically.
// Using a dotted field path with MergeAll means concurrent merges from other
// processors on sibling keys never clobber each other (§5's "writes to a single
// Sighting's enrichment_data are serialised via merge semantics").
func (g *FirestoreGateway) UpdateEnrichment(ctx context.Context, sightingID, processorName string, data map[string]any) error {
	update := map[string]any{
		"enrichment_data": map[string]any{
			processorName: data,
		},
		"updated_at": firestore.ServerTimestamp,
	}
	_, err := g.Client.Collection(sightingsCollection).Doc(sightingID).Set(ctx, update, firestore.MergeAll)
	if err != nil {
		if isNotFoundError(err) {
			return beeperr.New(beeperr.KindNotFound, "store", "sighting "+sightingID+" not found")
		}
		return beeperr.Wrap(beeperr.KindTransientBackend, "store", "update_enrichment failed", err)
	}
	return nil
}

// AttachMedia appends files to the sighting's media_files array, read-modify-
// write inside a transaction since Firestore has no array-append-of-maps
// server-side op that preserves field names the way ArrayUnion does for
// scalars.
func (g *FirestoreGateway) AttachMedia(ctx context.Context, sightingID string, files []model.MediaFile) error {
	sightingRef := g.Client.Collection(sightingsCollection).Doc(sightingID)
	err := g.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(sightingRef)
		if err != nil {
			if isNotFoundError(err) {
				return beeperr.New(beeperr.KindNotFound, "store", "sighting "+sightingID+" not found")
			}
			return err
		}
		existing, _ := snap.Data()["media_files"].([]any)
		for _, f := range files {
			existing = append(existing, mediaFileMap(f))
		}
		return tx.Update(sightingRef, []firestore.Update{
			{Path: "media_files", Value: existing},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		if be, ok := asBeepErr(err); ok {
			return be
		}
		return beeperr.Wrap(beeperr.KindTransientBackend, "store", "attach_media failed", err)
	}
	return nil
}

// ClearFanoutPending atomically reads fanout_pending and clears it, so the
// deferred ring fan-out a has_media=true ingestion held back fires exactly
// once even if the media association endpoint is retried.
func (g *FirestoreGateway) ClearFanoutPending(ctx context.Context, sightingID string) (bool, error) {
	sightingRef := g.Client.Collection(sightingsCollection).Doc(sightingID)
	var wasPending bool
	err := g.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(sightingRef)
		if err != nil {
			if isNotFoundError(err) {
				return beeperr.New(beeperr.KindNotFound, "store", "sighting "+sightingID+" not found")
			}
			return err
		}
		wasPending, _ = snap.Data()["fanout_pending"].(bool)
		if !wasPending {
			return nil
		}
		return tx.Update(sightingRef, []firestore.Update{
			{Path: "fanout_pending", Value: false},
		})
	})
	if err != nil {
		if be, ok := asBeepErr(err); ok {
			return false, be
		}
		return false, beeperr.Wrap(beeperr.KindTransientBackend, "store", "clear_fanout_pending failed", err)
	}
	return wasPending, nil
}

// AddWitness inserts the confirmation into the witnesses subcollection (one
// document per device, keyed by device id, so a second attempt collides on the
// document id rather than requiring a separate unique-index query) and
// atomically increments witness_count on the parent within the same
// transaction.
func (g *FirestoreGateway) AddWitness(ctx context.Context, c *model.WitnessConfirmation) (int, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	sightingRef := g.Client.Collection(sightingsCollection).Doc(c.SightingID)
	witnessRef := sightingRef.Collection(witnessesSubcoll).Doc(c.DeviceID)

	var newCount int
	err := g.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Get(witnessRef)
		if err == nil && existing.Exists() {
			return beeperr.New(beeperr.KindDuplicateWitness, "store", "device already witnessed this sighting")
		}
		if err != nil && !isNotFoundError(err) {
			return err
		}

		sightingSnap, err := tx.Get(sightingRef)
		if err != nil {
			if isNotFoundError(err) {
				return beeperr.New(beeperr.KindNotFound, "store", "sighting "+c.SightingID+" not found")
			}
			return err
		}
		current := int64(0)
		if v, ok := sightingSnap.Data()["witness_count"].(int64); ok {
			current = v
		}
		newCount = int(current) + 1

		witnessData := map[string]any{
			"id":            c.ID,
			"sighting_id":   c.SightingID,
			"device_id":     c.DeviceID,
			"confirmed_at":  firestore.ServerTimestamp,
			"still_visible": c.StillVisible,
			"confidence":    string(c.Confidence),
		}
		if c.Latitude != nil {
			witnessData["latitude"] = *c.Latitude
		}
		if c.Longitude != nil {
			witnessData["longitude"] = *c.Longitude
		}
		if c.BearingDeg != nil {
			witnessData["bearing_deg"] = *c.BearingDeg
		}
		if c.DistanceKMToSighting != nil {
			witnessData["distance_km_to_sighting"] = *c.DistanceKMToSighting
		}
		if c.Description != nil {
			witnessData["description"] = *c.Description
		}

		if err := tx.Set(witnessRef, witnessData); err != nil {
			return err
		}
		return tx.Update(sightingRef, []firestore.Update{
			{Path: "witness_count", Value: firestore.Increment(1)},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
	})

	if err != nil {
		if be, ok := asBeepErr(err); ok {
			return 0, be
		}
		return 0, beeperr.Wrap(beeperr.KindTransientBackend, "store", "add_witness failed", err)
	}
	return newCount, nil
}

// ListWitnesses returns confirmations ordered by confirmed_at asc.
func (g *FirestoreGateway) ListWitnesses(ctx context.Context, sightingID string) ([]*model.WitnessConfirmation, error) {
	iter := g.Client.Collection(sightingsCollection).Doc(sightingID).
		Collection(witnessesSubcoll).OrderBy("confirmed_at", firestore.Asc).Documents(ctx)
	docs, err := iter.GetAll()
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "store", "list_witnesses failed", err)
	}

	out := make([]*model.WitnessConfirmation, 0, len(docs))
	for _, d := range docs {
		m := d.Data()
		c := &model.WitnessConfirmation{SightingID: sightingID}
		if v, ok := m["id"].(string); ok {
			c.ID = v
		}
		if v, ok := m["device_id"].(string); ok {
			c.DeviceID = v
		}
		if v, ok := m["confirmed_at"].(time.Time); ok {
			c.ConfirmedAt = v
		}
		if v, ok := m["latitude"].(float64); ok {
			c.Latitude = &v
		}
		if v, ok := m["longitude"].(float64); ok {
			c.Longitude = &v
		}
		if v, ok := m["bearing_deg"].(float64); ok {
			c.BearingDeg = &v
		}
		if v, ok := m["still_visible"].(bool); ok {
			c.StillVisible = v
		}
		if v, ok := m["confidence"].(string); ok {
			c.Confidence = model.WitnessConfidence(v)
		}
		out = append(out, c)
	}
	return out, nil
}

// HasWitnessed checks the witnesses subcollection for a device's existing
// confirmation without performing the transactional insert.
func (g *FirestoreGateway) HasWitnessed(ctx context.Context, sightingID, deviceID string) (bool, error) {
	doc, err := g.Client.Collection(sightingsCollection).Doc(sightingID).
		Collection(witnessesSubcoll).Doc(deviceID).Get(ctx)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, beeperr.Wrap(beeperr.KindTransientBackend, "store", "has_witnessed failed", err)
	}
	return doc.Exists(), nil
}

// ListDevicesForRing implements §4.E's radius query. It pre-filters with a
// geohash range query per neighbouring cell (geo.Neighbors at a precision
// geo.PrecisionForRadius picks for radiusKM) so a large device collection
// doesn't require a full scan, then applies the exact haversine distance
// check against the merged candidates. Devices with no stored geohash (no
// known location) are fetched separately so §4.E's "undetermined location,
// radius>=25km" allowance still reaches them.
func (g *FirestoreGateway) ListDevicesForRing(ctx context.Context, centerLat, centerLon, radiusKM float64, excludeDeviceID string) ([]DeviceRingResult, error) {
	precision := geo.PrecisionForRadius(radiusKM)
	cells := geo.Neighbors(centerLat, centerLon, precision)

	candidates := make(map[string]map[string]any, len(cells)*8)
	for _, prefix := range cells {
		iter := g.Client.Collection(devicesCollection).
			Where("is_active", "==", true).
			Where("push_enabled", "==", true).
			Where("alert_notifications", "==", true).
			Where("geohash", ">=", prefix).
			Where("geohash", "<", prefix+"").
			Documents(ctx)
		docs, err := iter.GetAll()
		if err != nil {
			return nil, beeperr.Wrap(beeperr.KindTransientBackend, "store", "list_devices_for_ring failed", err)
		}
		for _, d := range docs {
			m := d.Data()
			if deviceID, _ := m["device_id"].(string); deviceID != "" {
				candidates[deviceID] = m
			}
		}
	}

	locationless := g.Client.Collection(devicesCollection).
		Where("is_active", "==", true).
		Where("push_enabled", "==", true).
		Where("alert_notifications", "==", true).
		Where("geohash", "==", "").
		Documents(ctx)
	locDocs, err := locationless.GetAll()
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "store", "list_devices_for_ring failed", err)
	}
	for _, d := range locDocs {
		m := d.Data()
		if deviceID, _ := m["device_id"].(string); deviceID != "" {
			candidates[deviceID] = m
		}
	}

	const resultCap = 1000
	var out []DeviceRingResult
	for deviceID, m := range candidates {
		if deviceID == excludeDeviceID {
			continue
		}
		token, _ := m["push_token"].(string)
		if token == "" {
			continue
		}
		lat, hasLat := m["lat"].(float64)
		lon, hasLon := m["lon"].(float64)
		if !hasLat || !hasLon {
			if radiusKM >= 25 {
				out = append(out, DeviceRingResult{
					DeviceID: deviceID, PushToken: token,
					Platform:   model.Platform(stringOr(m["platform"], "")),
					DistanceKM: radiusKM,
				})
			}
			continue
		}
		dist, err := geo.DistanceKM(centerLat, centerLon, lat, lon)
		if err != nil || dist > radiusKM {
			continue
		}
		out = append(out, DeviceRingResult{
			DeviceID: deviceID, PushToken: token,
			Platform:   model.Platform(stringOr(m["platform"], "")),
			Lat:        lat,
			Lon:        lon,
			DistanceKM: dist,
		})
	}

	sortByDistance(out)
	if len(out) > resultCap {
		out = out[:resultCap]
	}
	return out, nil
}

// GetDevice fetches a device by its client-chosen device_id.
func (g *FirestoreGateway) GetDevice(ctx context.Context, deviceID string) (*model.Device, error) {
	doc, err := g.Client.Collection(devicesCollection).Doc(deviceID).Get(ctx)
	if err != nil {
		if isNotFoundError(err) {
			return nil, beeperr.New(beeperr.KindNotFound, "store", "device "+deviceID+" not found")
		}
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "store", "get_device failed", err)
	}
	return deviceFromMap(doc.Data()), nil
}

// UpsertDevice creates or merges a device document keyed by device_id.
func (g *FirestoreGateway) UpsertDevice(ctx context.Context, d *model.Device) error {
	data := map[string]any{
		"device_id":            d.DeviceID,
		"platform":             string(d.Platform),
		"push_enabled":         d.PushEnabled,
		"alert_notifications":  d.AlertNotifications,
		"chat_notifications":   d.ChatNotifications,
		"system_notifications": d.SystemNotifications,
		"is_active":            d.IsActive,
		"notifications_sent":   d.NotificationsSent,
	}
	if d.PushToken != nil {
		data["push_token"] = *d.PushToken
	}
	if d.PushProvider != nil {
		data["push_provider"] = string(*d.PushProvider)
	}
	if d.Lat != nil {
		data["lat"] = *d.Lat
	}
	if d.Lon != nil {
		data["lon"] = *d.Lon
	}
	if d.Lat != nil && d.Lon != nil {
		data["geohash"] = geo.Encode(*d.Lat, *d.Lon, devicesGeohashPrecision)
	} else {
		data["geohash"] = ""
	}
	_, err := g.Client.Collection(devicesCollection).Doc(d.DeviceID).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return beeperr.Wrap(beeperr.KindTransientBackend, "store", "upsert_device failed", err)
	}
	return nil
}

// AppendEngagement writes an append-only engagement event.
func (g *FirestoreGateway) AppendEngagement(ctx context.Context, e *model.EngagementEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	data := map[string]any{
		"id":         e.ID,
		"device_id":  e.DeviceID,
		"event_type": string(e.EventType),
		"timestamp":  firestore.ServerTimestamp,
	}
	if e.SightingID != nil {
		data["sighting_id"] = *e.SightingID
	}
	_, err := g.Client.Collection(engagementColl).Doc(e.ID).Set(ctx, data)
	if err != nil {
		return beeperr.Wrap(beeperr.KindTransientBackend, "store", "append_engagement failed", err)
	}
	return nil
}

// RecordAlert writes a delivery-metadata record into the sighting's alerts
// subcollection.
func (g *FirestoreGateway) RecordAlert(ctx context.Context, r *model.AlertRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	data := map[string]any{
		"id":          r.ID,
		"sighting_id": r.SightingID,
		"device_id":   r.DeviceID,
		"distance_km": r.DistanceKM,
		"ring_km":     r.RingKM,
		"level":       string(r.Level),
		"sent_at":     firestore.ServerTimestamp,
		"delivered":   r.Delivered,
	}
	if r.Error != nil {
		data["error"] = *r.Error
	}
	_, err := g.Client.Collection(sightingsCollection).Doc(r.SightingID).
		Collection(alertsSubcoll).Doc(r.ID).Set(ctx, data)
	if err != nil {
		return beeperr.Wrap(beeperr.KindTransientBackend, "store", "record_alert failed", err)
	}
	return nil
}

// RecentWitnessCount uses a CollectionGroup query over every sighting's
// witnesses subcollection, filtered by time and then by distance in-process
// (Firestore has no native geo-radius predicate across a collection group).
func (g *FirestoreGateway) RecentWitnessCount(ctx context.Context, centerLat, centerLon, radiusKM float64, windowMinutes int) (int, error) {
	since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)
	iter := g.Client.CollectionGroup(witnessesSubcoll).
		Where("confirmed_at", ">=", since).
		Documents(ctx)
	docs, err := iter.GetAll()
	if err != nil {
		return 0, beeperr.Wrap(beeperr.KindTransientBackend, "store", "recent_witness_count failed", err)
	}

	count := 0
	for _, d := range docs {
		m := d.Data()
		lat, okLat := m["latitude"].(float64)
		lon, okLon := m["longitude"].(float64)
		if !okLat || !okLon {
			continue
		}
		dist, err := geo.DistanceKM(centerLat, centerLon, lat, lon)
		if err == nil && dist <= radiusKM {
			count++
		}
	}
	return count, nil
}

func deviceFromMap(m map[string]any) *model.Device {
	d := &model.Device{}
	if v, ok := m["device_id"].(string); ok {
		d.DeviceID = v
	}
	if v, ok := m["platform"].(string); ok {
		d.Platform = model.Platform(v)
	}
	if v, ok := m["push_token"].(string); ok {
		d.PushToken = &v
	}
	if v, ok := m["push_enabled"].(bool); ok {
		d.PushEnabled = v
	}
	if v, ok := m["alert_notifications"].(bool); ok {
		d.AlertNotifications = v
	}
	if v, ok := m["is_active"].(bool); ok {
		d.IsActive = v
	}
	if v, ok := m["lat"].(float64); ok {
		d.Lat = &v
	}
	if v, ok := m["lon"].(float64); ok {
		d.Lon = &v
	}
	return d
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultLevel(v model.AlertLevel) model.AlertLevel {
	if v == "" {
		return model.LevelNormal
	}
	return v
}

func asBeepErr(err error) (*beeperr.Error, bool) {
	be, ok := err.(*beeperr.Error)
	return be, ok
}

func sortByDistance(rows []DeviceRingResult) {
	for i := 1; i < len(rows); i++ {
		j := i
		for j > 0 && rows[j-1].DistanceKM > rows[j].DistanceKM {
			rows[j-1], rows[j] = rows[j], rows[j-1]
			j--
		}
	}
}

var _ Gateway = (*FirestoreGateway)(nil)
