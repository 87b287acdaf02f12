// Package store is the persistence gateway (§4.D): an abstract store for
// sightings, witnesses, devices and engagement events, with transactional
// updates where the spec requires atomicity. Errors use the internal/beeperr
// taxonomy (NotFound, Conflict, TransientBackend). Neither the gateway nor any
// of its callers in this repository retries: a TransientBackend error is
// returned up the call chain on its first occurrence.
package store

import (
	"context"

	"github.com/ufobeep/beepnet/internal/model"
)

// DeviceRingResult is one row from ListDevicesForRing (§4.E's result shape).
type DeviceRingResult struct {
	DeviceID   string
	PushToken  string
	Platform   model.Platform
	Lat, Lon   float64
	DistanceKM float64
}

// Gateway is the persistence gateway interface every component depends on.
// Implementations MUST NOT hold a connection pool across awaits unrelated to the
// call in progress (§5's connection-pool-aliasing note) and MUST surface
// beeperr-tagged errors, never raw driver errors.
type Gateway interface {
	// CreateSighting is idempotent by sighting.ID when the caller supplies one.
	CreateSighting(ctx context.Context, sighting *model.Sighting) (string, error)
	GetSighting(ctx context.Context, id string) (*model.Sighting, error)
	ListPublicSightings(ctx context.Context, limit, offset int) ([]*model.Sighting, error)

	// UpdateEnrichment merges data into enrichment_data[processorName] atomically
	// relative to other processors' concurrent merges on the same sighting.
	UpdateEnrichment(ctx context.Context, sightingID, processorName string, data map[string]any) error

	// AttachMedia appends files to sighting.media_info.files (§6's media
	// association endpoint).
	AttachMedia(ctx context.Context, sightingID string, files []model.MediaFile) error

	// ClearFanoutPending atomically clears FanoutPending and reports whether it
	// was set, so a media-association call triggers the deferred ring fan-out
	// exactly once even under concurrent completion requests.
	ClearFanoutPending(ctx context.Context, sightingID string) (wasPending bool, err error)

	// AddWitness fails with beeperr.KindDuplicateWitness on a (sighting_id,
	// device_id) conflict. On success it returns the new witness_count, having
	// incremented it atomically with the confirmation insert.
	AddWitness(ctx context.Context, confirmation *model.WitnessConfirmation) (newWitnessCount int, err error)
	ListWitnesses(ctx context.Context, sightingID string) ([]*model.WitnessConfirmation, error)
	HasWitnessed(ctx context.Context, sightingID, deviceID string) (bool, error)

	// ListDevicesForRing returns devices within radiusKM of center, excluding
	// excludeDeviceID, sorted ascending by distance (§4.E).
	ListDevicesForRing(ctx context.Context, centerLat, centerLon, radiusKM float64, excludeDeviceID string) ([]DeviceRingResult, error)
	GetDevice(ctx context.Context, deviceID string) (*model.Device, error)
	UpsertDevice(ctx context.Context, device *model.Device) error

	AppendEngagement(ctx context.Context, event *model.EngagementEvent) error

	RecordAlert(ctx context.Context, record *model.AlertRecord) error

	// RecentWitnessCount counts witnesses across any sighting within radiusKM of
	// center in the last windowMinutes, used by the fan-out engine's escalation
	// and emergency-override checks (§4.G, §4.B).
	RecentWitnessCount(ctx context.Context, centerLat, centerLon, radiusKM float64, windowMinutes int) (int, error)
}
