// Package devices implements the device directory (§4.E): validating a
// radius query and delegating to the gateway, which owns the geo-index
// pre-filter (a Firestore implementation narrows by geohash range) and the
// haversine scan that produces the final distance-sorted set.
package devices

import (
	"context"
	"sort"

	"github.com/ufobeep/beepnet/internal/geo"
	"github.com/ufobeep/beepnet/internal/store"
)

// Result mirrors store.DeviceRingResult — a thin re-export keeps this package's
// public surface independent of the store package's shape.
type Result = store.DeviceRingResult

// Directory queries devices for fan-out rings.
type Directory struct {
	gateway store.Gateway
}

// New builds a Directory over the given gateway.
func New(gateway store.Gateway) *Directory {
	return &Directory{gateway: gateway}
}

// WithinRadius returns devices within radiusKM of (lat, lon), excluding
// excludeDeviceID, sorted ascending by distance, capped at the configured
// result cap (enforced by the gateway implementation per §4.E).
func (d *Directory) WithinRadius(ctx context.Context, lat, lon, radiusKM float64, excludeDeviceID string) ([]Result, error) {
	if err := geo.ValidateLatLon(lat, lon); err != nil {
		return nil, err
	}

	rows, err := d.gateway.ListDevicesForRing(ctx, lat, lon, radiusKM, excludeDeviceID)
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].DistanceKM < rows[j].DistanceKM })
	return rows, nil
}
