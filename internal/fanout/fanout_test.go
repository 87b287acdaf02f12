package fanout

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufobeep/beepnet/internal/devices"
	"github.com/ufobeep/beepnet/internal/model"
	"github.com/ufobeep/beepnet/internal/push"
	"github.com/ufobeep/beepnet/internal/rategate"
	"github.com/ufobeep/beepnet/internal/store/memstore"
)

type recordingSender struct {
	sent []push.Payload
}

func (s *recordingSender) Send(ctx context.Context, payloads []push.Payload) ([]push.Outcome, error) {
	s.sent = append(s.sent, payloads...)
	outcomes := make([]push.Outcome, len(payloads))
	for i, p := range payloads {
		outcomes[i] = push.Outcome{DeviceID: p.DeviceID, Delivered: true}
	}
	return outcomes, nil
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func newDevice(id string, lat, lon float64) *model.Device {
	return &model.Device{
		DeviceID:           id,
		Platform:           model.PlatformIOS,
		PushToken:          strPtr("token-" + id),
		PushEnabled:        true,
		AlertNotifications: true,
		IsActive:           true,
		Lat:                f64Ptr(lat),
		Lon:                f64Ptr(lon),
	}
}

// TestFanOut_SeedScenarioA matches spec.md §8(a): a device 2km+ away sees
// exactly one payload, in the 10km ring only, with a NE bearing and level=normal.
func TestFanOut_SeedScenarioA(t *testing.T) {
	gw := memstore.New()
	require.NoError(t, gw.UpsertDevice(context.Background(), newDevice("D1", 47.6110, -122.3310)))

	sender := &recordingSender{}
	gate := rategate.NewFanoutGate(3, rategate.RealClock{})
	engine := New(DefaultConfig(), devices.New(gw), gw, sender, gate, nil)

	result, err := engine.FanOut(context.Background(), "sighting-a", 47.6213, -122.3790, "submitter")
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalSent)
	assert.Equal(t, 0, result.PerRingCounts[1])
	assert.Equal(t, 0, result.PerRingCounts[5])
	assert.Equal(t, 1, result.PerRingCounts[10])
	assert.Equal(t, 0, result.PerRingCounts[25])

	require.Len(t, sender.sent, 1)
	p := sender.sent[0]
	assert.Equal(t, "D1", p.DeviceID)
	assert.Equal(t, "normal", p.Data["alert_level"])
	assert.Equal(t, "open_compass", p.Data["action"])
	assert.Equal(t, "submitter", p.Data["submitter_device_id"])

	distance, err := strconv.ParseFloat(p.Data["distance"], 64)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, distance, 0.5)

	bearing, err := strconv.ParseFloat(p.Data["bearing"], 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, bearing, 60.0)
	assert.Less(t, bearing, 75.0)
}

// TestFanOut_RingOnlyPartition checks §8 property 2: a device appears in at
// most one ring, specifically the smallest ring that contains it.
func TestFanOut_RingOnlyPartition(t *testing.T) {
	gw := memstore.New()
	require.NoError(t, gw.UpsertDevice(context.Background(), newDevice("close", 47.6000, -122.3300)))

	sender := &recordingSender{}
	gate := rategate.NewFanoutGate(3, rategate.RealClock{})
	engine := New(DefaultConfig(), devices.New(gw), gw, sender, gate, nil)

	result, err := engine.FanOut(context.Background(), "sighting-b", 47.6005, -122.3300, "submitter")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PerRingCounts[1])
	assert.Equal(t, 0, result.PerRingCounts[5])
	assert.Equal(t, 0, result.PerRingCounts[10])
	assert.Equal(t, 0, result.PerRingCounts[25])
	assert.Equal(t, 1, result.TotalSent)
}

// TestFanOut_EmergencyOverride_LiftsGlobalSuppression matches spec.md §8(b):
// 11 recent confirmations within 1km/5min force level=emergency on the 1km
// ring even though the global 15-minute cap would otherwise suppress fan-out.
func TestFanOut_EmergencyOverride_LiftsGlobalSuppression(t *testing.T) {
	gw := memstore.New()
	ctx := context.Background()

	baseSightingID, err := gw.CreateSighting(ctx, &model.Sighting{})
	require.NoError(t, err)
	for i := 0; i < 11; i++ {
		_, err := gw.AddWitness(ctx, &model.WitnessConfirmation{
			SightingID:  baseSightingID,
			DeviceID:    "witness-" + strconv.Itoa(i),
			Latitude:    f64Ptr(47.6000),
			Longitude:   f64Ptr(-122.3300),
			ConfirmedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	require.NoError(t, gw.UpsertDevice(ctx, newDevice("near", 47.6001, -122.3301)))

	sender := &recordingSender{}
	gate := rategate.NewFanoutGate(3, rategate.RealClock{})
	// Exhaust the global 15-minute cap before this sighting's own fan-out call.
	gate.RecordSighting()
	gate.RecordSighting()
	gate.RecordSighting()

	engine := New(DefaultConfig(), devices.New(gw), gw, sender, gate, nil)
	result, err := engine.FanOut(ctx, "sighting-mass", 47.6000, -122.3300, "submitter")
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalSent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "emergency", sender.sent[0].Data["alert_level"])
}

// TestFanOut_SuppressedWithoutOverride confirms that hitting the global cap
// without an emergency witness spike actually suppresses fan-out.
func TestFanOut_SuppressedWithoutOverride(t *testing.T) {
	gw := memstore.New()
	ctx := context.Background()
	require.NoError(t, gw.UpsertDevice(ctx, newDevice("D2", 47.6110, -122.3310)))

	sender := &recordingSender{}
	gate := rategate.NewFanoutGate(3, rategate.RealClock{})
	gate.RecordSighting()
	gate.RecordSighting()
	gate.RecordSighting()

	engine := New(DefaultConfig(), devices.New(gw), gw, sender, gate, nil)
	result, err := engine.FanOut(ctx, "sighting-suppressed", 47.6213, -122.3790, "submitter")
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalSent)
	assert.Empty(t, sender.sent)
}

func TestEscalationFor_Thresholds(t *testing.T) {
	assert.Equal(t, model.LevelNormal, escalationFor(0))
	assert.Equal(t, model.LevelNormal, escalationFor(2))
	assert.Equal(t, model.LevelUrgent, escalationFor(3))
	assert.Equal(t, model.LevelUrgent, escalationFor(9))
	assert.Equal(t, model.LevelEmergency, escalationFor(10))
}

func TestLevelForRing_EscalationNeverLowersLevel(t *testing.T) {
	assert.Equal(t, model.LevelNormal, levelForRing(25, model.LevelNormal))
	assert.Equal(t, model.LevelEmergency, levelForRing(25, model.LevelEmergency))
	assert.Equal(t, model.LevelEmergency, levelForRing(1, model.LevelNormal))
}
