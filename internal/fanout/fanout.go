// Package fanout implements the fan-out engine (§4.G): ring computation,
// escalation-level selection, ordered concurrent batch dispatch, and the
// emergency override for the global rate gate. Grounded on
// original_source/api/services/proximity_alert_service.py, the richest source
// for this component's ring logic, escalation thresholds and notification
// templates.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ufobeep/beepnet/internal/beeperr"
	"github.com/ufobeep/beepnet/internal/devices"
	"github.com/ufobeep/beepnet/internal/geo"
	"github.com/ufobeep/beepnet/internal/model"
	"github.com/ufobeep/beepnet/internal/push"
	"github.com/ufobeep/beepnet/internal/rategate"
	"github.com/ufobeep/beepnet/internal/store"
	"github.com/ufobeep/beepnet/internal/taskrunner"
)

// Config holds the tunables from spec.md §6's configuration surface that this
// engine reads.
type Config struct {
	RingsKM                       []float64 // default [1, 5, 10, 25]
	RingConcurrency               int       // default 4
	EmergencyOverrideWitnessCount int       // default 10, within 1km/5min
}

// DefaultConfig matches spec.md's defaults.
func DefaultConfig() Config {
	return Config{
		RingsKM:                       []float64{1, 5, 10, 25},
		RingConcurrency:               4,
		EmergencyOverrideWitnessCount: 10,
	}
}

// Engine fans a sighting out to nearby devices.
type Engine struct {
	cfg        Config
	directory  *devices.Directory
	gateway    store.Gateway
	sender     push.Sender
	fanoutGate *rategate.FanoutGate
	logger     *slog.Logger
}

// New builds a fan-out Engine.
func New(cfg Config, directory *devices.Directory, gateway store.Gateway, sender push.Sender, fanoutGate *rategate.FanoutGate, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg: cfg, directory: directory, gateway: gateway, sender: sender,
		fanoutGate: fanoutGate, logger: logger.With("component", "fanout"),
	}
}

// RingsKM returns the configured ring radii, for callers (§4.L's ingestion
// response) that need the outermost radius without duplicating Config.
func (e *Engine) RingsKM() []float64 {
	return e.cfg.RingsKM
}

// Result is fan_out's return value (§4.G).
type Result struct {
	TotalSent         int
	PerRingCounts     map[float64]int
	DeliveryTimeMS    float64
	EscalationApplied model.AlertLevel
}

// FanOut is the entry point: fan_out(sighting_id, lat, lon, submitter_device_id).
func (e *Engine) FanOut(ctx context.Context, sightingID string, lat, lon float64, submitterDeviceID string) (*Result, error) {
	start := time.Now()

	if e.sender == nil {
		return &Result{PerRingCounts: map[float64]int{}}, beeperr.New(beeperr.KindDispatchUnavailable, "fanout", "no push dispatcher configured")
	}

	// Step 1: local witness density -> escalation.
	localWitnesses, err := e.gateway.RecentWitnessCount(ctx, lat, lon, 10, 30)
	if err != nil {
		e.logger.Warn("recent witness count failed, defaulting to 0", "error", err)
		localWitnesses = 0
	}
	escalation := escalationFor(localWitnesses)

	// Step 2: global rate gate + emergency override. The override is checked
	// here, in the fan-out engine, per the §9 Open Question decision — never in
	// the device-query path. This sighting always counts toward the global
	// window, whether or not it ends up suppressed.
	var suppressed bool
	if e.fanoutGate != nil {
		suppressed = e.fanoutGate.RecordSighting()
	}
	if suppressed {
		emergencyWitnesses, err := e.gateway.RecentWitnessCount(ctx, lat, lon, 1, 5)
		overridden := err == nil && emergencyWitnesses >= e.cfg.EmergencyOverrideWitnessCount
		if !overridden {
			return &Result{PerRingCounts: map[float64]int{}, EscalationApplied: escalation}, nil
		}
	}

	// Step 3: ring computation with ring-only partition — each device is kept
	// only in the first (smallest) ring that contains it.
	rings := e.cfg.RingsKM
	if len(rings) == 0 {
		rings = DefaultConfig().RingsKM
	}

	ringDevices := make([][]devices.Result, len(rings))
	seen := map[string]bool{}
	for i, r := range rings {
		all, err := e.directory.WithinRadius(ctx, lat, lon, r, submitterDeviceID)
		if err != nil {
			return nil, beeperr.Wrap(beeperr.KindTransientBackend, "fanout", "device directory query failed", err)
		}
		var onlyThisRing []devices.Result
		for _, d := range all {
			if seen[d.DeviceID] {
				continue
			}
			seen[d.DeviceID] = true
			onlyThisRing = append(onlyThisRing, d)
		}
		ringDevices[i] = onlyThisRing
	}

	// Steps 4-5: per-ring level selection, concurrent dispatch.
	pool := taskrunner.New(e.cfg.RingConcurrency)
	var mu sync.Mutex
	perRingCounts := make(map[float64]int, len(rings))

	var tasks []taskrunner.Task
	for i, r := range rings {
		ringSet := ringDevices[i]
		if len(ringSet) == 0 {
			perRingCounts[r] = 0
			continue
		}
		level := levelForRing(r, escalation)
		r, level, ringSet := r, level, ringSet
		tasks = append(tasks, func(taskCtx context.Context) {
			sent := e.dispatchRing(taskCtx, sightingID, lat, lon, submitterDeviceID, r, level, localWitnesses, ringSet)
			mu.Lock()
			perRingCounts[r] = sent
			mu.Unlock()
		})
	}
	pool.Run(ctx, tasks)

	total := 0
	for _, c := range perRingCounts {
		total += c
	}

	return &Result{
		TotalSent:         total,
		PerRingCounts:     perRingCounts,
		DeliveryTimeMS:    float64(time.Since(start).Microseconds()) / 1000.0,
		EscalationApplied: escalation,
	}, nil
}

// escalationFor maps recent local witness density to an escalation level, per
// §4.G step 1: {<3, 3-9, >=10} -> {normal, urgent, emergency}.
func escalationFor(witnessCount int) model.AlertLevel {
	switch {
	case witnessCount >= 10:
		return model.LevelEmergency
	case witnessCount >= 3:
		return model.LevelUrgent
	default:
		return model.LevelNormal
	}
}

// levelForRing picks the per-ring base level then raises it to escalation when
// stricter, per §4.G step 4.
func levelForRing(ringKM float64, escalation model.AlertLevel) model.AlertLevel {
	var base model.AlertLevel
	switch {
	case ringKM <= 1:
		base = model.LevelEmergency
	case ringKM <= 5:
		base = model.LevelUrgent
	default:
		base = model.LevelNormal
	}
	return stricterLevel(base, escalation)
}

func levelRank(l model.AlertLevel) int {
	switch l {
	case model.LevelEmergency:
		return 3
	case model.LevelUrgent:
		return 2
	case model.LevelNormal:
		return 1
	default:
		return 0
	}
}

func stricterLevel(a, b model.AlertLevel) model.AlertLevel {
	if levelRank(b) > levelRank(a) {
		return b
	}
	return a
}

// dispatchRing builds each device's individualised payload (bearing/distance
// computed per-device, fully formed before send per §4.G's ordering guarantee),
// sends the batch, records per-device alert metadata, and returns the count of
// successful deliveries.
func (e *Engine) dispatchRing(ctx context.Context, sightingID string, sightingLat, sightingLon float64, submitterDeviceID string, ringKM float64, level model.AlertLevel, witnessCount int, ringSet []devices.Result) int {
	title, body := alertMessage(ringKM, witnessCount, level)

	payloads := make([]push.Payload, len(ringSet))
	for i, d := range ringSet {
		data := map[string]string{
			"type":                "sighting_alert",
			"sighting_id":         sightingID,
			"alert_level":         string(level),
			"witness_count":       fmt.Sprintf("%d", witnessCount),
			"timestamp":           time.Now().UTC().Format(time.RFC3339),
			"action":              "open_compass",
			"submitter_device_id": submitterDeviceID,
			"latitude":            fmt.Sprintf("%f", sightingLat),
			"longitude":           fmt.Sprintf("%f", sightingLon),
			"location_name":       "UFO Sighting",
			"distance":            fmt.Sprintf("%.1f", d.DistanceKM),
		}
		if d.Lat != 0 || d.Lon != 0 {
			if bearing, err := geo.BearingDeg(d.Lat, d.Lon, sightingLat, sightingLon); err == nil {
				data["bearing"] = fmt.Sprintf("%.1f", bearing)
			}
		}
		payloads[i] = push.Payload{DeviceID: d.DeviceID, Token: d.PushToken, Title: title, Body: body, Data: data}
	}

	outcomes, err := e.sender.Send(ctx, payloads)
	if err != nil {
		e.logger.Warn("ring dispatch failed", "ring_km", ringKM, "error", err)
		return 0
	}

	sent := 0
	byDevice := map[string]devices.Result{}
	for _, d := range ringSet {
		byDevice[d.DeviceID] = d
	}
	for _, o := range outcomes {
		record := &model.AlertRecord{
			ID:         uuid.NewString(),
			SightingID: sightingID,
			DeviceID:   o.DeviceID,
			DistanceKM: byDevice[o.DeviceID].DistanceKM,
			RingKM:     ringKM,
			Level:      level,
			Delivered:  o.Delivered,
		}
		if !o.Delivered && o.ErrorCode != "" {
			record.Error = &o.ErrorCode
		}
		if err := e.gateway.RecordAlert(ctx, record); err != nil {
			e.logger.Warn("failed to record alert", "error", err)
		}
		if o.Delivered {
			sent++
		}
	}
	return sent
}
