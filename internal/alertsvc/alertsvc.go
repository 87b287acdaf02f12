// Package alertsvc implements the §4.L facade that glues the independently
// gradeable components together into the two end-to-end flows spec.md §4.2
// names: ingestion (`Adapter -> L -> C -> D(write) -> (fork) G and H`) and
// witness confirmation (`Adapter -> L -> B -> K(validate) -> D(write) ->
// K(recompute) -> possibly G(escalation)`). Grounded on
// functions/router/function.go's dispatch shape, stripped of its package-level
// singleton per SPEC_FULL.md's "construct a root core value explicitly"
// decision, and composed with internal/taskrunner so enrichment never delays
// the ingestion response.
package alertsvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ufobeep/beepnet/internal/beeperr"
	"github.com/ufobeep/beepnet/internal/enrichment"
	"github.com/ufobeep/beepnet/internal/fanout"
	"github.com/ufobeep/beepnet/internal/media"
	"github.com/ufobeep/beepnet/internal/model"
	"github.com/ufobeep/beepnet/internal/privacy"
	"github.com/ufobeep/beepnet/internal/store"
	"github.com/ufobeep/beepnet/internal/witness"
)

// Config holds the §4.L-level tunables that aren't owned by a lower component.
type Config struct {
	Jitter privacy.Config
}

// DefaultConfig matches spec.md's defaults.
func DefaultConfig() Config {
	return Config{Jitter: privacy.DefaultConfig()}
}

// Core is the root value every request handler is given explicitly — no
// package-level singleton, per SPEC_FULL.md §9's Open Question decision.
type Core struct {
	cfg          Config
	gateway      store.Gateway
	fanoutEngine *fanout.Engine
	orchestrator *enrichment.Orchestrator
	witnessAgg   *witness.Aggregator
	publisher    Publisher
	mediaStore   media.Store
	logger       *slog.Logger
}

// New builds a Core. publisher may be nil, in which case media-deferred
// fan-out signals are dropped with a warning (matching NoopDispatcher's
// degrade-gracefully shape in internal/push). mediaStore may be nil, in which
// case AttachMedia fails with beeperr.KindDispatchUnavailable.
func New(cfg Config, gateway store.Gateway, fanoutEngine *fanout.Engine, orchestrator *enrichment.Orchestrator, witnessAgg *witness.Aggregator, publisher Publisher, mediaStore media.Store, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Jitter == (privacy.Config{}) {
		cfg.Jitter = DefaultConfig().Jitter
	}
	return &Core{
		cfg: cfg, gateway: gateway, fanoutEngine: fanoutEngine,
		orchestrator: orchestrator, witnessAgg: witnessAgg, publisher: publisher,
		mediaStore: mediaStore,
		logger:     logger.With("component", "alertsvc"),
	}
}

// IngestRequest is the §6 ingestion endpoint's request body.
type IngestRequest struct {
	DeviceID    string
	Latitude    float64
	Longitude   float64
	AccuracyM   *float64
	AltitudeM   *float64
	AzimuthDeg  *float64
	PitchDeg    *float64
	RollDeg     *float64
	Category    string
	Title       *string
	Description *string
	HasMedia    bool
}

// AlertStats is the §6 ingestion response's alert_stats sub-object.
type AlertStats struct {
	TotalAlerted int
	RadiusKM     float64
}

// IngestResult is the §6 ingestion endpoint's response body.
type IngestResult struct {
	SightingID       string
	Message          string
	AlertMessage     string
	AlertStats       AlertStats
	WitnessCount     int
	LocationJittered bool
	ProximityAlerts  *fanout.Result
}

// Ingest implements the ingestion flow. Enrichment (H) always runs detached in
// a background goroutine and never delays the response. Fan-out (G) runs
// synchronously and feeds the response's alert_stats/proximity_alerts, unless
// HasMedia is set, in which case it is deferred to a Pub/Sub signal published
// once media upload completes (§6).
func (c *Core) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.DeviceID == "" {
		return nil, beeperr.New(beeperr.KindInput, "alertsvc", "device_id is required")
	}

	jitteredLat, jitteredLon, err := privacy.Apply(c.cfg.Jitter, req.Latitude, req.Longitude, nil)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindInput, "alertsvc", "invalid location", err)
	}

	origLat, origLon := req.Latitude, req.Longitude
	sighting := &model.Sighting{
		ID:               uuid.NewString(),
		ReporterDeviceID: req.DeviceID,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		FanoutPending:    req.HasMedia,
		SensorData: model.SensorData{
			Location: model.Location{
				Lat: jitteredLat, Lon: jitteredLon,
				AccuracyM: req.AccuracyM, AltitudeM: req.AltitudeM,
				OriginalLat: &origLat, OriginalLon: &origLon,
			},
			AzimuthDeg: req.AzimuthDeg,
			PitchDeg:   req.PitchDeg,
			RollDeg:    req.RollDeg,
			Timestamp:  time.Now(),
			DeviceID:   req.DeviceID,
		},
	}

	sightingID, err := c.gateway.CreateSighting(ctx, sighting)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "alertsvc", "failed to persist sighting", err)
	}

	c.runEnrichmentInBackground(sightingID, sighting)

	result := &IngestResult{
		SightingID:       sightingID,
		Message:          "Sighting reported",
		WitnessCount:     sighting.WitnessCount,
		LocationJittered: true,
	}

	if req.HasMedia {
		if c.publisher != nil {
			publishDeferredFanout(ctx, c.publisher, c.logger, DeferredFanoutMessage{
				SightingID: sightingID, Lat: jitteredLat, Lon: jitteredLon, SubmitterDeviceID: req.DeviceID,
			})
		} else {
			c.logger.Warn("fan-out deferred but no publisher configured, dropping signal", "sighting_id", sightingID)
		}
		result.Message = "Sighting reported, alerts will be sent once media uploads"
		result.AlertMessage = fanout.SummaryMessage(model.LevelNormal, sighting.WitnessCount)
		return result, nil
	}

	fanOutResult, err := c.fanoutEngine.FanOut(ctx, sightingID, jitteredLat, jitteredLon, req.DeviceID)
	if err != nil {
		c.logger.Warn("fan-out failed, ingestion still succeeds", "sighting_id", sightingID, "error", err)
		fanOutResult = &fanout.Result{PerRingCounts: map[float64]int{}}
	}

	result.ProximityAlerts = fanOutResult
	result.AlertStats = AlertStats{TotalAlerted: fanOutResult.TotalSent, RadiusKM: outermostRadius(c.fanoutEngine)}
	result.AlertMessage = fanout.SummaryMessage(fanOutResult.EscalationApplied, sighting.WitnessCount)

	return result, nil
}

// runEnrichmentInBackground launches the §4.H processor batch detached from
// ctx's lifetime, so a caller-cancelled or short-deadline request context never
// cuts enrichment short (§5/§9: "ingestion must not await background work").
func (c *Core) runEnrichmentInBackground(sightingID string, sighting *model.Sighting) {
	if c.orchestrator == nil {
		return
	}
	ectx := enrichment.Context{
		SightingID: sightingID,
		Latitude:   sighting.SensorData.Location.Lat,
		Longitude:  sighting.SensorData.Location.Lon,
		AltitudeM:  sighting.SensorData.Location.AltitudeM,
		Timestamp:  sighting.SensorData.Timestamp,
		AzimuthDeg: sighting.SensorData.AzimuthDeg,
		PitchDeg:   sighting.SensorData.PitchDeg,
		RollDeg:    sighting.SensorData.RollDeg,
		Category:   sighting.Category,
	}
	if sighting.Title != nil {
		ectx.Title = *sighting.Title
	}
	if sighting.Description != nil {
		ectx.Description = *sighting.Description
	}

	go func() {
		bgCtx := context.Background()
		results := c.orchestrator.Run(bgCtx, ectx)
		for name, result := range results {
			if err := c.gateway.UpdateEnrichment(bgCtx, sightingID, name, result.Data); err != nil {
				c.logger.Warn("failed to write back enrichment result", "sighting_id", sightingID, "processor", name, "error", err)
			}
		}
	}()
}

// RunDeferredFanout runs the ring fan-out functions/fanout-deferred was
// waiting to trigger once a has_media=true sighting's media upload completed
// (§6). It is the Pub/Sub subscriber's only way to reach the fan-out engine,
// since fanoutEngine itself stays unexported. It shares the same
// ClearFanoutPending check-and-clear AttachMedia uses, so whichever of the two
// paths — this async Pub/Sub subscriber or a direct AttachMedia call on the
// same Core — observes the pending flag first is the only one that fans out.
func (c *Core) RunDeferredFanout(ctx context.Context, msg DeferredFanoutMessage) (*fanout.Result, error) {
	if c.fanoutEngine == nil {
		return nil, beeperr.New(beeperr.KindDispatchUnavailable, "alertsvc", "no fan-out engine configured")
	}
	wasPending, err := c.gateway.ClearFanoutPending(ctx, msg.SightingID)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "alertsvc", "failed to clear fanout_pending", err)
	}
	if !wasPending {
		return &fanout.Result{PerRingCounts: map[float64]int{}}, nil
	}
	return c.fanoutEngine.FanOut(ctx, msg.SightingID, msg.Lat, msg.Lon, msg.SubmitterDeviceID)
}

// AttachMediaResult is the §6 media association endpoint's response body.
type AttachMediaResult struct {
	Files []model.MediaFile
	Count int
}

// AttachMedia implements the §6 media association endpoint: persist the
// uploaded files, append them to the sighting, and — if this sighting's
// ingestion deferred fan-out waiting on media (HasMedia=true) — run that
// fan-out now, in-process, since this Core already holds a live fan-out
// engine and doesn't need the Pub/Sub round trip functions/fanout-deferred
// uses for the async path.
func (c *Core) AttachMedia(ctx context.Context, sightingID string, uploads []media.Upload) (*AttachMediaResult, error) {
	if c.mediaStore == nil {
		return nil, beeperr.New(beeperr.KindDispatchUnavailable, "alertsvc", "no media store configured")
	}

	sighting, err := c.gateway.GetSighting(ctx, sightingID)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindNotFound, "alertsvc", "sighting not found", err)
	}

	files, err := media.Attach(ctx, c.mediaStore, sightingID, uploads)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "alertsvc", "failed to store media", err)
	}

	if err := c.gateway.AttachMedia(ctx, sightingID, files); err != nil {
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "alertsvc", "failed to persist media", err)
	}

	wasPending, err := c.gateway.ClearFanoutPending(ctx, sightingID)
	if err != nil {
		c.logger.Warn("failed to clear fanout_pending", "sighting_id", sightingID, "error", err)
	} else if wasPending && c.fanoutEngine != nil {
		if _, err := c.fanoutEngine.FanOut(ctx, sightingID, sighting.SensorData.Location.Lat, sighting.SensorData.Location.Lon, sighting.ReporterDeviceID); err != nil {
			c.logger.Warn("deferred fan-out failed after media attach", "sighting_id", sightingID, "error", err)
		}
	}

	allFiles := append(sighting.MediaInfo.Files, files...)
	return &AttachMediaResult{Files: files, Count: len(allFiles)}, nil
}

func outermostRadius(e *fanout.Engine) float64 {
	if e == nil {
		return 0
	}
	rings := e.RingsKM()
	if len(rings) == 0 {
		return 0
	}
	max := rings[0]
	for _, r := range rings[1:] {
		if r > max {
			max = r
		}
	}
	return max
}

// ConfirmationRequest is the §6 witness confirmation endpoint's request body.
type ConfirmationRequest struct {
	DeviceID     string
	Latitude     *float64
	Longitude    *float64
	AltitudeM    *float64
	AccuracyM    *float64
	BearingDeg   *float64
	StillVisible bool
	Description  *string
	Confidence   model.WitnessConfidence
	Platform     *string
	AppVersion   *string
}

// ConfirmationResult is the §6 witness confirmation endpoint's response body.
type ConfirmationResult struct {
	Confirmed          bool
	NewWitnessCount    int
	TotalConfirmations int
	ConfirmationTime   time.Time
	SightingAgeMinutes float64
}

// ConfirmWitness implements the confirmation flow: validate, persist,
// recompute consensus, and escalate fan-out when the recomputed consensus
// crosses the auto-escalation thresholds (§4.K, §4.2).
func (c *Core) ConfirmWitness(ctx context.Context, sightingID string, req ConfirmationRequest) (*ConfirmationResult, error) {
	sighting, err := c.gateway.GetSighting(ctx, sightingID)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindNotFound, "alertsvc", "sighting not found", err)
	}

	visibilityKM := visibilityFromEnrichment(sighting)
	if err := c.witnessAgg.ValidateConfirmation(ctx, sighting, req.DeviceID, req.Latitude, req.Longitude, visibilityKM); err != nil {
		return nil, err
	}

	now := time.Now()
	confirmation := &model.WitnessConfirmation{
		ID: uuid.NewString(), SightingID: sightingID, DeviceID: req.DeviceID, ConfirmedAt: now,
		Latitude: req.Latitude, Longitude: req.Longitude, AltitudeM: req.AltitudeM, AccuracyM: req.AccuracyM,
		BearingDeg: req.BearingDeg, StillVisible: req.StillVisible, Confidence: req.Confidence,
		Description: req.Description, Platform: req.Platform, AppVersion: req.AppVersion,
	}

	newCount, err := c.gateway.AddWitness(ctx, confirmation)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "alertsvc", "failed to persist confirmation", err)
	}

	consensus, err := c.witnessAgg.AnalyzeSighting(ctx, sightingID)
	if err != nil {
		c.logger.Warn("consensus recompute failed", "sighting_id", sightingID, "error", err)
	} else {
		if err := c.gateway.UpdateEnrichment(ctx, sightingID, "witness_consensus", consensusData(consensus)); err != nil {
			c.logger.Warn("failed to write back consensus", "sighting_id", sightingID, "error", err)
		}
		if consensus.ShouldEscalate && c.fanoutEngine != nil {
			go func() {
				bgCtx := context.Background()
				if _, err := c.fanoutEngine.FanOut(bgCtx, sightingID, sighting.SensorData.Location.Lat, sighting.SensorData.Location.Lon, req.DeviceID); err != nil {
					c.logger.Warn("escalation fan-out failed", "sighting_id", sightingID, "error", err)
				}
			}()
		}
	}

	return &ConfirmationResult{
		Confirmed:          true,
		NewWitnessCount:    newCount,
		TotalConfirmations: newCount,
		ConfirmationTime:   now,
		SightingAgeMinutes: now.Sub(sighting.CreatedAt).Minutes(),
	}, nil
}

// visibilityFromEnrichment extracts the weather processor's visibility_km, if
// present, for the witness distance guard's §8 seed-scenario (f) override.
func visibilityFromEnrichment(sighting *model.Sighting) float64 {
	weather, ok := sighting.EnrichmentData["weather"].(map[string]any)
	if !ok {
		return 0
	}
	v, ok := weather["visibility_km"].(float64)
	if !ok {
		return 0
	}
	return v
}

// ListResult is the §6 list endpoint's response body. Total mirrors the
// returned page size: Gateway exposes no separate count query, so a caller
// wanting a true total distinct from the page must paginate to the end.
type ListResult struct {
	Alerts []*model.Sighting
	Total  int
	Limit  int
	Offset int
}

// ListSightings implements the §6 list read endpoint. Each returned Sighting
// already carries only the jittered location (OriginalLat/OriginalLon are
// tagged json:"-") and its full enrichment map and media file array.
func (c *Core) ListSightings(ctx context.Context, limit, offset int) (*ListResult, error) {
	sightings, err := c.gateway.ListPublicSightings(ctx, limit, offset)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "alertsvc", "failed to list sightings", err)
	}
	return &ListResult{Alerts: sightings, Total: len(sightings), Limit: limit, Offset: offset}, nil
}

// DetailResult is the §6 detail read endpoint's response body: a list entry
// plus the witness aggregation summary written back by ConfirmWitness.
type DetailResult struct {
	*model.Sighting
	WitnessSummary map[string]any
}

// GetSightingDetail implements the §6 detail read endpoint.
func (c *Core) GetSightingDetail(ctx context.Context, sightingID string) (*DetailResult, error) {
	sighting, err := c.gateway.GetSighting(ctx, sightingID)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindNotFound, "alertsvc", "sighting not found", err)
	}
	summary, _ := sighting.EnrichmentData["witness_consensus"].(map[string]any)
	return &DetailResult{Sighting: sighting, WitnessSummary: summary}, nil
}

// WitnessStatusResult is the §6 witness-status read endpoint's response body.
type WitnessStatusResult struct {
	HasConfirmed bool
	ConfirmedAt  *time.Time
	DeviceID     string
	SightingID   string
}

// WitnessStatus implements the §6 witness-status read endpoint.
func (c *Core) WitnessStatus(ctx context.Context, sightingID, deviceID string) (*WitnessStatusResult, error) {
	has, err := c.gateway.HasWitnessed(ctx, sightingID, deviceID)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindTransientBackend, "alertsvc", "failed to check witness status", err)
	}
	result := &WitnessStatusResult{HasConfirmed: has, DeviceID: deviceID, SightingID: sightingID}
	if has {
		if witnesses, err := c.gateway.ListWitnesses(ctx, sightingID); err == nil {
			for _, w := range witnesses {
				if w.DeviceID == deviceID {
					t := w.ConfirmedAt
					result.ConfirmedAt = &t
					break
				}
			}
		}
	}
	return result, nil
}

func consensusData(r witness.TriangulationResult) map[string]any {
	data := map[string]any{
		"confidence_score":    r.ConfidenceScore,
		"consensus_quality":   r.ConsensusQuality,
		"witness_count":       r.WitnessCount,
		"agreement_percentage": r.AgreementPercentage,
		"should_escalate":     r.ShouldEscalate,
	}
	if r.ObjectLat != nil && r.ObjectLon != nil {
		data["object_lat"] = *r.ObjectLat
		data["object_lon"] = *r.ObjectLon
	}
	if r.AverageBearingErrorDeg != nil {
		data["average_bearing_error_deg"] = *r.AverageBearingErrorDeg
	}
	if r.EstimatedRadiusM != nil {
		data["estimated_radius_m"] = *r.EstimatedRadiusM
	}
	return data
}
