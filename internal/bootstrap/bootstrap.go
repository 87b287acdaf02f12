package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"

	"github.com/ufobeep/beepnet/internal/aircraft"
	"github.com/ufobeep/beepnet/internal/alertsvc"
	"github.com/ufobeep/beepnet/internal/devices"
	"github.com/ufobeep/beepnet/internal/enrichment"
	"github.com/ufobeep/beepnet/internal/enrichment/providers/aircraftmatch"
	"github.com/ufobeep/beepnet/internal/enrichment/providers/celestial"
	"github.com/ufobeep/beepnet/internal/enrichment/providers/contentfilter"
	"github.com/ufobeep/beepnet/internal/enrichment/providers/geocoding"
	"github.com/ufobeep/beepnet/internal/enrichment/providers/satellite"
	"github.com/ufobeep/beepnet/internal/enrichment/providers/weather"
	"github.com/ufobeep/beepnet/internal/fanout"
	"github.com/ufobeep/beepnet/internal/media"
	"github.com/ufobeep/beepnet/internal/obslog"
	"github.com/ufobeep/beepnet/internal/privacy"
	"github.com/ufobeep/beepnet/internal/push"
	"github.com/ufobeep/beepnet/internal/rategate"
	"github.com/ufobeep/beepnet/internal/store"
	"github.com/ufobeep/beepnet/internal/witness"
)

// Core bundles the wired alertsvc.Core with the closer every caller must defer.
type Core struct {
	*alertsvc.Core
	Logger *slog.Logger
	Close  func()
}

// NewCore wires every component into a root Core, per spec.md §9's
// "construct a root value during initialisation... pass it explicitly to
// request handlers" decision. Optional dependencies (FCM, Pub/Sub, OpenSky,
// Gemini, Sentry) degrade gracefully rather than failing startup, matching
// pkg/bootstrap/bootstrap.go's "log but don't fail" treatment of
// Notifications/Auth/Sentry; only Firestore is load-bearing enough to fail
// NewCore outright.
func NewCore(ctx context.Context, cfg *Config) (*Core, error) {
	logger := obslog.New("beepnet", obslog.SentryConfig{
		DSN: cfg.SentryDSN, Environment: cfg.ProjectID, Release: cfg.Release, TracesSampleRate: 0.1,
	})
	if err := obslog.InitSentry(obslog.SentryConfig{DSN: cfg.SentryDSN, Environment: cfg.ProjectID, Release: cfg.Release, TracesSampleRate: 0.1}, logger); err != nil {
		logger.Warn("sentry init failed", "error", err)
	}

	logger.Info("initializing core", "project_id", cfg.ProjectID)

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("firestore init: %w", err)
	}
	gateway := store.Gateway(store.NewFirestoreGateway(fsClient))

	var publisher alertsvc.Publisher = &alertsvc.LogPublisher{Logger: logger}
	if psClient, err := pubsub.NewClient(ctx, cfg.ProjectID); err != nil {
		logger.Warn("pubsub init failed, deferred fan-out signals will be logged not published", "error", err)
	} else {
		publisher = &alertsvc.PubSubPublisher{Client: psClient}
	}

	var sender push.Sender = push.NoopDispatcher{}
	if fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}); err != nil {
		logger.Warn("firebase app init failed, push notifications disabled", "error", err)
	} else if dispatcher, err := push.NewDispatcher(ctx, fbApp, logger); err != nil {
		logger.Warn("FCM init failed, push notifications disabled", "error", err)
	} else {
		sender = dispatcher
	}

	clock := rategate.RealClock{}
	directory := devices.New(gateway)
	fanoutGate := rategate.NewFanoutGate(cfg.FanoutRateCapPer15Min, clock)
	fanoutEngine := fanout.New(fanout.Config{
		RingsKM:                       cfg.RingsKM,
		RingConcurrency:               cfg.RingConcurrency,
		EmergencyOverrideWitnessCount: cfg.EmergencyOverrideWitnessCount,
	}, directory, gateway, sender, fanoutGate, logger)

	witnessGate := rategate.NewWitnessGate(cfg.WitnessRateLimitPerHour, clock)
	witnessAgg := witness.New(witness.Config{
		WindowMinutes: cfg.WitnessWindowMinutes, DefaultMaxConfirmKM: cfg.WitnessDefaultMaxKM,
	}, gateway, witnessGate, clock)

	registry := buildEnrichmentRegistry(cfg, logger)
	orchestrator := enrichment.New(registry, cfg.EnrichmentConcurrency, logger)

	var mediaStore media.Store
	var gcsClient *gcs.Client
	if gcsClient, err = gcs.NewClient(ctx); err != nil {
		logger.Warn("gcs init failed, media attachments will fail until configured", "error", err)
	} else {
		mediaStore = &media.GCSStore{Client: gcsClient, Bucket: cfg.MediaBucket}
	}

	alertCfg := alertsvc.Config{Jitter: privacy.Config{MinMeters: cfg.JitterMinM, MaxMeters: cfg.JitterMaxM}}
	core := alertsvc.New(alertCfg, gateway, fanoutEngine, orchestrator, witnessAgg, publisher, mediaStore, logger)

	closeFn := func() {
		obslog.Flush(2 * time.Second)
		_ = fsClient.Close()
		if gcsClient != nil {
			_ = gcsClient.Close()
		}
	}

	return &Core{Core: core, Logger: logger, Close: closeFn}, nil
}

// buildEnrichmentRegistry registers every §4.I processor in priority order.
// The aircraft-match processor (priority 3) always runs alongside the
// fixed-priority weather/geocoding/celestial/satellite/content-analysis set;
// it is simply the one whose sensor-pose precondition is most often unmet.
func buildEnrichmentRegistry(cfg *Config, logger *slog.Logger) *enrichment.Registry {
	registry := enrichment.NewRegistry()

	httpClient := &http.Client{Timeout: 20 * time.Second}

	registry.Register(weather.New(httpClient))
	registry.Register(geocoding.New(httpClient))
	registry.Register(celestial.New())

	aircraftCfg := aircraft.DefaultConfig()
	aircraftCfg.RadiusKM = cfg.AircraftRadiusKM
	matcher := aircraft.New(aircraftCfg, aircraft.NewOpenSkyFetcher(
		"", cfg.OpenSkyClientID, cfg.OpenSkyClientSecret, 10*time.Second, logger,
	))
	registry.Register(aircraftmatch.New(matcher))

	registry.Register(satellite.New())
	registry.Register(contentfilter.New(cfg.GeminiAPIKey, cfg.ContentFilterURL, cfg.ContentFilterKey, httpClient))

	return registry
}
