// Package features runs the seed end-to-end scenarios from spec.md §8 as
// godog BDD scenarios, composing the same in-process components the unit
// tests use (internal/store/memstore, internal/alertsvc, internal/witness,
// internal/aircraft) rather than driving cmd/api over HTTP, matching
// SPEC_FULL.md's "thin adapter" boundary: these scenarios exercise the core,
// not the wire format.
package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/ufobeep/beepnet/internal/aircraft"
	"github.com/ufobeep/beepnet/internal/alertsvc"
	"github.com/ufobeep/beepnet/internal/beeperr"
	"github.com/ufobeep/beepnet/internal/devices"
	"github.com/ufobeep/beepnet/internal/fanout"
	"github.com/ufobeep/beepnet/internal/geo"
	"github.com/ufobeep/beepnet/internal/media"
	"github.com/ufobeep/beepnet/internal/model"
	"github.com/ufobeep/beepnet/internal/push"
	"github.com/ufobeep/beepnet/internal/rategate"
	"github.com/ufobeep/beepnet/internal/store/memstore"
	"github.com/ufobeep/beepnet/internal/witness"
)

// earthRadiusKM matches internal/geo's sphere model, so destination points
// computed here land exactly where internal/aircraft's own bearing/distance
// math expects them.
const earthRadiusKM = 6371.0

// destinationPoint is the standard spherical "point at bearing+distance from
// origin" formula, the inverse of geo.BearingDeg/geo.DistanceKM.
func destinationPoint(lat, lon, bearingDeg, distanceKM float64) (float64, float64) {
	angularDistance := distanceKM / earthRadiusKM
	phi1 := lat * math.Pi / 180
	theta := bearingDeg * math.Pi / 180

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(angularDistance) + math.Cos(phi1)*math.Sin(angularDistance)*math.Cos(theta))
	lambda2 := lon*math.Pi/180 + math.Atan2(
		math.Sin(theta)*math.Sin(angularDistance)*math.Cos(phi1),
		math.Cos(angularDistance)-math.Sin(phi1)*math.Sin(phi2),
	)
	return phi2 * 180 / math.Pi, lambda2 * 180 / math.Pi
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"."},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

// recordingSender is a push.Sender fake that remembers every payload sent.
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

// beepnetWorld holds per-scenario state. A fresh instance is created before
// every scenario so runs never leak state into one another.
type beepnetWorld struct {
	t *testing.T

	gw     *memstore.Store
	sender *recordingSender
	core   *alertsvc.Core

	ingestResult *alertsvc.IngestResult
	confirmErr   error

	// aircraft scenario
	observer      aircraft.SensorPose
	aircraftState aircraft.AircraftState
	aircraftResult *aircraft.Result

	// triangulation scenario
	witnessPoints       []witness.WitnessPoint
	triangulationResult witness.TriangulationResult
}

func newBeepnetWorld(t *testing.T) *beepnetWorld {
	gw := memstore.New()
	sender := &recordingSender{}
	directory := devices.New(gw)
	fanoutEngine := fanout.New(fanout.DefaultConfig(), directory, gw, sender, rategate.NewFanoutGate(3, rategate.RealClock{}), nil)
	witnessAgg := witness.New(witness.DefaultConfig(), gw, rategate.NewWitnessGate(5, rategate.RealClock{}), rategate.RealClock{})
	core := alertsvc.New(alertsvc.DefaultConfig(), gw, fanoutEngine, nil, witnessAgg, &alertsvc.LogPublisher{}, media.NewMemStore(), nil)
	return &beepnetWorld{t: t, gw: gw, sender: sender, core: core}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	w := newBeepnetWorld(nil)

	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		*w = *newBeepnetWorld(nil)
		return ctx, nil
	})

	sc.Step(`^a device "([^"]*)" at latitude ([-\d.]+) and longitude ([-\d.]+) with FCM token "([^"]*)"$`, w.aDeviceAt)
	sc.Step(`^a sighting is ingested at latitude ([-\d.]+) and longitude ([-\d.]+)$`, w.aSightingIsIngested)
	sc.Step(`^the jittered location is within (\d+) meters of the original$`, w.theJitteredLocationIsWithin)
	sc.Step(`^device "([^"]*)" receives exactly (\d+) push payload$`, w.deviceReceivesExactlyPushPayload)
	sc.Step(`^the push payload bearing is between (\d+) and (\d+) degrees$`, w.thePushPayloadBearingIsBetween)
	sc.Step(`^the push payload distance is approximately ([\d.]+) km$`, w.thePushPayloadDistanceIsApproximately)

	sc.Step(`^(\d+) confirmations within 1 km and 5 minutes of latitude ([-\d.]+) and longitude ([-\d.]+)$`, w.nConfirmationsWithinRingAndWindow)
	sc.Step(`^a new sighting is ingested from a different device at the same location$`, w.aNewSightingFromADifferentDevice)
	sc.Step(`^the 1 km ring alert level is "([^"]*)"$`, w.theRingAlertLevelIs)

	sc.Step(`^device "([^"]*)" has confirmed (\d+) different sightings within the last 10 minutes$`, w.deviceHasConfirmedNDifferentSightings)
	sc.Step(`^device "([^"]*)" submits a 6th confirmation within the hour$`, w.deviceSubmitsAConfirmation)
	sc.Step(`^the confirmation fails with kind "([^"]*)"$`, w.theConfirmationFailsWithKind)

	sc.Step(`^an observer at latitude ([-\d.]+) and longitude ([-\d.]+) with azimuth (\d+) and pitch (\d+)$`, w.anObserverAt)
	sc.Step(`^an aircraft whose line of sight from the observer is bearing ([\d.]+) and elevation ([\d.]+)$`, w.anAircraftOnLineOfSight)
	sc.Step(`^the aircraft matcher runs$`, w.theAircraftMatcherRuns)
	sc.Step(`^the result is a plane match$`, w.theResultIsAPlaneMatch)
	sc.Step(`^the angular error is less than ([\d.]+) degrees$`, w.theAngularErrorIsLessThan)
	sc.Step(`^the confidence is greater than ([\d.]+)$`, w.theConfidenceIsGreaterThan)

	sc.Step(`^a witness at latitude ([-\d.]+) and longitude ([-\d.]+) with bearing (\d+)$`, w.aWitnessAt)
	sc.Step(`^the witnesses are triangulated$`, w.theWitnessesAreTriangulated)
	sc.Step(`^the triangulated point is within (\d+) km of latitude ([\d.]+) and longitude ([\d.]+)$`, w.theTriangulatedPointIsWithin)

	sc.Step(`^a sighting with weather visibility of (\d+) km$`, w.aSightingWithWeatherVisibility)
	sc.Step(`^a confirmation is submitted from (\d+) km away$`, w.aConfirmationIsSubmittedFromAway)
	sc.Step(`^the failure cites an effective limit of (\d+) km$`, w.theFailureCitesAnEffectiveLimit)
}

// --- Scenario (a): ingestion fan-out ---

func (w *beepnetWorld) aDeviceAt(ctx context.Context, deviceID string, lat, lon float64, token string) error {
	return w.gw.UpsertDevice(ctx, &model.Device{
		ID: deviceID, DeviceID: deviceID, IsActive: true, PushEnabled: true, PushToken: &token,
		AlertNotifications: true, Lat: &lat, Lon: &lon,
	})
}

func (w *beepnetWorld) aSightingIsIngested(ctx context.Context, lat, lon float64) error {
	result, err := w.core.Ingest(ctx, alertsvc.IngestRequest{DeviceID: "submitter", Latitude: lat, Longitude: lon, Category: "ufo"})
	w.ingestResult = result
	return err
}

func (w *beepnetWorld) theJitteredLocationIsWithin(ctx context.Context, maxMeters int) error {
	if w.ingestResult == nil || !w.ingestResult.LocationJittered {
		return fmt.Errorf("expected a jittered location")
	}
	s, err := w.gw.GetSighting(ctx, w.ingestResult.SightingID)
	if err != nil {
		return err
	}
	loc := s.SensorData.Location
	if loc.OriginalLat == nil || loc.OriginalLon == nil {
		return fmt.Errorf("original location not stored")
	}
	d, err := geo.DistanceKM(*loc.OriginalLat, *loc.OriginalLon, loc.Lat, loc.Lon)
	if err != nil {
		return err
	}
	if d*1000 > float64(maxMeters) {
		return fmt.Errorf("jittered location is %.0f m from the original, want <= %d m", d*1000, maxMeters)
	}
	return nil
}

func (w *beepnetWorld) deviceReceivesExactlyPushPayload(deviceID string, count int) error {
	matched := 0
	for _, p := range w.sender.sent {
		if p.DeviceID == deviceID {
			matched++
		}
	}
	if matched != count {
		return fmt.Errorf("expected %d payloads for %s, got %d", count, deviceID, matched)
	}
	return nil
}

func (w *beepnetWorld) thePushPayloadBearingIsBetween(low, high float64) error {
	for _, p := range w.sender.sent {
		bearing := p.Data["bearing"]
		if bearing == "" {
			continue
		}
		var b float64
		if _, err := fmt.Sscanf(bearing, "%f", &b); err != nil {
			return err
		}
		if b < low || b >= high {
			return fmt.Errorf("bearing %v not in [%v, %v)", b, low, high)
		}
	}
	return nil
}

func (w *beepnetWorld) thePushPayloadDistanceIsApproximately(expected float64) error {
	for _, p := range w.sender.sent {
		distance := p.Data["distance"]
		if distance == "" {
			continue
		}
		var d float64
		if _, err := fmt.Sscanf(distance, "%f", &d); err != nil {
			return err
		}
		if d < expected-0.5 || d > expected+0.5 {
			return fmt.Errorf("distance %v not near %v", d, expected)
		}
	}
	return nil
}

// --- Scenario (b): mass-sighting escalation ---

func (w *beepnetWorld) nConfirmationsWithinRingAndWindow(ctx context.Context, n int, lat, lon float64) error {
	first, err := w.core.Ingest(ctx, alertsvc.IngestRequest{DeviceID: "original-reporter", Latitude: lat, Longitude: lon, Category: "ufo"})
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		deviceID := fmt.Sprintf("mass-witness-%d", i)
		if _, err := w.core.ConfirmWitness(ctx, first.SightingID, alertsvc.ConfirmationRequest{DeviceID: deviceID, Latitude: &lat, Longitude: &lon}); err != nil {
			return fmt.Errorf("confirmation %d: %w", i, err)
		}
	}
	return nil
}

func (w *beepnetWorld) aNewSightingFromADifferentDevice(ctx context.Context) error {
	result, err := w.core.Ingest(ctx, alertsvc.IngestRequest{DeviceID: "second-reporter", Latitude: 47.6213, Longitude: -122.3790, Category: "ufo"})
	w.ingestResult = result
	return err
}

func (w *beepnetWorld) theRingAlertLevelIs(level string) error {
	if w.ingestResult == nil || w.ingestResult.ProximityAlerts == nil {
		return fmt.Errorf("no fan-out result recorded")
	}
	if string(w.ingestResult.ProximityAlerts.EscalationApplied) != level {
		return fmt.Errorf("expected level %s, got %s", level, w.ingestResult.ProximityAlerts.EscalationApplied)
	}
	return nil
}

// --- Scenario (c): witness rate limit ---

func (w *beepnetWorld) deviceHasConfirmedNDifferentSightings(ctx context.Context, deviceID string, n int) error {
	for i := 0; i < n; i++ {
		lat, lon := 47.60+float64(i)*0.5, -122.30+float64(i)*0.5
		result, err := w.core.Ingest(ctx, alertsvc.IngestRequest{DeviceID: fmt.Sprintf("reporter-%d", i), Latitude: lat, Longitude: lon, Category: "ufo"})
		if err != nil {
			return err
		}
		if _, err := w.core.ConfirmWitness(ctx, result.SightingID, alertsvc.ConfirmationRequest{DeviceID: deviceID}); err != nil {
			return fmt.Errorf("confirmation %d: %w", i, err)
		}
	}
	return nil
}

func (w *beepnetWorld) deviceSubmitsAConfirmation(ctx context.Context, deviceID string) error {
	result, err := w.core.Ingest(ctx, alertsvc.IngestRequest{DeviceID: "reporter-final", Latitude: 47.61, Longitude: -122.31, Category: "ufo"})
	if err != nil {
		return err
	}
	_, w.confirmErr = w.core.ConfirmWitness(ctx, result.SightingID, alertsvc.ConfirmationRequest{DeviceID: deviceID})
	return nil
}

func (w *beepnetWorld) theConfirmationFailsWithKind(kind string) error {
	if w.confirmErr == nil {
		return fmt.Errorf("expected a failing confirmation, got nil error")
	}
	if !beeperr.Is(w.confirmErr, beeperr.Kind(kind)) {
		return fmt.Errorf("expected kind %s, got %v", kind, w.confirmErr)
	}
	return nil
}

// --- Scenario (d): aircraft match ---

func (w *beepnetWorld) anObserverAt(lat, lon, azimuth, pitch float64) error {
	w.observer = aircraft.SensorPose{Timestamp: time.Now(), Lat: lat, Lon: lon, AzimuthDeg: azimuth, PitchDeg: pitch}
	return nil
}

// anAircraftOnLineOfSight places an aircraft at the exact ground distance and
// altitude that internal/aircraft's own lineOfSight computation (bearing via
// geo.BearingDeg, elevation via atan2(altitudeDiff, groundDistanceM)) would
// report as (bearing, elevation) from the observer, so the matcher's angular
// error comes out at (near) zero.
func (w *beepnetWorld) anAircraftOnLineOfSight(bearing, elevation float64) error {
	const groundDistanceKM = 20.0
	lat, lon := destinationPoint(w.observer.Lat, w.observer.Lon, bearing, groundDistanceKM)
	altitudeM := groundDistanceKM * 1000 * math.Tan(elevation*math.Pi/180)
	w.aircraftState = aircraft.AircraftState{
		ICAO24: "abc123", Callsign: "TEST1",
		Lat: lat, Lon: lon,
		BaroAltitude: altitudeM,
	}
	return nil
}

func (w *beepnetWorld) theAircraftMatcherRuns(ctx context.Context) error {
	matcher := aircraft.New(aircraft.DefaultConfig(), fixedStateFetcher{states: []aircraft.AircraftState{w.aircraftState}})
	result, err := matcher.Match(ctx, w.observer)
	w.aircraftResult = result
	return err
}

func (w *beepnetWorld) theResultIsAPlaneMatch() error {
	if w.aircraftResult == nil || !w.aircraftResult.IsPlane {
		return fmt.Errorf("expected IsPlane=true")
	}
	return nil
}

func (w *beepnetWorld) theAngularErrorIsLessThan(maxDeg float64) error {
	if w.aircraftResult.Matched == nil || w.aircraftResult.Matched.AngularErrorDeg >= maxDeg {
		return fmt.Errorf("angular error not under %v", maxDeg)
	}
	return nil
}

func (w *beepnetWorld) theConfidenceIsGreaterThan(min float64) error {
	if w.aircraftResult.Confidence <= min {
		return fmt.Errorf("confidence %v not above %v", w.aircraftResult.Confidence, min)
	}
	return nil
}

// --- Scenario (e): triangulation ---

func (w *beepnetWorld) aWitnessAt(lat, lon, bearing float64) error {
	w.witnessPoints = append(w.witnessPoints, witness.WitnessPoint{
		DeviceID: fmt.Sprintf("w%d", len(w.witnessPoints)+1), Lat: lat, Lon: lon, BearingDeg: &bearing, Timestamp: time.Now(),
	})
	return nil
}

func (w *beepnetWorld) theWitnessesAreTriangulated() error {
	w.triangulationResult = witness.Analyze(w.witnessPoints, time.Now())
	return nil
}

func (w *beepnetWorld) theTriangulatedPointIsWithin(maxKM int, expectedLat, expectedLon float64) error {
	if w.triangulationResult.ObjectLat == nil || w.triangulationResult.ObjectLon == nil {
		return fmt.Errorf("no triangulated point")
	}
	dLat := (*w.triangulationResult.ObjectLat - expectedLat) * 111.0
	dLon := (*w.triangulationResult.ObjectLon - expectedLon) * 111.0
	distanceKM := math.Sqrt(dLat*dLat + dLon*dLon)
	if distanceKM > float64(maxKM) {
		return fmt.Errorf("triangulated point %v,%v is %vkm from expected, want <= %vkm",
			*w.triangulationResult.ObjectLat, *w.triangulationResult.ObjectLon, distanceKM, maxKM)
	}
	return nil
}

// --- Scenario (f): visibility-aware distance guard ---

func (w *beepnetWorld) aSightingWithWeatherVisibility(ctx context.Context, visibilityKM float64) error {
	result, err := w.core.Ingest(ctx, alertsvc.IngestRequest{DeviceID: "reporter-vis", Latitude: 47.6213, Longitude: -122.3790, Category: "ufo"})
	if err != nil {
		return err
	}
	w.ingestResult = result
	return w.gw.UpdateEnrichment(ctx, result.SightingID, "weather", map[string]any{"visibility_km": visibilityKM})
}

func (w *beepnetWorld) aConfirmationIsSubmittedFromAway(ctx context.Context, distanceKM float64) error {
	lat := 47.6213 + distanceKM/111.0
	lon := -122.3790
	_, w.confirmErr = w.core.ConfirmWitness(ctx, w.ingestResult.SightingID, alertsvc.ConfirmationRequest{DeviceID: "far-witness", Latitude: &lat, Longitude: &lon})
	return nil
}

func (w *beepnetWorld) theFailureCitesAnEffectiveLimit(limitKM float64) error {
	var be *beeperr.Error
	if !errors.As(w.confirmErr, &be) {
		return fmt.Errorf("expected a beeperr.Error")
	}
	if be.LimitKM < limitKM-0.01 || be.LimitKM > limitKM+0.01 {
		return fmt.Errorf("expected limit %v, got %v", limitKM, be.LimitKM)
	}
	return nil
}

// fixedStateFetcher is an aircraft.StateFetcher fake returning one fixed set
// of states regardless of the requested bounding box or time bucket.
type fixedStateFetcher struct {
	states []aircraft.AircraftState
}

func (f fixedStateFetcher) StatesInBBox(ctx context.Context, box geo.Box, quantizedUnixTime int64) ([]aircraft.AircraftState, error) {
	return f.states, nil
}
