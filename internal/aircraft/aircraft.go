// Package aircraft implements the §4.J aircraft-match analyser: given a
// device's sensor pose, it finds the nearby live aircraft whose line of sight
// best matches where the device was pointed, and scores its confidence.
// Grounded on original_source/api/app/services/plane_match_service.py
// (PlaneMatchService), translated into the teacher's error-return idiom and
// its small dependency-free geometry-package style (internal/geo).
package aircraft

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ufobeep/beepnet/internal/geo"
)

// Config holds the tunables named in spec.md §6.
type Config struct {
	RadiusKM         float64
	RadiusHardCapKM  float64
	ToleranceDeg     float64
	TimeQuantizeSecs int
	CacheTTL         time.Duration
}

// DefaultConfig matches spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		RadiusKM:         50,
		RadiusHardCapKM:  80,
		ToleranceDeg:     2.5,
		TimeQuantizeSecs: 5,
		CacheTTL:         10 * time.Second,
	}
}

// SensorPose is the entry-point input (§4.J: "sensor = {timestamp, lat, lon,
// altitude?, azimuth_deg, pitch_deg, roll_deg?, hfov_deg?, accuracy?}").
type SensorPose struct {
	Timestamp  time.Time
	Lat, Lon   float64
	AltitudeM  *float64
	AzimuthDeg float64
	PitchDeg   float64
	RollDeg    *float64
	HFovDeg    *float64
	AccuracyM  *float64
}

// AircraftState is one live aircraft state vector, as fetched from the
// upstream tracker.
type AircraftState struct {
	ICAO24       string
	Callsign     string
	Lat, Lon     float64
	BaroAltitude float64 // meters
	VelocityMS   float64
}

// Match is the best-candidate aircraft, when one is found.
type Match struct {
	Callsign       string
	ICAO24         string
	AltitudeM      float64
	VelocityMS     float64
	AngularErrorDeg float64
}

// Result is the §4.J output contract.
type Result struct {
	IsPlane    bool
	Matched    *Match
	Confidence float64
	Reason     string
	Timestamp  time.Time
}

// StateFetcher retrieves aircraft state vectors within a bounding box, as of
// the given quantized unix timestamp. Implementations are expected to cache
// per bbox+bucket (§4.J step 3).
type StateFetcher interface {
	StatesInBBox(ctx context.Context, box geo.Box, quantizedUnixTime int64) ([]AircraftState, error)
}

// Matcher runs the §4.J algorithm.
type Matcher struct {
	cfg     Config
	fetcher StateFetcher
}

// New builds a Matcher.
func New(cfg Config, fetcher StateFetcher) *Matcher {
	if cfg.RadiusKM <= 0 {
		cfg.RadiusKM = DefaultConfig().RadiusKM
	}
	if cfg.RadiusHardCapKM <= 0 {
		cfg.RadiusHardCapKM = DefaultConfig().RadiusHardCapKM
	}
	if cfg.ToleranceDeg <= 0 {
		cfg.ToleranceDeg = DefaultConfig().ToleranceDeg
	}
	if cfg.TimeQuantizeSecs <= 0 {
		cfg.TimeQuantizeSecs = DefaultConfig().TimeQuantizeSecs
	}
	return &Matcher{cfg: cfg, fetcher: fetcher}
}

// Match implements §4.J steps 1-7.
func (m *Matcher) Match(ctx context.Context, sensor SensorPose) (*Result, error) {
	now := time.Now().UTC()

	if err := geo.ValidateLatLon(sensor.Lat, sensor.Lon); err != nil {
		return nil, fmt.Errorf("aircraft: invalid observer position: %w", err)
	}
	if err := geo.ValidateElevation(sensor.PitchDeg); err != nil {
		return nil, fmt.Errorf("aircraft: invalid pitch: %w", err)
	}

	radiusKM := m.cfg.RadiusKM
	if radiusKM > m.cfg.RadiusHardCapKM {
		radiusKM = m.cfg.RadiusHardCapKM
	}

	box, err := geo.BBox(sensor.Lat, sensor.Lon, radiusKM)
	if err != nil {
		return nil, fmt.Errorf("aircraft: bbox: %w", err)
	}

	bucket := quantizeTimestamp(sensor.Timestamp, m.cfg.TimeQuantizeSecs)

	states, err := m.fetcher.StatesInBBox(ctx, box, bucket)
	if err != nil {
		return &Result{IsPlane: false, Confidence: 0, Reason: "aircraft data unavailable: " + err.Error(), Timestamp: now}, nil
	}

	if len(states) == 0 {
		return &Result{IsPlane: false, Confidence: 0, Reason: fmt.Sprintf("no aircraft found within %.0fkm radius", radiusKM), Timestamp: now}, nil
	}

	observerAlt := 0.0
	if sensor.AltitudeM != nil {
		observerAlt = *sensor.AltitudeM
	}

	var best *candidate
	for _, ac := range states {
		bearing, elevation, distanceKM, err := lineOfSight(sensor.Lat, sensor.Lon, observerAlt, ac.Lat, ac.Lon, ac.BaroAltitude)
		if err != nil {
			continue
		}

		angularError, err := geo.AngularSeparationDeg(sensor.AzimuthDeg, sensor.PitchDeg, bearing, elevation)
		if err != nil {
			continue
		}
		if angularError > m.cfg.ToleranceDeg {
			continue
		}

		confidence := computeConfidence(angularError, m.cfg.ToleranceDeg, distanceKM, ac.BaroAltitude)
		c := &candidate{state: ac, angularError: angularError, confidence: confidence}
		if best == nil || c.angularError < best.angularError {
			best = c
		}
	}

	if best == nil {
		return &Result{IsPlane: false, Confidence: 0, Reason: fmt.Sprintf("no aircraft within %.1f° tolerance found", m.cfg.ToleranceDeg), Timestamp: now}, nil
	}

	return &Result{
		IsPlane: true,
		Matched: &Match{
			Callsign:        best.state.Callsign,
			ICAO24:          best.state.ICAO24,
			AltitudeM:       best.state.BaroAltitude,
			VelocityMS:      best.state.VelocityMS,
			AngularErrorDeg: best.angularError,
		},
		Confidence: best.confidence,
		Reason:     fmt.Sprintf("matched aircraft %s with %.1f° error", displayName(best.state), best.angularError),
		Timestamp:  now,
	}, nil
}

type candidate struct {
	state        AircraftState
	angularError float64
	confidence   float64
}

func displayName(s AircraftState) string {
	if s.Callsign != "" {
		return s.Callsign
	}
	return s.ICAO24
}

// quantizeTimestamp rounds down to the nearest bucket boundary (§4.J step 2).
func quantizeTimestamp(t time.Time, bucketSecs int) int64 {
	unix := t.UTC().Unix()
	return (unix / int64(bucketSecs)) * int64(bucketSecs)
}

// lineOfSight computes bearing, elevation and distance from observer to
// target (§4.J step 4): bearing is the initial great-circle bearing,
// elevation is atan2(altitude_diff_m, distance_m).
func lineOfSight(observerLat, observerLon, observerAltM, targetLat, targetLon, targetAltM float64) (bearingDeg, elevationDeg, distanceKM float64, err error) {
	distanceKM, err = geo.DistanceKM(observerLat, observerLon, targetLat, targetLon)
	if err != nil {
		return 0, 0, 0, err
	}
	bearingDeg, err = geo.BearingDeg(observerLat, observerLon, targetLat, targetLon)
	if err != nil {
		return 0, 0, 0, err
	}

	altitudeDiff := targetAltM - observerAltM
	distanceM := distanceKM * 1000
	if distanceM > 0 {
		elevationDeg = toDeg(math.Atan2(altitudeDiff, distanceM))
	} else if altitudeDiff > 0 {
		elevationDeg = 90
	} else {
		elevationDeg = -90
	}
	return bearingDeg, elevationDeg, distanceKM, nil
}

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// computeConfidence implements §4.J step 6 exactly.
func computeConfidence(angularErrorDeg, toleranceDeg, distanceKM, altitudeM float64) float64 {
	angularConfidence := 1.0 - angularErrorDeg/toleranceDeg

	var distanceFactor float64
	switch {
	case distanceKM < 1.0:
		distanceFactor = 0.5
	case distanceKM < 10.0:
		distanceFactor = 0.8
	case distanceKM < 50.0:
		distanceFactor = 1.0
	default:
		distanceFactor = 0.9
	}

	var altitudeFactor float64
	switch {
	case altitudeM < 1000:
		altitudeFactor = 0.7
	case altitudeM < 12000:
		altitudeFactor = 1.0
	default:
		altitudeFactor = 0.9
	}

	confidence := angularConfidence * distanceFactor * altitudeFactor
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
