// Package witness implements the §4.K witness aggregator: confirmation
// validation, bearing-line triangulation, consensus scoring, and the
// auto-escalation decision. Grounded on
// original_source/api/app/services/witness_aggregation_service.py
// (WitnessAggregationService), translated into the teacher's error-return
// idiom and reusing internal/geo for distance/bearing arithmetic.
package witness

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ufobeep/beepnet/internal/beeperr"
	"github.com/ufobeep/beepnet/internal/geo"
	"github.com/ufobeep/beepnet/internal/model"
	"github.com/ufobeep/beepnet/internal/rategate"
	"github.com/ufobeep/beepnet/internal/store"
)

// Config holds the §4.K tunables.
type Config struct {
	WindowMinutes       int
	DefaultMaxConfirmKM float64
}

// DefaultConfig matches spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{WindowMinutes: 60, DefaultMaxConfirmKM: 50}
}

// Aggregator implements confirmation validation, triangulation, consensus
// scoring, and auto-escalation.
type Aggregator struct {
	cfg         Config
	gateway     store.Gateway
	witnessGate *rategate.WitnessGate
	clock       rategate.Clock
}

// New builds an Aggregator.
func New(cfg Config, gateway store.Gateway, witnessGate *rategate.WitnessGate, clock rategate.Clock) *Aggregator {
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = DefaultConfig().WindowMinutes
	}
	if cfg.DefaultMaxConfirmKM <= 0 {
		cfg.DefaultMaxConfirmKM = DefaultConfig().DefaultMaxConfirmKM
	}
	if clock == nil {
		clock = rategate.RealClock{}
	}
	return &Aggregator{cfg: cfg, gateway: gateway, witnessGate: witnessGate, clock: clock}
}

// ValidateConfirmation implements §4.K's 5-step confirmation validation
// chain. visibilityKM is the weather-enrichment-provided visibility, when
// known; 0 means "use the default bound".
func (a *Aggregator) ValidateConfirmation(ctx context.Context, sighting *model.Sighting, deviceID string, witnessLat, witnessLon *float64, visibilityKM float64) error {
	if sighting == nil {
		return beeperr.New(beeperr.KindNotFound, "witness", "sighting not found")
	}

	age := a.clock.Now().Sub(sighting.CreatedAt)
	if age > time.Duration(a.cfg.WindowMinutes)*time.Minute {
		remaining := age - time.Duration(a.cfg.WindowMinutes)*time.Minute
		return &beeperr.Error{
			Kind:             beeperr.KindWindowClosed,
			Component:        "witness",
			Message:          fmt.Sprintf("sighting is older than the %d minute confirmation window", a.cfg.WindowMinutes),
			RemainingSeconds: -remaining.Seconds(),
		}
	}

	already, err := a.gateway.HasWitnessed(ctx, sighting.ID, deviceID)
	if err != nil {
		return beeperr.Wrap(beeperr.KindTransientBackend, "witness", "check existing confirmation", err)
	}
	if already {
		return beeperr.New(beeperr.KindDuplicateWitness, "witness", "device has already confirmed this sighting")
	}

	if a.witnessGate != nil {
		if err := a.witnessGate.Allow(deviceID); err != nil {
			return beeperr.Wrap(beeperr.KindRateLimited, "witness", err.Error(), err)
		}
	}

	if witnessLat != nil && witnessLon != nil {
		maxKM := a.cfg.DefaultMaxConfirmKM
		if visibilityKM > 0 {
			maxKM = 2 * visibilityKM
		}
		distanceKM, err := geo.DistanceKM(*witnessLat, *witnessLon, sighting.SensorData.Location.Lat, sighting.SensorData.Location.Lon)
		if err != nil {
			return beeperr.Wrap(beeperr.KindInput, "witness", "witness location is invalid", err)
		}
		if distanceKM > maxKM {
			return &beeperr.Error{
				Kind:       beeperr.KindOutOfRangeWitness,
				Component:  "witness",
				Message:    fmt.Sprintf("witness is too far from the sighting (%.1fkm > %.1fkm limit)", distanceKM, maxKM),
				DistanceKM: distanceKM,
				LimitKM:    maxKM,
			}
		}
	}

	return nil
}

// WitnessPoint is one confirmation's contribution to triangulation and
// consensus scoring (§4.K).
type WitnessPoint struct {
	DeviceID   string
	Lat, Lon   float64
	BearingDeg *float64
	Timestamp  time.Time
}

// TriangulationResult is the §4.K output contract.
type TriangulationResult struct {
	ObjectLat, ObjectLon   *float64
	ConfidenceScore        float64
	ConsensusQuality       string
	WitnessCount           int
	AgreementPercentage    float64
	AverageBearingErrorDeg *float64
	EstimatedRadiusM       *float64
	ShouldEscalate         bool
}

// AnalyzeSighting fetches every confirmation for sightingID and runs the
// §4.K consensus pipeline over them — the entry point
// alertsvc's B→K(validate)→D→K(recompute) flow calls after a confirmation is
// persisted.
func (a *Aggregator) AnalyzeSighting(ctx context.Context, sightingID string) (TriangulationResult, error) {
	confirmations, err := a.gateway.ListWitnesses(ctx, sightingID)
	if err != nil {
		return TriangulationResult{}, fmt.Errorf("witness: list confirmations: %w", err)
	}

	points := make([]WitnessPoint, 0, len(confirmations))
	for _, c := range confirmations {
		if c.Latitude == nil || c.Longitude == nil {
			continue
		}
		points = append(points, WitnessPoint{
			DeviceID:   c.DeviceID,
			Lat:        *c.Latitude,
			Lon:        *c.Longitude,
			BearingDeg: c.BearingDeg,
			Timestamp:  c.ConfirmedAt,
		})
	}

	return Analyze(points, a.clock.Now()), nil
}

// Analyze runs the full §4.K pipeline: triangulation, consensus metrics, and
// the auto-escalation decision.
func Analyze(points []WitnessPoint, now time.Time) TriangulationResult {
	if len(points) < 2 {
		return TriangulationResult{
			ConsensusQuality: "insufficient",
			WitnessCount:     len(points),
		}
	}

	lat, lon, ok := triangulate(points)

	temporalScore := temporalScore(points)
	spatialScore := spatialScore(points)

	bearingScore := 0.5
	var avgBearingError *float64
	if ok {
		bearingWitnessCount := countWithBearing(points)
		if bearingWitnessCount >= 2 {
			errDeg := averageBearingError(points, lat, lon)
			avgBearingError = &errDeg
			bearingScore = math.Max(0, 1-errDeg/45.0)
		}
	}

	confidence := 0.3*temporalScore + 0.3*spatialScore + 0.4*bearingScore
	quality := qualityRating(confidence)
	agreementPct := confidence * 100

	var radiusM *float64
	var objLat, objLon *float64
	if ok {
		r := math.Max(100, (1-confidence)*5000)
		radiusM = &r
		objLat, objLon = &lat, &lon
	}

	shouldEscalate := autoEscalate(points, confidence, now)

	return TriangulationResult{
		ObjectLat:              objLat,
		ObjectLon:              objLon,
		ConfidenceScore:        confidence,
		ConsensusQuality:       quality,
		WitnessCount:           len(points),
		AgreementPercentage:    agreementPct,
		AverageBearingErrorDeg: avgBearingError,
		EstimatedRadiusM:       radiusM,
		ShouldEscalate:         shouldEscalate,
	}
}

type bearingLine struct {
	x0, y0 float64 // lon, lat — matching the teacher's (x=lon, y=lat) convention
	dx, dy float64
}

// triangulate implements §4.K's triangulation: two bearings solve
// analytically, three or more fall back to the pairwise-intersection
// centroid (a documented approximation, not a least-squares fit).
func triangulate(points []WitnessPoint) (lat, lon float64, ok bool) {
	var lines []bearingLine
	for _, p := range points {
		if p.BearingDeg == nil {
			continue
		}
		rad := *p.BearingDeg * math.Pi / 180
		lines = append(lines, bearingLine{x0: p.Lon, y0: p.Lat, dx: math.Sin(rad), dy: math.Cos(rad)})
	}
	if len(lines) < 2 {
		return 0, 0, false
	}

	if len(lines) == 2 {
		la, lo, ok := intersectTwoLines(lines[0], lines[1])
		return la, lo, ok
	}

	var sumLat, sumLon float64
	count := 0
	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			la, lo, ok := intersectTwoLines(lines[i], lines[j])
			if !ok {
				continue
			}
			sumLat += la
			sumLon += lo
			count++
		}
	}
	if count == 0 {
		return 0, 0, false
	}
	return sumLat / float64(count), sumLon / float64(count), true
}

// intersectTwoLines solves the parametric line intersection in (lon, lat)
// space, matching witness_aggregation_service.py's _intersect_two_lines.
func intersectTwoLines(l1, l2 bearingLine) (lat, lon float64, ok bool) {
	denominator := l1.dx*l2.dy - l1.dy*l2.dx
	if math.Abs(denominator) < 1e-10 {
		return 0, 0, false
	}
	t := ((l2.x0-l1.x0)*l2.dy - (l2.y0-l1.y0)*l2.dx) / denominator
	lon = l1.x0 + t*l1.dx
	lat = l1.y0 + t*l1.dy
	return lat, lon, true
}

func countWithBearing(points []WitnessPoint) int {
	n := 0
	for _, p := range points {
		if p.BearingDeg != nil {
			n++
		}
	}
	return n
}

// temporalScore implements "max(0, 1 - time_spread_seconds / 3600)".
func temporalScore(points []WitnessPoint) float64 {
	min, max := points[0].Timestamp, points[0].Timestamp
	for _, p := range points[1:] {
		if p.Timestamp.Before(min) {
			min = p.Timestamp
		}
		if p.Timestamp.After(max) {
			max = p.Timestamp
		}
	}
	spreadSeconds := max.Sub(min).Seconds()
	return math.Max(0, 1-spreadSeconds/3600)
}

// spatialScore implements "min(1, max_pairwise_distance_m / 1000)".
func spatialScore(points []WitnessPoint) float64 {
	var maxDistanceM float64
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			distanceKM, err := geo.DistanceKM(points[i].Lat, points[i].Lon, points[j].Lat, points[j].Lon)
			if err != nil {
				continue
			}
			if distanceM := distanceKM * 1000; distanceM > maxDistanceM {
				maxDistanceM = distanceM
			}
		}
	}
	return math.Min(1, maxDistanceM/1000)
}

// averageBearingError computes the average absolute angular difference
// between each bearing-reporting witness's reported bearing and the bearing
// from that witness to the triangulated point.
func averageBearingError(points []WitnessPoint, objLat, objLon float64) float64 {
	var sum float64
	count := 0
	for _, p := range points {
		if p.BearingDeg == nil {
			continue
		}
		expected, err := geo.BearingDeg(p.Lat, p.Lon, objLat, objLon)
		if err != nil {
			continue
		}
		sum += angleDifference(*p.BearingDeg, expected)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func angleDifference(a, b float64) float64 {
	diff := math.Abs(a - b)
	return math.Min(diff, 360-diff)
}

func qualityRating(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "excellent"
	case confidence >= 0.6:
		return "good"
	case confidence >= 0.3:
		return "poor"
	default:
		return "insufficient"
	}
}

// autoEscalate implements §4.K's OR-combined escalation conditions.
func autoEscalate(points []WitnessPoint, confidence float64, now time.Time) bool {
	recent := 0
	for _, p := range points {
		if now.Sub(p.Timestamp) <= 60*time.Second {
			recent++
		}
	}

	if recent >= 3 && confidence >= 0.6 {
		return true
	}
	if len(points) >= 5 {
		return true
	}
	if len(points) >= 3 && confidence >= 0.8 {
		return true
	}
	return false
}
