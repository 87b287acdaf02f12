// Package aircraftmatch adapts internal/aircraft.Matcher into an
// enrichment.Processor (§4.I: "Aircraft match (priority 3)... always runs
// when sensor pose is sufficient, otherwise returns not_applicable").
package aircraftmatch

import (
	"context"

	"github.com/ufobeep/beepnet/internal/aircraft"
	"github.com/ufobeep/beepnet/internal/enrichment"
)

// Provider implements enrichment.Processor for the §4.J aircraft matcher.
type Provider struct {
	matcher *aircraft.Matcher
}

// New builds the processor over an already-configured Matcher.
func New(matcher *aircraft.Matcher) *Provider {
	return &Provider{matcher: matcher}
}

func (p *Provider) Name() string                     { return "plane_match" }
func (p *Provider) Priority() int                    { return 3 }
func (p *Provider) TimeoutSeconds() int              { return 15 }
func (p *Provider) IsAvailable(context.Context) bool { return true }

func (p *Provider) Process(ctx context.Context, ectx enrichment.Context) enrichment.Result {
	if ectx.AzimuthDeg == nil || ectx.PitchDeg == nil {
		return enrichment.Result{Success: true, Data: map[string]any{"not_applicable": true, "reason": "sensor pose unavailable"}}
	}

	result, err := p.matcher.Match(ctx, aircraft.SensorPose{
		Timestamp:  ectx.Timestamp,
		Lat:        ectx.Latitude,
		Lon:        ectx.Longitude,
		AltitudeM:  ectx.AltitudeM,
		AzimuthDeg: *ectx.AzimuthDeg,
		PitchDeg:   *ectx.PitchDeg,
	})
	if err != nil {
		return enrichment.Result{Success: false, Error: err.Error()}
	}

	data := map[string]any{
		"is_plane":   result.IsPlane,
		"confidence": result.Confidence,
		"reason":     result.Reason,
	}
	if result.Matched != nil {
		data["matched"] = map[string]any{
			"callsign":          result.Matched.Callsign,
			"icao24":            result.Matched.ICAO24,
			"altitude_m":        result.Matched.AltitudeM,
			"velocity_ms":       result.Matched.VelocityMS,
			"angular_error_deg": result.Matched.AngularErrorDeg,
		}
	}

	return enrichment.Result{Success: true, Data: data, Confidence: result.Confidence}
}

var _ enrichment.Processor = (*Provider)(nil)
