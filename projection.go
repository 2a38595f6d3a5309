package geosieve

import (
	"math"

	"github.com/paulmach/orb"
)

// GRS80 ellipsoid, the datum of ETRS89-LAEA.
const (
	grs80A    = 6378137.0
	grs80InvF = 298.257222101
)

// LAEAParams parameterizes an ellipsoidal Lambert Azimuthal Equal Area
// projection on GRS80. Degrees for the origin, metres for false offsets.
type LAEAParams struct {
	Lat0          float64 `yaml:"lat0" validate:"gte=-90,lte=90"`
	Lon0          float64 `yaml:"lon0" validate:"gte=-180,lte=180"`
	FalseEasting  float64 `yaml:"false_easting"`
	FalseNorthing float64 `yaml:"false_northing"`
}

// LAEAEurope is EPSG:3035 (ETRS89-extended / LAEA Europe).
var LAEAEurope = LAEAParams{Lat0: 52, Lon0: 10, FalseEasting: 4321000, FalseNorthing: 3210000}

// LAEA holds the precomputed constants of one projection. The zero value is
// not usable; call NewLAEA.
type LAEA struct {
	params LAEAParams

	e, e2      float64
	qp         float64
	rq         float64
	d          float64
	sinB0      float64
	cosB0      float64
	lon0       float64
	lat0       float64
	aux1, aux2 float64 // series coefficients for the authalic latitude inverse
	aux3       float64
}

// NewLAEA precomputes the projection constants (EPSG guidance note 7-2, method 9820).
func NewLAEA(p LAEAParams) *LAEA {
	f := 1 / grs80InvF
	e2 := 2*f - f*f
	e := math.Sqrt(e2)

	l := &LAEA{params: p, e: e, e2: e2}
	l.lat0 = p.Lat0 * math.Pi / 180
	l.lon0 = p.Lon0 * math.Pi / 180
	l.qp = l.q(math.Pi / 2)

	q0 := l.q(l.lat0)
	b0 := math.Asin(clamp(q0 / l.qp))
	l.sinB0, l.cosB0 = math.Sincos(b0)

	l.rq = grs80A * math.Sqrt(l.qp/2)
	sinLat0 := math.Sin(l.lat0)
	l.d = grs80A * (math.Cos(l.lat0) / math.Sqrt(1-e2*sinLat0*sinLat0)) / (l.rq * l.cosB0)

	e4 := e2 * e2
	e6 := e4 * e2
	l.aux1 = e2/3 + 31*e4/180 + 517*e6/5040
	l.aux2 = 23*e4/360 + 251*e6/3780
	l.aux3 = 761 * e6 / 45360
	return l
}

func (l *LAEA) q(lat float64) float64 {
	s := math.Sin(lat)
	es := l.e * s
	return (1 - l.e2) * (s/(1-l.e2*s*s) - (1/(2*l.e))*math.Log((1-es)/(1+es)))
}

// Forward projects a lon/lat point (degrees) to easting/northing. The second
// result is false at the antipode of the origin, where the projection is undefined.
func (l *LAEA) Forward(p orb.Point) (orb.Point, bool) {
	lon := p[0] * math.Pi / 180
	lat := p[1] * math.Pi / 180

	b := math.Asin(clamp(l.q(lat) / l.qp))
	sinB, cosB := math.Sincos(b)
	sinDL, cosDL := math.Sincos(lon - l.lon0)

	denom := 1 + l.sinB0*sinB + l.cosB0*cosB*cosDL
	if denom <= 1e-12 {
		return orb.Point{}, false
	}
	bb := l.rq * math.Sqrt(2/denom)

	x := l.params.FalseEasting + bb*l.d*cosB*sinDL
	y := l.params.FalseNorthing + (bb/l.d)*(l.cosB0*sinB-l.sinB0*cosB*cosDL)
	return orb.Point{x, y}, true
}

// Inverse converts easting/northing back to lon/lat degrees. The second
// result is false for points outside the projection's disc.
func (l *LAEA) Inverse(p orb.Point) (orb.Point, bool) {
	dx := p[0] - l.params.FalseEasting
	dy := p[1] - l.params.FalseNorthing

	rho := math.Hypot(dx/l.d, l.d*dy)
	if rho == 0 {
		return orb.Point{l.params.Lon0, l.params.Lat0}, true
	}
	if rho > 2*l.rq {
		return orb.Point{}, false
	}

	c := 2 * math.Asin(rho/(2*l.rq))
	sinC, cosC := math.Sincos(c)
	b := math.Asin(clamp(cosC*l.sinB0 + l.d*dy*sinC*l.cosB0/rho))

	lat := b + l.aux1*math.Sin(2*b) + l.aux2*math.Sin(4*b) + l.aux3*math.Sin(6*b)
	lon := l.lon0 + math.Atan2(dx*sinC, l.d*rho*l.cosB0*cosC-l.d*l.d*dy*l.sinB0*sinC)

	return orb.Point{normalizeLon(lon * 180 / math.Pi), lat * 180 / math.Pi}, true
}

// ToProjected is Forward as an orb.Projection. Undefined points become NaN,
// which callers detect with finiteGeometry.
func (l *LAEA) ToProjected(p orb.Point) orb.Point {
	if out, ok := l.Forward(p); ok {
		return out
	}
	return orb.Point{math.NaN(), math.NaN()}
}

// ToWGS84 is Inverse as an orb.Projection, NaN on failure.
func (l *LAEA) ToWGS84(p orb.Point) orb.Point {
	if out, ok := l.Inverse(p); ok {
		return out
	}
	return orb.Point{math.NaN(), math.NaN()}
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// finiteGeometry reports whether every coordinate of g is a finite number.
func finiteGeometry(g orb.Geometry) bool {
	ok := true
	visit := func(r orb.Ring) {
		for _, p := range r {
			if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
				ok = false
				return
			}
		}
	}
	switch g := g.(type) {
	case orb.Point:
		visit(orb.Ring{g})
	case orb.Polygon:
		for _, r := range g {
			visit(r)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			for _, r := range poly {
				visit(r)
			}
		}
	default:
		return false
	}
	return ok
}
