package geosieve

import (
	"fmt"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// boundaryCellLevel is the S2 level of the boundary prefilter index.
// Level 5 cells are roughly 300km across: a handful per small country,
// a few hundred for Russia's bounding box.
const boundaryCellLevel = 5

// boundaryIndex maps S2 cells to the boundary polygons whose bounding
// rectangles touch them, so a centroid is only tested against polygons
// that can possibly contain it.
type boundaryIndex struct {
	polys orb.MultiPolygon
	cells map[s2.CellID][]int
}

func newBoundaryIndex(mp orb.MultiPolygon) *boundaryIndex {
	idx := &boundaryIndex{polys: mp, cells: make(map[s2.CellID][]int)}
	rc := &s2.RegionCoverer{
		MinLevel: boundaryCellLevel,
		MaxLevel: boundaryCellLevel,
		LevelMod: 1,
		MaxCells: 64,
	}
	for i, poly := range mp {
		if len(poly) == 0 || len(poly[0]) == 0 {
			continue
		}
		for _, cell := range rc.Covering(boundRect(poly.Bound())) {
			idx.cells[cell] = append(idx.cells[cell], i)
		}
	}
	return idx
}

// boundRect converts a lon/lat bound to an S2 rectangle. Bounds spanning the
// full longitude range stay full instead of collapsing at the antimeridian.
func boundRect(b orb.Bound) s2.Rect {
	const deg = math.Pi / 180
	lat := r1.Interval{
		Lo: math.Max(-90, b.Min[1]) * deg,
		Hi: math.Min(90, b.Max[1]) * deg,
	}
	return s2.Rect{
		Lat: lat,
		Lng: s1.IntervalFromEndpoints(b.Min[0]*deg, b.Max[0]*deg),
	}
}

// intersects reports whether p lies inside or on the edge of any boundary polygon.
func (idx *boundaryIndex) intersects(p orb.Point) bool {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(p[1], p[0])).Parent(boundaryCellLevel)
	for _, i := range idx.cells[cell] {
		if polygonIntersects(idx.polys[i], p) {
			return true
		}
	}
	return false
}

// polygonIntersects is planar.PolygonContains with every ring closed: a point
// on a hole's edge still touches the polygon.
func polygonIntersects(poly orb.Polygon, p orb.Point) bool {
	if len(poly) == 0 || !planar.RingContains(poly[0], p) {
		return false
	}
	for _, hole := range poly[1:] {
		if planar.RingContains(hole, p) && !onRing(hole, p) {
			return false
		}
	}
	return true
}

func onRing(r orb.Ring, p orb.Point) bool {
	for i := 1; i < len(r); i++ {
		if onSegment(r[i-1], r[i], p) {
			return true
		}
	}
	return len(r) > 0 && onSegment(r[len(r)-1], r[0], p)
}

func onSegment(a, b, p orb.Point) bool {
	if p[0] < math.Min(a[0], b[0]) || p[0] > math.Max(a[0], b[0]) ||
		p[1] < math.Min(a[1], b[1]) || p[1] > math.Max(a[1], b[1]) {
		return false
	}
	return (b[0]-a[0])*(p[1]-a[1]) == (b[1]-a[1])*(p[0]-a[0])
}

// Intersects reports whether p (lon/lat) touches the region boundary.
// Points on a polygon edge count as intersecting.
func (r *ReferenceSet) Intersects(p orb.Point) bool {
	if r.index == nil {
		return false
	}
	return r.index.intersects(p)
}

// SpatialOutcome is the result of the spatial tier for one record.
type SpatialOutcome struct {
	Tier     MatchTier // TierSpatial or TierUnmatched
	Centroid orb.Point // lon/lat; zero when Err is set
	Err      error     // set when the record could not be tested at all
}

// Excluded reports whether the record never reached the boundary test.
func (o SpatialOutcome) Excluded() bool {
	return o.Err != nil
}

// ResolveSpatial confirms or rejects a record by the position of its
// centroid. The centroid is computed in the equal-area projection, mapped
// back to lon/lat and tested against the boundary. Points on the boundary
// count as inside.
func ResolveSpatial(g orb.Geometry, ref *ReferenceSet, proj *LAEA) SpatialOutcome {
	c, err := ProjectedCentroid(g, proj)
	if err != nil {
		return SpatialOutcome{Tier: TierUnmatched, Err: err}
	}
	if ref.Intersects(c) {
		return SpatialOutcome{Tier: TierSpatial, Centroid: c}
	}
	return SpatialOutcome{Tier: TierUnmatched, Centroid: c}
}

// ProjectedCentroid returns the area centroid of a polygonal geometry,
// computed in proj and returned in lon/lat.
func ProjectedCentroid(g orb.Geometry, proj *LAEA) (orb.Point, error) {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) < 4 {
			return orb.Point{}, fmt.Errorf("%w: empty polygon", ErrMalformedGeometry)
		}
	case orb.MultiPolygon:
		if len(g) == 0 {
			return orb.Point{}, fmt.Errorf("%w: empty multipolygon", ErrMalformedGeometry)
		}
	case nil:
		return orb.Point{}, fmt.Errorf("%w: no geometry", ErrMalformedGeometry)
	default:
		return orb.Point{}, fmt.Errorf("%w: unsupported type %s", ErrMalformedGeometry, g.GeoJSONType())
	}
	if !finiteGeometry(g) {
		return orb.Point{}, fmt.Errorf("%w: non-finite coordinates", ErrMalformedGeometry)
	}

	projected := project.Geometry(orb.Clone(g), proj.ToProjected)
	if !finiteGeometry(projected) {
		return orb.Point{}, fmt.Errorf("%w: geometry outside projection domain", ErrProjection)
	}

	c, area := planar.CentroidArea(projected)
	if area == 0 {
		return orb.Point{}, fmt.Errorf("%w: zero area", ErrMalformedGeometry)
	}
	ll, ok := proj.Inverse(c)
	if !ok || !finiteGeometry(ll) {
		return orb.Point{}, fmt.Errorf("%w: centroid not invertible", ErrProjection)
	}
	return ll, nil
}
