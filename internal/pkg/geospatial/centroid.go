package geospatial

import "github.com/paulmach/orb"

// Centroid returns the area-weighted center of the polygon's outer ring.
// Holes are ignored. A zero-area ring falls back to its first vertex; an
// empty polygon yields the zero point.
func Centroid(p orb.Polygon) orb.Point {
	c, _ := polygonCentroid(p)
	return c
}

// polygonCentroid reports ok=false when the polygon has no vertices at all.
func polygonCentroid(p orb.Polygon) (orb.Point, bool) {
	if len(p) == 0 {
		return orb.Point{}, false
	}
	return ringCentroid(p[0])
}

// ringCentroid uses the shoelace formula. Pairs run (ring[j], ring[i]) with j
// trailing i, starting from the last vertex, so open and closed rings give
// the same answer.
func ringCentroid(ring orb.Ring) (orb.Point, bool) {
	if len(ring) == 0 {
		return orb.Point{}, false
	}

	var twiceArea, cx, cy float64
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		x0, y0 := ring[j][0], ring[j][1]
		x1, y1 := ring[i][0], ring[i][1]
		f := x0*y1 - x1*y0
		twiceArea += f
		cx += (x0 + x1) * f
		cy += (y0 + y1) * f
	}

	if twiceArea == 0 {
		return ring[0], true
	}
	return orb.Point{cx / (3 * twiceArea), cy / (3 * twiceArea)}, true
}
