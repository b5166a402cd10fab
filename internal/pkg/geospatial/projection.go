// Package geospatial holds the coordinate projector and the density grid
// estimator. Everything in here is pure: no I/O, no package-level state, safe
// to call from any number of goroutines.
package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MercatorExtent is half the equatorial circumference in meters under the
// spherical Web-Mercator approximation.
const MercatorExtent = 20037508.34

// ProjectedToGeographic applies the inverse spherical-Mercator transform.
// Inputs are not validated: a y large enough to overflow exp yields +Inf/NaN.
func ProjectedToGeographic(x, y float64) (lon, lat float64) {
	lon = x / MercatorExtent * 180
	lat = (2*math.Atan(math.Exp(y*math.Pi/MercatorExtent)) - math.Pi/2) * (180 / math.Pi)
	return lon, lat
}

// ConvertPoint converts a single projected point.
func ConvertPoint(p orb.Point) orb.Point {
	lon, lat := ProjectedToGeographic(p[0], p[1])
	return orb.Point{lon, lat}
}

// ConvertRing converts every point of a ring, preserving order and closure.
func ConvertRing(r orb.Ring) orb.Ring {
	if r == nil {
		return nil
	}
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[i] = ConvertPoint(p)
	}
	return out
}

// ConvertPolygon converts the outer ring and all holes.
func ConvertPolygon(p orb.Polygon) orb.Polygon {
	if p == nil {
		return nil
	}
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		out[i] = ConvertRing(r)
	}
	return out
}

// ConvertGeometry reprojects Polygon geometries and returns every other
// geometry type unchanged. Only polygon layers (buildings) arrive projected.
func ConvertGeometry(g orb.Geometry) orb.Geometry {
	if p, ok := g.(orb.Polygon); ok {
		return ConvertPolygon(p)
	}
	return g
}

// ConvertFeature returns a new feature with its geometry reprojected.
// The input feature is left untouched.
func ConvertFeature(f *geojson.Feature) *geojson.Feature {
	if f == nil {
		return nil
	}
	out := &geojson.Feature{
		ID:         f.ID,
		Type:       f.Type,
		BBox:       f.BBox,
		Geometry:   ConvertGeometry(f.Geometry),
		Properties: f.Properties.Clone(),
	}
	if _, ok := f.Geometry.(orb.Polygon); ok && len(f.BBox) > 0 {
		out.BBox = geojson.NewBBox(out.Geometry.Bound())
	}
	if out.Type == "" {
		out.Type = "Feature"
	}
	if out.Properties == nil {
		out.Properties = geojson.Properties{}
	}
	return out
}

// ConvertFeatureCollection turns an upstream envelope into a well-formed
// geographic FeatureCollection. A nil envelope or one without data yields an
// empty collection, never nil.
func ConvertFeatureCollection(env *Envelope) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if env == nil || env.Data == nil {
		return fc
	}
	fc.Features = make([]*geojson.Feature, 0, len(env.Data.Features))
	for _, f := range env.Data.Features {
		if f == nil {
			continue
		}
		fc.Features = append(fc.Features, ConvertFeature(f))
	}
	return fc
}
