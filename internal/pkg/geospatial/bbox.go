package geospatial

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ErrMalformedBBox is returned by ParseBBoxStrict.
var ErrMalformedBBox = errors.New("malformed bbox")

// BBox is a geographic bounding box in degrees.
type BBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// NewBBox builds a box from four discrete fields.
func NewBBox(minLon, minLat, maxLon, maxLat float64) BBox {
	return BBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
}

func nanBBox() BBox {
	n := math.NaN()
	return BBox{MinLon: n, MinLat: n, MaxLon: n, MaxLat: n}
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat". It never fails: on a wrong
// field count or non-numeric text every bound is NaN, which makes Contains
// reject every point downstream.
func ParseBBox(s string) BBox {
	b, err := ParseBBoxStrict(s)
	if err != nil {
		return nanBBox()
	}
	return b
}

// ParseBBoxStrict is ParseBBox with the failure surfaced.
func ParseBBoxStrict(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nanBBox(), fmt.Errorf("%w: want 4 fields, got %d", ErrMalformedBBox, len(parts))
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nanBBox(), fmt.Errorf("%w: field %d: %q", ErrMalformedBBox, i, p)
		}
		v[i] = f
	}
	return NewBBox(v[0], v[1], v[2], v[3]), nil
}

// String formats the box the way the upstream API expects it.
func (b BBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s", fmtCoord(b.MinLon), fmtCoord(b.MinLat), fmtCoord(b.MaxLon), fmtCoord(b.MaxLat))
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Valid reports whether all bounds are finite and min <= max on both axes.
func (b BBox) Valid() bool {
	for _, v := range [...]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinLon <= b.MaxLon && b.MinLat <= b.MaxLat
}

// Contains reports whether p lies inside the box, edges included.
// Always false when any bound is NaN.
func (b BBox) Contains(p orb.Point) bool {
	return p[0] >= b.MinLon && p[0] <= b.MaxLon &&
		p[1] >= b.MinLat && p[1] <= b.MaxLat
}

// Bound converts to an orb.Bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
}

// Ring returns the box as a closed counter-clockwise ring starting at the
// south-west corner.
func (b BBox) Ring() orb.Ring {
	return orb.Ring{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}
}

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000
}

// AroundPoint returns a box around a point with the given radius in meters.
func AroundPoint(lat, lon, radiusMeters float64) BBox {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return NewBBox(lon-lonDelta, lat-latDelta, lon+lonDelta, lat+latDelta)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
