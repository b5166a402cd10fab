package geospatial

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const eps = 1e-9

// geographicToProjected is the forward transform, kept here only to check
// that ProjectedToGeographic inverts it.
func geographicToProjected(lon, lat float64) (x, y float64) {
	x = lon * MercatorExtent / 180
	y = math.Log(math.Tan((90+lat)*math.Pi/360)) / (math.Pi / 180)
	y = y * MercatorExtent / 180
	return x, y
}

func TestProjectedToGeographic_Origin(t *testing.T) {
	lon, lat := ProjectedToGeographic(0, 0)
	if math.Abs(lon) > eps || math.Abs(lat) > eps {
		t.Fatalf("expected (0,0), got (%v,%v)", lon, lat)
	}
}

func TestProjectedToGeographic_KnownPoints(t *testing.T) {
	tests := []struct {
		name     string
		x, y     float64
		lon, lat float64
	}{
		{"east edge", MercatorExtent, 0, 180, 0},
		{"west edge", -MercatorExtent, 0, -180, 0},
		{"max mercator latitude", 0, MercatorExtent, 0, 85.0511287798066},
		{"douala", 1068731.92, 456110.24, 9.600582, 4.093820},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lon, lat := ProjectedToGeographic(tt.x, tt.y)
			if math.Abs(lon-tt.lon) > 1e-3 || math.Abs(lat-tt.lat) > 1e-3 {
				t.Errorf("ProjectedToGeographic(%v,%v) = (%v,%v), want (%v,%v)", tt.x, tt.y, lon, lat, tt.lon, tt.lat)
			}
		})
	}
}

func TestProjectedToGeographic_RoundTrip(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{1068731.92, 456110.24},
		{-8238310.24, 4970071.58},
		{15000000, -7000000},
		{-20000000, 19000000},
	}
	for _, p := range points {
		lon, lat := ProjectedToGeographic(p[0], p[1])
		x, y := geographicToProjected(lon, lat)
		if math.Abs(x-p[0]) > 1e-4 || math.Abs(y-p[1]) > 1e-4 {
			t.Errorf("round trip of %v gave (%v,%v)", p, x, y)
		}
	}
}

func TestProjectedToGeographic_OutOfDomain(t *testing.T) {
	_, lat := ProjectedToGeographic(0, 1e308)
	if math.Abs(lat-90) > eps {
		t.Errorf("expected latitude to saturate at 90, got %v", lat)
	}
	lon, _ := ProjectedToGeographic(math.Inf(1), 0)
	if !math.IsInf(lon, 1) {
		t.Errorf("expected +Inf longitude, got %v", lon)
	}
	lon, lat = ProjectedToGeographic(math.NaN(), math.NaN())
	if !math.IsNaN(lon) || !math.IsNaN(lat) {
		t.Errorf("expected NaN to propagate, got (%v,%v)", lon, lat)
	}
}

func TestConvertRing_PreservesOrderAndClosure(t *testing.T) {
	ring := orb.Ring{{0, 0}, {MercatorExtent, 0}, {MercatorExtent, 1000}, {0, 0}}
	got := ConvertRing(ring)

	if len(got) != len(ring) {
		t.Fatalf("expected %d points, got %d", len(ring), len(got))
	}
	if got[0] != got[len(got)-1] {
		t.Errorf("ring no longer closed: %v", got)
	}
	if math.Abs(got[1][0]-180) > eps {
		t.Errorf("expected second point lon 180, got %v", got[1][0])
	}
	if ring[1][0] != MercatorExtent {
		t.Error("input ring was mutated")
	}
}

func TestConvertGeometry_PolygonWithHole(t *testing.T) {
	poly := orb.Polygon{
		{{0, 0}, {1000, 0}, {1000, 1000}, {0, 1000}, {0, 0}},
		{{100, 100}, {200, 100}, {200, 200}, {100, 100}},
	}
	got, ok := ConvertGeometry(poly).(orb.Polygon)
	if !ok {
		t.Fatal("expected a polygon back")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rings, got %d", len(got))
	}
	wantLon, wantLat := ProjectedToGeographic(200, 200)
	if got[1][2] != (orb.Point{wantLon, wantLat}) {
		t.Errorf("hole not converted: %v", got[1][2])
	}
}

func TestConvertGeometry_NonPolygonPassthrough(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
	}{
		{"point", orb.Point{1068731.92, 456110.24}},
		{"linestring", orb.LineString{{0, 0}, {1000, 1000}}},
		{"multipolygon", orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertGeometry(tt.geom); !orb.Equal(got, tt.geom) {
				t.Errorf("expected identity, got %v", got)
			}
		})
	}
}

func TestConvertFeature_DoesNotMutateInput(t *testing.T) {
	in := geojson.NewFeature(orb.Polygon{{{0, 0}, {MercatorExtent, 0}, {MercatorExtent, MercatorExtent}, {0, 0}}})
	in.ID = "b-1"
	in.Properties["building"] = "school"

	out := ConvertFeature(in)

	if out == in {
		t.Fatal("expected a new feature")
	}
	if out.ID != "b-1" || out.Properties["building"] != "school" {
		t.Errorf("id/properties not carried over: %v %v", out.ID, out.Properties)
	}
	out.Properties["building"] = "changed"
	if in.Properties["building"] != "school" {
		t.Error("properties are shared with the input")
	}
	if in.Geometry.(orb.Polygon)[0][1][0] != MercatorExtent {
		t.Error("input geometry was mutated")
	}
	if lon := out.Geometry.(orb.Polygon)[0][1][0]; math.Abs(lon-180) > eps {
		t.Errorf("expected converted lon 180, got %v", lon)
	}
}

func TestConvertFeatureCollection_MissingData(t *testing.T) {
	tests := []struct {
		name string
		env  *Envelope
	}{
		{"nil envelope", nil},
		{"nil data", &Envelope{Message: "ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := ConvertFeatureCollection(tt.env)
			if fc == nil {
				t.Fatal("expected a collection, got nil")
			}
			if fc.Type != "FeatureCollection" {
				t.Errorf("expected FeatureCollection, got %q", fc.Type)
			}
			if fc.Features == nil || len(fc.Features) != 0 {
				t.Errorf("expected empty non-nil features, got %v", fc.Features)
			}
		})
	}
}

func TestConvertFeatureCollection_MixedGeometries(t *testing.T) {
	data := geojson.NewFeatureCollection()
	data.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {MercatorExtent, 0}, {0, 0}}}))
	data.Append(geojson.NewFeature(orb.Point{9.7, 4.05}))

	fc := ConvertFeatureCollection(&Envelope{Data: data})
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}
	if lon := fc.Features[0].Geometry.(orb.Polygon)[0][1][0]; math.Abs(lon-180) > eps {
		t.Errorf("polygon not converted, lon=%v", lon)
	}
	if p := fc.Features[1].Geometry.(orb.Point); p != (orb.Point{9.7, 4.05}) {
		t.Errorf("point should pass through, got %v", p)
	}
}
