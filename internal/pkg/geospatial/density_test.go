package geospatial

import (
	"math"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// squareAround returns a small square polygon feature centred on (x, y).
func squareAround(x, y float64) *geojson.Feature {
	const h = 0.1
	return geojson.NewFeature(orb.Polygon{{
		{x - h, y - h}, {x + h, y - h}, {x + h, y + h}, {x - h, y + h}, {x - h, y - h},
	}})
}

func ringOf(t *testing.T, f *geojson.Feature) orb.Ring {
	t.Helper()
	poly, ok := f.Geometry.(orb.Polygon)
	if !ok || len(poly) != 1 {
		t.Fatalf("expected single-ring polygon, got %T %v", f.Geometry, f.Geometry)
	}
	return poly[0]
}

func TestFindDensestCell_Example(t *testing.T) {
	features := []*geojson.Feature{squareAround(1, 1), squareAround(2, 2), squareAround(9, 9)}

	res := FindDensestCell(features, "0,0,10,10", 2)

	if res.Count != 2 {
		t.Fatalf("expected count 2, got %d", res.Count)
	}
	if res.Col != 0 || res.Row != 0 {
		t.Errorf("expected cell (0,0), got (%d,%d)", res.Col, res.Row)
	}
	want := orb.Ring{{0, 0}, {5, 0}, {5, 5}, {0, 5}, {0, 0}}
	if got := ringOf(t, res.Polygon); !reflect.DeepEqual(got, want) {
		t.Errorf("polygon = %v, want %v", got, want)
	}
	if res.Polygon.Properties["density"] != 2 || res.Polygon.Properties["gridSize"] != 2 {
		t.Errorf("unexpected properties: %v", res.Polygon.Properties)
	}

	g := BuildGrid(features, ParseBBox("0,0,10,10"), 2)
	if g.Count(0, 0) != 2 || g.Count(1, 1) != 1 || g.Count(1, 0) != 0 || g.Count(0, 1) != 0 {
		t.Errorf("unexpected grid: (0,0)=%d (1,1)=%d (1,0)=%d (0,1)=%d",
			g.Count(0, 0), g.Count(1, 1), g.Count(1, 0), g.Count(0, 1))
	}
}

func TestFindDensestCell_Empty(t *testing.T) {
	res := FindDensestCell(nil, "9.6,4.0,9.9,4.2", 20)

	if res.Count != 0 {
		t.Fatalf("expected count 0, got %d", res.Count)
	}
	ring := ringOf(t, res.Polygon)
	cellW, cellH := 0.3/20, 0.2/20
	if !closeTo(ring[0], orb.Point{9.6, 4.0}) || !closeTo(ring[2], orb.Point{9.6 + cellW, 4.0 + cellH}) {
		t.Errorf("expected first grid cell, got %v", ring)
	}
	if ring[0] != ring[len(ring)-1] || len(ring) != 5 {
		t.Errorf("expected closed 5-point ring, got %v", ring)
	}
}

func TestFindDensestCell_MalformedBBox(t *testing.T) {
	features := []*geojson.Feature{squareAround(1, 1), squareAround(2, 2)}
	for _, bbox := range []string{"", "1,2,3", "a,b,c,d", "0,0,10,10,12", "0,0,ten,10"} {
		t.Run(bbox, func(t *testing.T) {
			res := FindDensestCell(features, bbox, 4)
			if res.Count != 0 {
				t.Errorf("expected count 0, got %d", res.Count)
			}
			if !math.IsNaN(ringOf(t, res.Polygon)[0][0]) {
				t.Error("expected NaN polygon for malformed bbox")
			}
		})
	}
}

func TestFindDensestCell_AllOutside(t *testing.T) {
	features := []*geojson.Feature{squareAround(50, 50), squareAround(-20, 3)}
	res := FindDensestCell(features, "0,0,10,10", 5)
	if res.Count != 0 {
		t.Errorf("expected count 0, got %d", res.Count)
	}
}

func TestFindDensestCell_IgnoresNonPolygons(t *testing.T) {
	features := []*geojson.Feature{
		geojson.NewFeature(orb.Point{1, 1}),
		geojson.NewFeature(orb.LineString{{1, 1}, {2, 2}}),
		nil,
		{Type: "Feature"},
		squareAround(8, 8),
	}
	res := FindDensestCell(features, "0,0,10,10", 2)
	if res.Count != 1 || res.Col != 1 || res.Row != 1 {
		t.Errorf("expected count 1 at (1,1), got %d at (%d,%d)", res.Count, res.Col, res.Row)
	}
}

func TestGrid_BoundaryClamp(t *testing.T) {
	g := NewGrid(NewBBox(0, 0, 10, 10), 4)

	if !g.Add(orb.Point{10, 10}) {
		t.Fatal("max corner should be inside")
	}
	if g.Count(3, 3) != 1 {
		t.Errorf("expected max corner in cell (3,3)")
	}
	g.Add(orb.Point{10, 0})
	if g.Count(3, 0) != 1 {
		t.Errorf("expected (10,0) in cell (3,0)")
	}
	g.Add(orb.Point{0, 10})
	if g.Count(0, 3) != 1 {
		t.Errorf("expected (0,10) in cell (0,3)")
	}
	if g.Total() != 3 {
		t.Errorf("expected 3 binned, got %d", g.Total())
	}
}

func TestGrid_ZeroWidthBox(t *testing.T) {
	g := NewGrid(NewBBox(5, 5, 5, 5), 3)
	g.Add(orb.Point{5, 5})
	if g.Count(0, 0) != 1 {
		t.Errorf("expected degenerate box to bin into (0,0)")
	}
}

func TestGrid_OccupancyConservation(t *testing.T) {
	var features []*geojson.Feature
	inside := 0
	for i := 0; i < 200; i++ {
		x := 0.35 + float64(i%23)*0.7
		y := 0.45 + float64(i%17)*0.9
		features = append(features, squareAround(x, y))
		if x >= 0 && x <= 10 && y >= 0 && y <= 10 {
			inside++
		}
	}

	g := BuildGrid(features, NewBBox(0, 0, 10, 10), 7)
	if g.Total() != inside {
		t.Errorf("grid total %d, want %d centroids inside", g.Total(), inside)
	}
	if g.Binned != inside || g.Binned+g.Dropped != len(features) {
		t.Errorf("binned=%d dropped=%d, want %d/%d", g.Binned, g.Dropped, inside, len(features)-inside)
	}
}

func TestFindDensestCell_TieBreakRowMajor(t *testing.T) {
	// One centroid in (1,0) and one in (0,1): the row-0 cell wins.
	features := []*geojson.Feature{squareAround(7, 2), squareAround(2, 7)}
	res := FindDensestCell(features, "0,0,10,10", 2)
	if res.Count != 1 || res.Col != 1 || res.Row != 0 {
		t.Errorf("expected (1,0) count 1, got (%d,%d) count %d", res.Col, res.Row, res.Count)
	}
}

func TestFindDensestCell_Deterministic(t *testing.T) {
	features := []*geojson.Feature{
		squareAround(1, 1), squareAround(8, 8), squareAround(1.5, 8), squareAround(8, 1.5),
	}
	a := FindDensestCell(features, "0,0,10,10", 2)
	b := FindDensestCell(features, "0,0,10,10", 2)
	if a.Count != b.Count || a.Col != b.Col || a.Row != b.Row ||
		!reflect.DeepEqual(a.Polygon.Geometry, b.Polygon.Geometry) {
		t.Errorf("results differ: %+v vs %+v", a, b)
	}
}

func TestFindDensestCell_DefaultGridSize(t *testing.T) {
	res := FindDensestCell([]*geojson.Feature{squareAround(1, 1)}, "0,0,10,10", 0)
	if res.Polygon.Properties["gridSize"] != DefaultGridSize {
		t.Errorf("expected default grid size, got %v", res.Polygon.Properties["gridSize"])
	}
}

func TestFindDensestCell_HugeGridSize(t *testing.T) {
	sizes := []int{MaxGridSize + 1, 100000, math.MaxInt32, math.MaxInt}
	for _, n := range sizes {
		res := FindDensestCell([]*geojson.Feature{squareAround(1, 1)}, "0,0,10,10", n)
		if res.Polygon.Properties["gridSize"] != MaxGridSize {
			t.Errorf("size %d: gridSize = %v, want %d", n, res.Polygon.Properties["gridSize"], MaxGridSize)
		}
		if res.Count != 1 {
			t.Errorf("size %d: count = %d, want 1", n, res.Count)
		}
		if res.Col < 0 || res.Col >= MaxGridSize || res.Row < 0 || res.Row >= MaxGridSize {
			t.Errorf("size %d: cell (%d,%d) out of range", n, res.Col, res.Row)
		}
		ring := ringOf(t, res.Polygon)
		if len(ring) != 5 || ring[0][0] > 1 || ring[0][1] > 1 || ring[2][0] < 1 || ring[2][1] < 1 {
			t.Errorf("size %d: cell %v does not contain the centroid (1,1)", n, ring)
		}
	}
}
