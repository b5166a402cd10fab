package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	// DefaultGridSize is the grid resolution used when callers pass a size < 1.
	DefaultGridSize = 20
	// MaxGridSize caps the resolution so the N×N matrix stays allocatable.
	MaxGridSize = 4096
)

// DensityResult is the densest cell of a grid as a polygon feature tagged
// with {density, gridSize}, plus the raw count.
type DensityResult struct {
	Polygon *geojson.Feature `json:"polygon"`
	Count   int              `json:"count"`
	Col     int              `json:"col"`
	Row     int              `json:"row"`
}

// Grid is an N×N occupancy matrix over a bounding box.
type Grid struct {
	Size  int
	BBox  BBox
	CellW float64
	CellH float64

	// Binned and Dropped account for every polygon centroid seen:
	// Binned landed in a cell, Dropped fell outside the box.
	Binned  int
	Dropped int

	counts []int // row-major
}

// NewGrid allocates an empty grid. size < 1 falls back to DefaultGridSize and
// sizes above MaxGridSize are clamped to it.
func NewGrid(bbox BBox, size int) *Grid {
	if size < 1 {
		size = DefaultGridSize
	}
	if size > MaxGridSize {
		size = MaxGridSize
	}
	return &Grid{
		Size:   size,
		BBox:   bbox,
		CellW:  (bbox.MaxLon - bbox.MinLon) / float64(size),
		CellH:  (bbox.MaxLat - bbox.MinLat) / float64(size),
		counts: make([]int, size*size),
	}
}

// Add bins a point. Points outside the box (or any point when the box has
// NaN bounds) are counted as dropped.
func (g *Grid) Add(p orb.Point) bool {
	if !g.BBox.Contains(p) {
		g.Dropped++
		return false
	}
	col := g.index(p[0], g.BBox.MinLon, g.CellW)
	row := g.index(p[1], g.BBox.MinLat, g.CellH)
	g.counts[row*g.Size+col]++
	g.Binned++
	return true
}

// index maps a coordinate to a cell index, clamping values on the max edge
// into the last cell. A zero-width axis puts everything in cell 0.
func (g *Grid) index(v, min, cell float64) int {
	f := math.Floor((v - min) / cell)
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= float64(g.Size-1) {
		return g.Size - 1
	}
	return int(f)
}

// Count returns the occupancy of a cell; out-of-range cells are empty.
func (g *Grid) Count(col, row int) int {
	if col < 0 || row < 0 || col >= g.Size || row >= g.Size {
		return 0
	}
	return g.counts[row*g.Size+col]
}

// Total sums every cell.
func (g *Grid) Total() int {
	n := 0
	for _, c := range g.counts {
		n += c
	}
	return n
}

// Densest scans rows bottom-up and columns left-to-right and returns the first
// cell holding the maximum count.
func (g *Grid) Densest() (col, row, count int) {
	count = -1
	for r := 0; r < g.Size; r++ {
		for c := 0; c < g.Size; c++ {
			if n := g.counts[r*g.Size+c]; n > count {
				col, row, count = c, r, n
			}
		}
	}
	return col, row, count
}

// CellBBox is the geographic extent of a cell.
func (g *Grid) CellBBox(col, row int) BBox {
	minLon := g.BBox.MinLon + float64(col)*g.CellW
	minLat := g.BBox.MinLat + float64(row)*g.CellH
	return NewBBox(minLon, minLat, minLon+g.CellW, minLat+g.CellH)
}

// BuildGrid bins the outer-ring centroid of every Polygon feature.
// Non-polygon and nil features are skipped without being counted.
func BuildGrid(features []*geojson.Feature, bbox BBox, size int) *Grid {
	g := NewGrid(bbox, size)
	for _, f := range features {
		if f == nil {
			continue
		}
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			continue
		}
		c, ok := polygonCentroid(poly)
		if !ok {
			continue
		}
		g.Add(c)
	}
	return g
}

// FindDensestCell parses bboxStr and returns the densest grid cell. It never
// fails: a malformed box or an empty input degrade to count 0.
func FindDensestCell(features []*geojson.Feature, bboxStr string, gridSize int) DensityResult {
	return FindDensestCellInBBox(features, ParseBBox(bboxStr), gridSize)
}

// FindDensestCellInBBox is FindDensestCell for an already parsed box.
func FindDensestCellInBBox(features []*geojson.Feature, bbox BBox, gridSize int) DensityResult {
	g := BuildGrid(features, bbox, gridSize)
	return g.Result()
}

// Result packages the densest cell as a polygon feature.
func (g *Grid) Result() DensityResult {
	col, row, count := g.Densest()
	cell := g.CellBBox(col, row)

	f := geojson.NewFeature(orb.Polygon{cell.Ring()})
	f.Properties["density"] = count
	f.Properties["gridSize"] = g.Size

	return DensityResult{Polygon: f, Count: count, Col: col, Row: row}
}
