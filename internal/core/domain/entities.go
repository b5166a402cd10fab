package domain

import (
	"time"

	"github.com/paulmach/orb/geojson"
)

// Layer identifies a family of map features served by the upstream API.
type Layer string

const (
	LayerBuildings Layer = "buildings"
	LayerRoads     Layer = "roads"
	LayerJunctions Layer = "junctions"
)

// ParseLayer validates a layer name coming from a URL or query argument.
func ParseLayer(s string) (Layer, error) {
	switch l := Layer(s); l {
	case LayerBuildings, LayerRoads, LayerJunctions:
		return l, nil
	}
	return "", ErrUnknownLayer
}

// HasCategories reports whether the layer is split into categories upstream.
func (l Layer) HasCategories() bool {
	return l == LayerBuildings || l == LayerRoads
}

// LayerQuery selects a page of features of one layer inside a bbox.
// An empty Category means the whole layer.
type LayerQuery struct {
	Layer    Layer  `json:"layer"`
	Category string `json:"category,omitempty"`
	BBox     string `json:"bbox"`
	Limit    int    `json:"limit,omitempty"`
	Page     int    `json:"page,omitempty"`
}

// JunctionQuery selects junctions by type code.
type JunctionQuery struct {
	TypeCode string `json:"junction_type_code"`
	Limit    int    `json:"limit,omitempty"`
}

// ZoneRecommendation is the densest grid cell of a layer category, ready for
// a "zoom to this area" action on the map.
type ZoneRecommendation struct {
	ID         string           `json:"id"`
	Layer      Layer            `json:"layer"`
	Category   string           `json:"category,omitempty"`
	BBox       string           `json:"bbox"`
	GridSize   int              `json:"grid_size"`
	Count      int              `json:"count"`
	Features   int              `json:"features"`
	WidthM     float64          `json:"width_m"`
	HeightM    float64          `json:"height_m"`
	Polygon    *geojson.Feature `json:"polygon"`
	ComputedAt time.Time        `json:"computed_at"`
}

// WeatherQuery asks for current weather around a point.
type WeatherQuery struct {
	Location     GeoPoint `json:"location"`
	BufferRadius float64  `json:"buffer_radius"`
}
