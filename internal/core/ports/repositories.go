package ports

import (
	"context"
	"encoding/json"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/pkg/geospatial"
)

// FeatureSource supplies raw, still projected, feature envelopes.
// Implemented by the upstream map API client and the PostGIS store.
type FeatureSource interface {
	Categories(ctx context.Context, layer domain.Layer) ([]string, error)
	Features(ctx context.Context, q domain.LayerQuery) (*geospatial.Envelope, error)
	Junctions(ctx context.Context, q domain.JunctionQuery) (*geospatial.Envelope, error)
}

// FeatureStore persists features for a FeatureSource backed by a database.
type FeatureStore interface {
	FeatureSource
	InsertBatch(ctx context.Context, layer domain.Layer, category string, features []*geojson.Feature) (int, error)
}

// WeatherSource returns upstream weather documents unchanged.
type WeatherSource interface {
	WeatherByCoordinates(ctx context.Context, q domain.WeatherQuery) (json.RawMessage, error)
	WeatherByZone(ctx context.Context, zoneID string) (json.RawMessage, error)
}
