package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/pkg/geospatial"
)

// --- Mock FeatureSource ---

type mockSource struct {
	mu           sync.Mutex
	calls        int
	categoriesFn func(ctx context.Context, layer domain.Layer) ([]string, error)
	featuresFn   func(ctx context.Context, q domain.LayerQuery) (*geospatial.Envelope, error)
	junctionsFn  func(ctx context.Context, q domain.JunctionQuery) (*geospatial.Envelope, error)
}

func (m *mockSource) hit() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *mockSource) Categories(ctx context.Context, layer domain.Layer) ([]string, error) {
	m.hit()
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx, layer)
	}
	return nil, nil
}

func (m *mockSource) Features(ctx context.Context, q domain.LayerQuery) (*geospatial.Envelope, error) {
	m.hit()
	if m.featuresFn != nil {
		return m.featuresFn(ctx, q)
	}
	return &geospatial.Envelope{}, nil
}

func (m *mockSource) Junctions(ctx context.Context, q domain.JunctionQuery) (*geospatial.Envelope, error) {
	m.hit()
	if m.junctionsFn != nil {
		return m.junctionsFn(ctx, q)
	}
	return &geospatial.Envelope{}, nil
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttl: map[string]int{}}
}

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return b, nil
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttl[key] = ttlSeconds
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// mockVersionedCache adds an atomic compare-and-set on top of mockCache.
type mockVersionedCache struct {
	*mockCache
	versions    map[string]int64
	conditional int
}

func newMockVersionedCache() *mockVersionedCache {
	return &mockVersionedCache{mockCache: newMockCache(), versions: map[string]int64{}}
}

func (c *mockVersionedCache) SetIfNewer(ctx context.Context, key string, value []byte, version int64, ttlSeconds int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conditional++
	if cur, ok := c.versions[key]; ok && cur > version {
		return false, nil
	}
	c.versions[key] = version
	c.data[key] = value
	c.ttl[key] = ttlSeconds
	return true, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu   sync.Mutex
	recs []*domain.ZoneRecommendation
	err  error
}

func (p *mockPublisher) PublishZoneRecommendation(ctx context.Context, rec *domain.ZoneRecommendation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.recs = append(p.recs, rec)
	return nil
}

// --- Mock WeatherSource ---

type mockWeather struct {
	byCoordsFn func(ctx context.Context, q domain.WeatherQuery) (json.RawMessage, error)
	byZoneFn   func(ctx context.Context, zoneID string) (json.RawMessage, error)
}

func (m *mockWeather) WeatherByCoordinates(ctx context.Context, q domain.WeatherQuery) (json.RawMessage, error) {
	if m.byCoordsFn != nil {
		return m.byCoordsFn(ctx, q)
	}
	return json.RawMessage(`{}`), nil
}

func (m *mockWeather) WeatherByZone(ctx context.Context, zoneID string) (json.RawMessage, error) {
	if m.byZoneFn != nil {
		return m.byZoneFn(ctx, zoneID)
	}
	return json.RawMessage(`{}`), nil
}

// --- Fixtures ---

// project is the forward spherical Mercator transform.
func project(lon, lat float64) orb.Point {
	x := lon * geospatial.MercatorExtent / 180
	y := math.Log(math.Tan((90+lat)*math.Pi/360)) * geospatial.MercatorExtent / math.Pi
	return orb.Point{x, y}
}

// projectedSquare returns a projected polygon feature of side 2*half degrees
// centred on (lon, lat).
func projectedSquare(lon, lat, half float64) *geojson.Feature {
	ring := orb.Ring{
		project(lon-half, lat-half),
		project(lon+half, lat-half),
		project(lon+half, lat+half),
		project(lon-half, lat+half),
		project(lon-half, lat-half),
	}
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties["name"] = "block"
	return f
}

func envelopeOf(features ...*geojson.Feature) *geospatial.Envelope {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f)
	}
	return &geospatial.Envelope{Message: "ok", Data: fc}
}
