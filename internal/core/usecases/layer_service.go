package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/core/ports"
	"github.com/samirrijal/geolayers/internal/pkg/geospatial"
	"github.com/samirrijal/geolayers/internal/pkg/metrics"
	"github.com/samirrijal/geolayers/internal/pkg/telemetry"
)

const (
	// DefaultBBox covers Douala, the area the layers were first published for.
	DefaultBBox = "9.6000,4.0000,9.9000,4.2000"

	maxFeatureLimit = 5000
)

// LayerConfig tunes LayerService.
type LayerConfig struct {
	DefaultBBox string
	CacheTTL    time.Duration
}

// LayerService fetches layer features and converts them to geographic
// coordinates.
type LayerService struct {
	source      ports.FeatureSource
	cache       ports.CacheService
	defaultBBox string
	ttlSeconds  int
}

// NewLayerService creates a new LayerService.
func NewLayerService(source ports.FeatureSource, cache ports.CacheService, cfg LayerConfig) *LayerService {
	if cfg.DefaultBBox == "" {
		cfg.DefaultBBox = DefaultBBox
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &LayerService{
		source:      source,
		cache:       cache,
		defaultBBox: cfg.DefaultBBox,
		ttlSeconds:  int(cfg.CacheTTL.Seconds()),
	}
}

// DefaultBBox returns the bbox used when a query carries none.
func (s *LayerService) DefaultBBox() string { return s.defaultBBox }

// Categories lists the upstream categories of a layer.
func (s *LayerService) Categories(ctx context.Context, layer domain.Layer) ([]string, error) {
	if !layer.HasCategories() {
		return nil, fmt.Errorf("%w: layer %q has no categories", domain.ErrInvalidArgument, layer)
	}

	cacheKey := "layers:categories:" + string(layer)
	var cached []string
	if s.cacheGet(ctx, cacheKey, "categories", &cached) {
		return cached, nil
	}

	cats, err := s.source.Categories(ctx, layer)
	if err != nil {
		return nil, fmt.Errorf("fetch %s categories: %w", layer, err)
	}
	if cats == nil {
		cats = []string{}
	}
	s.cacheSet(ctx, cacheKey, cats)
	return cats, nil
}

// NormalizeQuery fills the default bbox, validates it and clamps paging.
func (s *LayerService) NormalizeQuery(q domain.LayerQuery) (domain.LayerQuery, error) {
	if !q.Layer.HasCategories() && q.Layer != domain.LayerJunctions {
		return q, domain.ErrUnknownLayer
	}
	if q.BBox == "" {
		q.BBox = s.defaultBBox
	}
	bbox, err := geospatial.ParseBBoxStrict(q.BBox)
	if err != nil || !bbox.Valid() {
		return q, fmt.Errorf("%w: %q", domain.ErrInvalidBBox, q.BBox)
	}
	q.BBox = bbox.String()
	if q.Limit < 0 || q.Limit > maxFeatureLimit {
		q.Limit = maxFeatureLimit
	}
	if q.Page < 0 {
		q.Page = 0
	}
	return q, nil
}

// Features returns the features of a layer inside a bbox, converted to
// longitude/latitude. For the junctions layer the category is the junction
// type code.
func (s *LayerService) Features(ctx context.Context, q domain.LayerQuery) (*geojson.FeatureCollection, error) {
	q, err := s.NormalizeQuery(q)
	if err != nil {
		return nil, err
	}
	if q.Layer == domain.LayerJunctions {
		return s.Junctions(ctx, domain.JunctionQuery{TypeCode: q.Category, Limit: q.Limit})
	}

	cacheKey := fmt.Sprintf("layers:features:%s:%s:%s:%d:%d", q.Layer, q.Category, q.BBox, q.Limit, q.Page)
	fc := geojson.NewFeatureCollection()
	if s.cacheGet(ctx, cacheKey, "features", fc) {
		return fc, nil
	}

	ctx, span := otel.Tracer(telemetry.TracerInstrumentID).Start(ctx, telemetry.SpanFetchFeatures)
	defer span.End()
	span.SetAttributes(
		attribute.String("layer", string(q.Layer)),
		attribute.String("category", q.Category),
		attribute.String("bbox", q.BBox),
	)

	env, err := s.source.Features(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch %s features: %w", q.Layer, err)
	}

	fc = s.convert(q.Layer, env)
	span.SetAttributes(attribute.Int("features", len(fc.Features)))
	s.cacheSet(ctx, cacheKey, fc)
	return fc, nil
}

// Junctions returns road junctions, converted to longitude/latitude.
func (s *LayerService) Junctions(ctx context.Context, q domain.JunctionQuery) (*geojson.FeatureCollection, error) {
	if q.Limit < 0 || q.Limit > maxFeatureLimit {
		q.Limit = maxFeatureLimit
	}

	cacheKey := fmt.Sprintf("layers:junctions:%s:%d", q.TypeCode, q.Limit)
	fc := geojson.NewFeatureCollection()
	if s.cacheGet(ctx, cacheKey, "junctions", fc) {
		return fc, nil
	}

	env, err := s.source.Junctions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch junctions: %w", err)
	}
	fc = s.convert(domain.LayerJunctions, env)
	s.cacheSet(ctx, cacheKey, fc)
	return fc, nil
}

// Convert turns a raw envelope into a geographic collection.
func (s *LayerService) Convert(env *geospatial.Envelope) *geojson.FeatureCollection {
	return s.convert("", env)
}

func (s *LayerService) convert(layer domain.Layer, env *geospatial.Envelope) *geojson.FeatureCollection {
	fc := geospatial.ConvertFeatureCollection(env)
	label := string(layer)
	if label == "" {
		label = "adhoc"
	}
	metrics.FeaturesConverted.WithLabelValues(label).Add(float64(len(fc.Features)))
	if env != nil && env.Skipped > 0 {
		metrics.FeaturesSkipped.WithLabelValues(label).Add(float64(env.Skipped))
	}
	return fc
}

// cacheGet decodes a cached value into dst. Cache errors count as misses.
func (s *LayerService) cacheGet(ctx context.Context, key, op string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err == nil && json.Unmarshal(data, dst) == nil {
		metrics.CacheHits.WithLabelValues(op).Inc()
		return true
	}
	metrics.CacheMisses.WithLabelValues(op).Inc()
	return false
}

func (s *LayerService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, s.ttlSeconds)
	}
}
