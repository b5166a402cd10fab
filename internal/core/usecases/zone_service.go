package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/core/ports"
	"github.com/samirrijal/geolayers/internal/pkg/geospatial"
	"github.com/samirrijal/geolayers/internal/pkg/metrics"
	"github.com/samirrijal/geolayers/internal/pkg/telemetry"
)

// ZoneConfig tunes ZoneService.
type ZoneConfig struct {
	DefaultGridSize int
	MaxGridSize     int
	// Concurrency bounds the per-category fan-out of RecommendAll.
	Concurrency int
}

// ZoneService finds the densest area of a layer and announces it.
type ZoneService struct {
	layers    *LayerService
	publisher ports.EventPublisher
	cache     ports.CacheService

	defaultGrid int
	maxGrid     int
	workers     int
	now         func() time.Time
}

// NewZoneService creates a new ZoneService. publisher and cache may be nil.
func NewZoneService(layers *LayerService, publisher ports.EventPublisher, cache ports.CacheService, cfg ZoneConfig) *ZoneService {
	if cfg.DefaultGridSize < 1 {
		cfg.DefaultGridSize = geospatial.DefaultGridSize
	}
	if cfg.MaxGridSize < cfg.DefaultGridSize {
		cfg.MaxGridSize = 200
	}
	if cfg.MaxGridSize > geospatial.MaxGridSize {
		cfg.MaxGridSize = geospatial.MaxGridSize
	}
	if cfg.DefaultGridSize > cfg.MaxGridSize {
		cfg.DefaultGridSize = cfg.MaxGridSize
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &ZoneService{
		layers:      layers,
		publisher:   publisher,
		cache:       cache,
		defaultGrid: cfg.DefaultGridSize,
		maxGrid:     cfg.MaxGridSize,
		workers:     cfg.Concurrency,
		now:         time.Now,
	}
}

// GridSize clamps a requested grid size to [1, max]; values < 1 select the default.
func (s *ZoneService) GridSize(n int) int {
	if n < 1 {
		return s.defaultGrid
	}
	if n > s.maxGrid {
		return s.maxGrid
	}
	return n
}

// Recommend fetches a layer category and returns its densest grid cell.
func (s *ZoneService) Recommend(ctx context.Context, q domain.LayerQuery, gridSize int) (*domain.ZoneRecommendation, error) {
	q, err := s.layers.NormalizeQuery(q)
	if err != nil {
		return nil, err
	}
	gridSize = s.GridSize(gridSize)

	ctx, span := otel.Tracer(telemetry.TracerInstrumentID).Start(ctx, telemetry.SpanRecommendZone)
	defer span.End()

	fc, err := s.layers.Features(ctx, q)
	if err != nil {
		return nil, err
	}

	bbox := geospatial.ParseBBox(q.BBox)
	grid := geospatial.BuildGrid(fc.Features, bbox, gridSize)
	res := grid.Result()
	cell := grid.CellBBox(res.Col, res.Row)
	midLat := (cell.MinLat + cell.MaxLat) / 2
	midLon := (cell.MinLon + cell.MaxLon) / 2

	span.SetAttributes(
		attribute.String("layer", string(q.Layer)),
		attribute.String("category", q.Category),
		attribute.Int("grid_size", gridSize),
		attribute.Int("count", res.Count),
	)
	metrics.DensestCellCount.WithLabelValues(string(q.Layer)).Observe(float64(res.Count))

	rec := &domain.ZoneRecommendation{
		ID:         uuid.NewString(),
		Layer:      q.Layer,
		Category:   q.Category,
		BBox:       q.BBox,
		GridSize:   gridSize,
		Count:      res.Count,
		Features:   grid.Binned + grid.Dropped,
		WidthM:     geospatial.Haversine(midLat, cell.MinLon, midLat, cell.MaxLon),
		HeightM:    geospatial.Haversine(cell.MinLat, midLon, cell.MaxLat, midLon),
		Polygon:    res.Polygon,
		ComputedAt: s.now().UTC(),
	}

	if s.publisher != nil && rec.Count > 0 {
		if err := s.publisher.PublishZoneRecommendation(ctx, rec); err != nil {
			slog.WarnContext(ctx, "publish zone recommendation failed",
				"layer", rec.Layer, "category", rec.Category, "error", err)
		} else {
			metrics.ZoneEventsPublished.WithLabelValues(string(rec.Layer)).Inc()
		}
	}

	return rec, nil
}

// RecommendAll runs Recommend for every category concurrently. With no
// categories given, all upstream categories of the layer are used. Results
// keep the order of categories.
func (s *ZoneService) RecommendAll(ctx context.Context, layer domain.Layer, categories []string, bbox string, gridSize int) ([]*domain.ZoneRecommendation, error) {
	if len(categories) == 0 {
		if layer.HasCategories() {
			cats, err := s.layers.Categories(ctx, layer)
			if err != nil {
				return nil, err
			}
			categories = cats
		} else {
			categories = []string{""}
		}
	}

	ctx, span := otel.Tracer(telemetry.TracerInstrumentID).Start(ctx, telemetry.SpanRecommendAll)
	defer span.End()
	span.SetAttributes(attribute.Int("categories", len(categories)))

	out := make([]*domain.ZoneRecommendation, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, cat := range categories {
		g.Go(func() error {
			rec, err := s.Recommend(gctx, domain.LayerQuery{Layer: layer, Category: cat, BBox: bbox}, gridSize)
			if err != nil {
				return fmt.Errorf("category %q: %w", cat, err)
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Densest bins caller-supplied geographic features. Unlike the core
// estimator it rejects malformed boxes, since NaN cannot be encoded as JSON.
func (s *ZoneService) Densest(ctx context.Context, features []*geojson.Feature, bbox string, gridSize int) (geospatial.DensityResult, error) {
	_, span := otel.Tracer(telemetry.TracerInstrumentID).Start(ctx, telemetry.SpanDensestCell)
	defer span.End()

	if bbox == "" {
		bbox = s.layers.DefaultBBox()
	}
	b, err := geospatial.ParseBBoxStrict(bbox)
	if err != nil || !b.Valid() {
		return geospatial.DensityResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidBBox, bbox)
	}
	res := geospatial.FindDensestCellInBBox(features, b, s.GridSize(gridSize))
	span.SetAttributes(attribute.Int("features", len(features)), attribute.Int("count", res.Count))
	return res, nil
}

const latestTTLSeconds = 24 * 60 * 60

func latestKey(layer domain.Layer, category string) string {
	return "zones:latest:" + string(layer) + ":" + category
}

// StoreLatest remembers rec as the most recent recommendation for its layer
// and category. Older recommendations never replace newer ones: a
// ports.VersionedCache makes the check atomic; with a plain cache it is a
// read followed by a write and concurrent deliveries may race.
func (s *ZoneService) StoreLatest(ctx context.Context, rec *domain.ZoneRecommendation) error {
	if s.cache == nil || rec == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal recommendation: %w", err)
	}
	key := latestKey(rec.Layer, rec.Category)

	if vc, ok := s.cache.(ports.VersionedCache); ok {
		if _, err := vc.SetIfNewer(ctx, key, data, rec.ComputedAt.UnixNano(), latestTTLSeconds); err != nil {
			return fmt.Errorf("store latest recommendation: %w", err)
		}
		return nil
	}

	if cur, err := s.Latest(ctx, rec.Layer, rec.Category); err == nil && cur.ComputedAt.After(rec.ComputedAt) {
		return nil
	}
	if err := s.cache.Set(ctx, key, data, latestTTLSeconds); err != nil {
		return fmt.Errorf("store latest recommendation: %w", err)
	}
	return nil
}

// Latest returns the most recent stored recommendation, or domain.ErrNotFound.
func (s *ZoneService) Latest(ctx context.Context, layer domain.Layer, category string) (*domain.ZoneRecommendation, error) {
	if s.cache == nil {
		return nil, domain.ErrNotFound
	}
	data, err := s.cache.Get(ctx, latestKey(layer, category))
	if err != nil {
		return nil, domain.ErrNotFound
	}
	var rec domain.ZoneRecommendation
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode latest recommendation: %w", err)
	}
	return &rec, nil
}
