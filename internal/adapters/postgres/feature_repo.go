package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/pkg/geospatial"
)

const defaultPageSize = 1000

// FeatureRepo implements ports.FeatureStore on a PostGIS table of projected
// (EPSG:3857) geometries. Query boxes are given in longitude/latitude.
type FeatureRepo struct {
	db *DB
}

// NewFeatureRepo creates a new FeatureRepo.
func NewFeatureRepo(db *DB) *FeatureRepo {
	return &FeatureRepo{db: db}
}

// Categories lists the distinct non-empty categories stored for a layer.
func (r *FeatureRepo) Categories(ctx context.Context, layer domain.Layer) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT category FROM layer_features
		WHERE layer = $1 AND category <> ''
		ORDER BY category
	`, string(layer))
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	cats, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return cats, nil
}

// Features returns one page of features intersecting the query box.
func (r *FeatureRepo) Features(ctx context.Context, q domain.LayerQuery) (*geospatial.Envelope, error) {
	bbox, err := geospatial.ParseBBoxStrict(q.BBox)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBBox, err)
	}
	limit, offset := pageWindow(q.Limit, q.Page)

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, ST_AsGeoJSON(geom), COALESCE(properties, '{}')
		FROM layer_features
		WHERE layer = $1
		  AND ($2 = '' OR category = $2)
		  AND geom && ST_Transform(ST_MakeEnvelope($3, $4, $5, $6, 4326), 3857)
		ORDER BY id
		LIMIT $7 OFFSET $8
	`, string(q.Layer), q.Category, bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	return collect(rows, limit, q.Page)
}

// Junctions returns junction features of a type code.
func (r *FeatureRepo) Junctions(ctx context.Context, q domain.JunctionQuery) (*geospatial.Envelope, error) {
	limit, _ := pageWindow(q.Limit, 0)
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, ST_AsGeoJSON(geom), COALESCE(properties, '{}')
		FROM layer_features
		WHERE layer = 'junctions' AND ($1 = '' OR category = $1)
		ORDER BY id
		LIMIT $2
	`, q.TypeCode, limit)
	if err != nil {
		return nil, fmt.Errorf("query junctions: %w", err)
	}
	return collect(rows, limit, 0)
}

// InsertBatch stores projected features using pgx.Batch. Features without a
// geometry are skipped; the number inserted is returned.
func (r *FeatureRepo) InsertBatch(ctx context.Context, layer domain.Layer, category string, features []*geojson.Feature) (int, error) {
	batch := &pgx.Batch{}
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		geom, err := json.Marshal(geojson.NewGeometry(f.Geometry))
		if err != nil {
			return 0, fmt.Errorf("marshal geometry: %w", err)
		}
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return 0, fmt.Errorf("marshal properties: %w", err)
		}
		batch.Queue(`
			INSERT INTO layer_features (layer, category, properties, geom)
			VALUES ($1, $2, $3, ST_SetSRID(ST_GeomFromGeoJSON($4), 3857))
		`, string(layer), category, props, string(geom))
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("batch exec: %w", err)
		}
	}
	return batch.Len(), nil
}

func pageWindow(limit, page int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}
	return limit, offset
}

func collect(rows pgx.Rows, limit, page int) (*geospatial.Envelope, error) {
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var (
			id    int64
			geom  []byte
			props []byte
		)
		if err := rows.Scan(&id, &geom, &props); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		g, err := geojson.UnmarshalGeometry(geom)
		if err != nil {
			return nil, fmt.Errorf("decode geometry %d: %w", id, err)
		}
		f := geojson.NewFeature(g.Geometry())
		f.ID = id
		if err := json.Unmarshal(props, &f.Properties); err != nil {
			return nil, fmt.Errorf("decode properties %d: %w", id, err)
		}
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}

	return &geospatial.Envelope{Message: "ok", Data: fc, Limit: &limit, Page: &page}, nil
}
