//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"

	handler "github.com/samirrijal/geolayers/internal/adapters/http"
	"github.com/samirrijal/geolayers/internal/adapters/postgres"
	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/core/usecases"
	"github.com/samirrijal/geolayers/internal/pkg/config"
)

// setupTestDB connects to the database configured via GEOLAYERS_DATABASE_*.
func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	t.Setenv("GEOLAYERS_SOURCE_KIND", "postgres")
	cfg, err := config.Load("geolayers-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// setupTestDeps wires the services on top of the feature store, no cache.
func setupTestDeps(db *postgres.DB) *handler.Dependencies {
	repo := postgres.NewFeatureRepo(db)
	layers := usecases.NewLayerService(repo, nil, usecases.LayerConfig{})
	return &handler.Dependencies{
		Layers: layers,
		Zones:  usecases.NewZoneService(layers, nil, nil, usecases.ZoneConfig{}),
		DB:     db,
	}
}

// seedCategory inserts projected squares under a unique category and
// removes them when the test ends.
func seedCategory(t *testing.T, db *postgres.DB, layer domain.Layer, features ...*geojson.Feature) string {
	t.Helper()
	category := "it_" + time.Now().Format("20060102150405.000000")
	repo := postgres.NewFeatureRepo(db)
	n, err := repo.InsertBatch(context.Background(), layer, category, features)
	if err != nil {
		t.Fatalf("seed features: %v", err)
	}
	if n != len(features) {
		t.Fatalf("inserted %d of %d features", n, len(features))
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM layer_features WHERE category = $1`, category)
	})
	return category
}

func TestReady_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	app := setupApp(setupTestDeps(db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestLayerFeatures_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	category := seedCategory(t, db, domain.LayerBuildings,
		projectedSquare(9.70, 4.10, 0.001),
		projectedSquare(9.75, 4.15, 0.001),
	)
	app := setupApp(setupTestDeps(db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/layers/buildings/features?category="+category, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	fc, err := geojson.UnmarshalFeatureCollection(readBody(t, resp.Body))
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}
	b := fc.Features[0].Geometry.Bound()
	if b.Min[0] < 9.6 || b.Max[0] > 9.9 || b.Min[1] < 4.0 || b.Max[1] > 4.2 {
		t.Errorf("feature not converted to lon/lat: %v", b)
	}
}

func TestLayerDensest_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	category := seedCategory(t, db, domain.LayerRoads,
		projectedSquare(9.61, 4.01, 0.001),
		projectedSquare(9.62, 4.02, 0.001),
		projectedSquare(9.85, 4.15, 0.001),
	)
	app := setupApp(setupTestDeps(db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/layers/roads/densest?grid_size=2&category="+category, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rec domain.ZoneRecommendation
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.Count != 2 || rec.Features != 3 {
		t.Errorf("count = %d features = %d, want 2 and 3", rec.Count, rec.Features)
	}
}
