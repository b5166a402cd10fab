package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geolayers/internal/adapters/mapapi"
	"github.com/samirrijal/geolayers/internal/adapters/postgres"
	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/core/ports"
	"github.com/samirrijal/geolayers/internal/pkg/config"
	"github.com/samirrijal/geolayers/internal/pkg/geospatial"
	"github.com/samirrijal/geolayers/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

// Manifest lists the layer slices to load into the feature store.
type Manifest struct {
	Source  string       `json:"source"`
	Entries []LayerEntry `json:"layers"`
}

// LayerEntry is one layer/category slice. File points at a saved upstream
// envelope; without it the slice is paged from the upstream API.
type LayerEntry struct {
	Layer    string `json:"layer"`
	Category string `json:"category"`
	File     string `json:"file,omitempty"`
	BBox     string `json:"bbox,omitempty"`
}

func (e LayerEntry) name() string {
	if e.Category == "" {
		return e.Layer
	}
	return e.Layer + "/" + e.Category
}

const (
	pageSize = 1000
	maxPages = 500
)

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("geolayers-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("geolayers-ingestor", cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewFeatureRepo(db)

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	slog.Info("geolayers ingestor", "entries", len(manifest.Entries), "source", manifest.Source)

	// Filter layers (optional CLI arg: layer list)
	layerFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			layerFilter[strings.TrimSpace(s)] = true
		}
	}

	upstream := mapapi.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent slices

	for _, entry := range manifest.Entries {
		if len(layerFilter) > 0 && !layerFilter[entry.Layer] {
			continue
		}

		wg.Add(1)
		go func(e LayerEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			n, err := ingestEntry(ctx, repo, upstream, e)
			if err != nil {
				slog.Error("ingest failed", "slice", e.name(), "error", err)
				return
			}
			slog.Info("slice ingested", "slice", e.name(), "features", n)
		}(entry)
	}

	wg.Wait()
	slog.Info("ingestion complete")
}

// ---------------------------------------------------------------------------
// Per-slice ingestion
// ---------------------------------------------------------------------------

func ingestEntry(ctx context.Context, store ports.FeatureStore, upstream ports.FeatureSource, e LayerEntry) (int, error) {
	layer, err := domain.ParseLayer(e.Layer)
	if err != nil {
		return 0, err
	}

	if e.File != "" {
		features, err := readEnvelopeFile(e.File)
		if err != nil {
			return 0, err
		}
		return store.InsertBatch(ctx, layer, e.Category, features)
	}

	total := 0
	for page := 1; page <= maxPages; page++ {
		env, err := upstream.Features(ctx, domain.LayerQuery{
			Layer:    layer,
			Category: e.Category,
			BBox:     e.BBox,
			Limit:    pageSize,
			Page:     page,
		})
		if err != nil {
			return total, fmt.Errorf("page %d: %w", page, err)
		}
		if env.Data == nil || len(env.Data.Features) == 0 {
			break
		}
		n, err := store.InsertBatch(ctx, layer, e.Category, env.Data.Features)
		if err != nil {
			return total, fmt.Errorf("insert page %d: %w", page, err)
		}
		total += n
		// junctions are not paged upstream
		if layer == domain.LayerJunctions || len(env.Data.Features) < pageSize {
			break
		}
	}
	return total, nil
}

// readEnvelopeFile loads a saved upstream envelope. Undecodable features are
// skipped and logged.
func readEnvelopeFile(path string) ([]*geojson.Feature, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	env, err := geospatial.DecodeEnvelope(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if env.Skipped > 0 {
		slog.Warn("skipped undecodable features", "file", path, "skipped", env.Skipped)
	}
	if env.Data == nil {
		return nil, nil
	}
	return env.Data.Features, nil
}
