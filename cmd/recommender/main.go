package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"strings"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/geolayers/internal/adapters/mapapi"
	natsadapter "github.com/samirrijal/geolayers/internal/adapters/nats"
	"github.com/samirrijal/geolayers/internal/adapters/postgres"
	"github.com/samirrijal/geolayers/internal/adapters/valkey"
	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/core/ports"
	"github.com/samirrijal/geolayers/internal/core/usecases"
	"github.com/samirrijal/geolayers/internal/pkg/config"
	"github.com/samirrijal/geolayers/internal/pkg/logging"
	"github.com/samirrijal/geolayers/internal/workflows"
)

func main() {
	layers := flag.String("layers", "buildings,roads", "comma separated layers to schedule")
	schedule := flag.Bool("schedule", true, "create one schedule per layer at temporal.interval")
	flag.Parse()

	cfg, err := config.Load("geolayers-recommender")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("geolayers-recommender", cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	// Feature source
	var source ports.FeatureSource = mapapi.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	if cfg.Source.Kind == config.SourcePostgres {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		source = postgres.NewFeatureRepo(db)
	}

	var cache ports.CacheService
	if cfg.Valkey.Addr != "" {
		c, err := valkey.New(cfg.Valkey.Addr, "geolayers")
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			cache = c
		}
	}

	var publisher ports.EventPublisher
	if cfg.NATS.URL != "" {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, recommendations will not be published", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}
	}

	layerSvc := usecases.NewLayerService(source, cache, usecases.LayerConfig{
		DefaultBBox: cfg.Density.BBox,
		CacheTTL:    cfg.Valkey.TTL,
	})
	zoneSvc := usecases.NewZoneService(layerSvc, publisher, cache, usecases.ZoneConfig{
		DefaultGridSize: cfg.Density.DefaultGridSize,
		MaxGridSize:     cfg.Density.MaxGridSize,
	})

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if *schedule {
		for _, name := range strings.Split(*layers, ",") {
			layer, err := domain.ParseLayer(strings.TrimSpace(name))
			if err != nil {
				log.Fatalf("schedule: %v", err)
			}
			if err := ensureSchedule(ctx, c, cfg, layer); err != nil {
				log.Fatalf("schedule %s: %v", layer, err)
			}
		}
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.ZoneRecommendationWorkflow)
	w.RegisterActivity(&workflows.ZoneActivities{
		Layers: layerSvc,
		Zones:  zoneSvc,
	})

	slog.Info("recommender worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// ensureSchedule creates the periodic recommendation schedule of a layer.
// An existing schedule is left untouched.
func ensureSchedule(ctx context.Context, c client.Client, cfg *config.Config, layer domain.Layer) error {
	id := "zone-recommendations-" + string(layer)
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: cfg.Temporal.Interval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        id,
			Workflow:  workflows.WorkflowZoneRecommendation,
			TaskQueue: cfg.Temporal.TaskQueue,
			Args: []interface{}{workflows.ZoneRecommendationInput{
				Layer:    layer,
				BBox:     cfg.Density.BBox,
				GridSize: cfg.Density.DefaultGridSize,
			}},
		},
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		slog.Info("schedule already exists", "schedule_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("schedule created", "schedule_id", id, "every", cfg.Temporal.Interval)
	return nil
}
