package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geolayers/internal/adapters/http"
	"github.com/samirrijal/geolayers/internal/adapters/mapapi"
	natsadapter "github.com/samirrijal/geolayers/internal/adapters/nats"
	"github.com/samirrijal/geolayers/internal/adapters/postgres"
	"github.com/samirrijal/geolayers/internal/adapters/valkey"
	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/core/ports"
	"github.com/samirrijal/geolayers/internal/core/usecases"
	"github.com/samirrijal/geolayers/internal/pkg/config"
	"github.com/samirrijal/geolayers/internal/pkg/logging"
	"github.com/samirrijal/geolayers/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("geolayers-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup("geolayers-api", cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	// Upstream map API (also serves weather for both source kinds)
	upstream := mapapi.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)

	// Feature source
	var (
		source ports.FeatureSource = upstream
		db     *postgres.DB
	)
	if cfg.Source.Kind == config.SourcePostgres {
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go db.ReportPoolStats(ctx, 15*time.Second)
		source = postgres.NewFeatureRepo(db)
	}
	slog.Info("feature source selected", "kind", cfg.Source.Kind)

	// Cache
	var (
		cache     *valkey.Cache
		cachePort ports.CacheService
	)
	if cfg.Valkey.Addr != "" {
		cache, err = valkey.New(cfg.Valkey.Addr, "geolayers")
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer cache.Close()
			cachePort = cache
		}
	}

	// NATS
	var publisher ports.EventPublisher
	if cfg.NATS.URL != "" {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}
	}

	// Use cases
	layerSvc := usecases.NewLayerService(source, cachePort, usecases.LayerConfig{
		DefaultBBox: cfg.Density.BBox,
		CacheTTL:    cfg.Valkey.TTL,
	})
	zoneSvc := usecases.NewZoneService(layerSvc, publisher, cachePort, usecases.ZoneConfig{
		DefaultGridSize: cfg.Density.DefaultGridSize,
		MaxGridSize:     cfg.Density.MaxGridSize,
	})
	weatherSvc := usecases.NewWeatherService(upstream)

	// Raw NATS connection for WebSocket relay and the latest-zone store
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
			natsConn = nil
		} else {
			defer natsConn.Close()
		}

		if publisher != nil && cachePort != nil {
			sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
			if err != nil {
				slog.Warn("nats subscriber unavailable", "error", err)
			} else {
				defer sub.Close()
				err = sub.SubscribeZoneRecommendations(ctx, "geolayers-api-latest",
					func(ctx context.Context, rec *domain.ZoneRecommendation) error {
						return zoneSvc.StoreLatest(ctx, rec)
					})
				if err != nil {
					slog.Warn("latest zone subscription failed", "error", err)
				}
			}
		}
	}

	deps := &http.Dependencies{
		Layers:  layerSvc,
		Zones:   zoneSvc,
		Weather: weatherSvc,
		NATS:    natsConn,
		DB:      db,
		Cache:   cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    8 * 1024 * 1024, // envelopes posted to /v1/convert can be large
		AppName:      "Geolayers API",
	})

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
