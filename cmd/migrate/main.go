package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/geolayers/internal/pkg/config"
	"github.com/samirrijal/geolayers/internal/pkg/logging"
)

var (
	upMigrations = []string{
		"migrations/001_init_extensions.sql",
		"migrations/002_layer_features.sql",
	}
	downMigrations = []string{
		"migrations/002_layer_features.down.sql",
	}
)

func main() {
	if len(os.Args) < 2 {
		slog.Error("usage: migrate <up|down>")
		os.Exit(2)
	}

	cfg, err := config.Load("geolayers-migrate")
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Error("db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		err = run(ctx, pool, upMigrations)
	case "down":
		err = run(ctx, pool, downMigrations)
	default:
		slog.Error("unknown command", "command", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("all migrations applied", "direction", os.Args[1])
}

func run(ctx context.Context, pool *pgxpool.Pool, files []string) error {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return err
		}
		slog.Info("applied", "file", f)
	}
	return nil
}
