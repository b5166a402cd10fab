package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geolayers/internal/adapters/postgres"
	"github.com/samirrijal/geolayers/internal/adapters/valkey"
	"github.com/samirrijal/geolayers/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Layers  *usecases.LayerService
	Zones   *usecases.ZoneService
	Weather *usecases.WeatherService
	NATS    *nats.Conn
	DB      *postgres.DB
	Cache   *valkey.Cache
}
