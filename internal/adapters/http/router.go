package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/geolayers/internal/pkg/metrics"
)

// requestTimeout bounds every REST call; densest and recommendation
// endpoints fetch whole categories upstream.
const requestTimeout = 30 * time.Second

// junctionsSunset is when the flat /v1/junctions alias goes away.
var junctionsSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip); feature collections are large
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// The map dashboard is served from another origin
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/junctions", SunsetDate: junctionsSunset, Alternative: "/v1/layers/junctions/features"},
	}))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1
	v1 := app.Group("/v1")
	v1.Get("/layers/:layer/categories", timeout.NewWithContext(LayerCategoriesHandler(deps), requestTimeout))
	v1.Get("/layers/:layer/features", timeout.NewWithContext(LayerFeaturesHandler(deps), requestTimeout))
	v1.Get("/layers/:layer/densest", timeout.NewWithContext(LayerDensestHandler(deps), requestTimeout))
	v1.Get("/layers/:layer/recommendations", timeout.NewWithContext(LayerRecommendationsHandler(deps), requestTimeout))
	v1.Get("/layers/:layer/zones/latest", timeout.NewWithContext(LatestZoneHandler(deps), requestTimeout))
	v1.Get("/junctions", timeout.NewWithContext(JunctionsHandler(deps), requestTimeout))
	v1.Get("/weather", timeout.NewWithContext(WeatherHandler(deps), requestTimeout))
	v1.Get("/weather/:zone_id", timeout.NewWithContext(WeatherZoneHandler(deps), requestTimeout))

	// Pure transforms on posted data
	v1.Post("/convert", ConvertHandler(deps))
	v1.Post("/densest", DensestHandler(deps))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
