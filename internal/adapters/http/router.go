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

	"github.com/samirrijal/localshop/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New())

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware(deps.Logger))
	app.Use(AuthMiddleware(deps.JWTSecret))
	app.Use(AccessLogMiddleware())

	// Coarse per-IP flood guard. Geocoding has its own per-caller limiter.
	if deps.RequestsPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        deps.RequestsPerMinute,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/v1/health" || c.Path() == "/v1/ready"
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return errRateLimited(c, 60)
			},
		}))
	}

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(CachingMiddleware())

	version := deps.Version
	if version == "" {
		version = "dev"
	}
	app.Get("/v1/health", HealthHandler(version))
	app.Get("/v1/ready", ReadyHandler(deps))

	budget := deps.RequestTimeout
	if budget <= 0 {
		budget = DefaultRequestTimeout
	}
	bounded := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, budget)
	}

	v1 := app.Group("/v1")
	v1.Get("/geocode", bounded(GeocodeHandler(deps)))
	v1.Get("/geocode/reverse", bounded(ReverseGeocodeHandler(deps)))
	v1.Get("/places/autocomplete", bounded(AutocompleteHandler(deps)))
	v1.Get("/shops/search", bounded(SearchShopsHandler(deps)))
	v1.Get("/shops/:id", bounded(GetShopHandler(deps)))
	v1.Post("/shops", bounded(CreateShopHandler(deps)))
	v1.Put("/shops/:id", bounded(UpdateShopHandler(deps)))
	v1.Get("/slugs", SlugHandler())

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, deps.SpecPath)

	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
	}
}
