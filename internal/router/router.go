package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/situated-learning/internal/config"
	"github.com/noah-isme/situated-learning/internal/handler"
	"github.com/noah-isme/situated-learning/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler *handler.SessionHandler
	CatalogHandler *handler.CatalogHandler
	Sessions       handler.SessionCounter
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Sessions))

	if deps.CatalogHandler != nil {
		deps.CatalogHandler.Register(api)
	}

	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(api.Group("/sessions"))
	}

	app.Get("/metrics", observability.MetricsHandler())
}
