package devserver

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/situated-learning/internal/middleware"
)

// NewApp returns a fiber app serving the dev backend behind the shared
// middleware stack. A nil logger disables request logging.
func NewApp(appName string, server *Server, logger *zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      appName,
		ServerHeader: appName,
	})
	middleware.Register(app, middleware.Config{Logger: logger})
	server.Register(app)
	return app
}
