package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/situated-learning/internal/middleware"
)

// detach returns the request's user context without its cancellation, so a
// client hanging up never aborts a workflow call halfway.
func detach(c *fiber.Ctx) context.Context {
	return context.WithoutCancel(c.UserContext())
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func trimmedQuery(c *fiber.Ctx, key string) string {
	return strings.TrimSpace(c.Query(key))
}
