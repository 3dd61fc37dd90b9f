package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderCorrelationID carries the request's correlation id in both directions.
const HeaderCorrelationID = "X-Correlation-ID"

const correlationLocal = "correlation_id"

type correlationIDKey struct{}

// CorrelationID makes sure every request carries a correlation id. The id
// also rides on the user context so detached workflow calls keep it.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := strings.TrimSpace(c.Get(HeaderCorrelationID))
		if incoming == "" {
			incoming = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if incoming == "" {
			incoming = uuid.NewString()
		}

		c.Locals(correlationLocal, incoming)
		c.Set(HeaderCorrelationID, incoming)
		c.SetUserContext(context.WithValue(c.UserContext(), correlationIDKey{}, incoming))

		return c.Next()
	}
}

// CorrelationIDFromContext extracts the correlation id from ctx, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetCorrelationID returns the correlation id bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}
