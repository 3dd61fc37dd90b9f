package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/situated-learning/internal/config"
	"github.com/noah-isme/situated-learning/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Service        string    `json:"service"`
	Environment    string    `json:"environment"`
	OpenSessions   int       `json:"open_sessions"`
	ContentService string    `json:"content_service"`
}

// SessionCounter reports how many sessions are open.
type SessionCounter interface {
	Count() int
}

// HealthCheck returns a handler that reports the API's own health. It does
// not check the content service; /backend/status does.
func HealthCheck(cfg config.Config, sessions SessionCounter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:         "ok",
			Timestamp:      time.Now().UTC(),
			Service:        cfg.AppName,
			Environment:    cfg.AppEnv,
			ContentService: cfg.ContentAPIURL,
		}
		if sessions != nil {
			payload.OpenSessions = sessions.Count()
		}

		return utils.OK(c, payload, "service healthy", nil)
	}
}
