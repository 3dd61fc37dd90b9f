package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Message string      `json:"message"`
}

// OK sends a 200 envelope with optional metadata.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	return Respond(c, fiber.StatusOK, data, message, meta)
}

// Respond sends a success envelope with the given status.
func Respond(c *fiber.Ctx, status int, data interface{}, message string, meta interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
		Message: message,
	})
}

// Fail sends an error envelope; details explain what was rejected.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Details: details,
		Message: message,
	})
}

// FailWithData sends an error envelope that still carries a payload, used when
// the caller needs the state the failure left behind.
func FailWithData(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Data:    data,
		Message: message,
	})
}
