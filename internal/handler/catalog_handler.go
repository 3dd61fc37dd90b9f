package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/situated-learning/internal/feedback"
	"github.com/noah-isme/situated-learning/internal/service"
	"github.com/noah-isme/situated-learning/internal/utils"
	"github.com/noah-isme/situated-learning/pkg/backend"
)

// CourseLister provides the course catalogue.
type CourseLister interface {
	Courses(ctx context.Context) ([]string, error)
}

// FeedbackLister reads submitted feedback back from the feedback service.
type FeedbackLister interface {
	Feedback(ctx context.Context, feedbackType string) ([]backend.FeedbackRecord, error)
}

// CatalogHandler serves the read-only routes that do not belong to a session.
type CatalogHandler struct {
	courses  CourseLister
	feedback FeedbackLister
	status   service.BackendStatusService
	logger   zerolog.Logger
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(courses CourseLister, feedback FeedbackLister, status service.BackendStatusService, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		courses:  courses,
		feedback: feedback,
		status:   status,
		logger:   logger.With().Str("component", "catalog_handler").Logger(),
	}
}

// Register attaches the catalogue endpoints to the router group.
func (h *CatalogHandler) Register(router fiber.Router) {
	router.Get("/courses", h.listCourses)
	router.Get("/feedback", h.listFeedback)
	router.Get("/backend/status", h.backendStatus)
}

func (h *CatalogHandler) listCourses(c *fiber.Ctx) error {
	courses, err := h.courses.Courses(c.UserContext())
	if err != nil {
		return h.upstreamError(c, "failed to fetch courses", err)
	}
	return utils.OK(c, courses, "courses retrieved", fiber.Map{"count": len(courses)})
}

func (h *CatalogHandler) listFeedback(c *fiber.Ctx) error {
	kind := trimmedQuery(c, "feedback_type")
	if kind != "" && !feedback.Kind(kind).Valid() {
		return utils.Fail(c, fiber.StatusBadRequest, "feedback_type must be assignment, rubric or evaluation", fiber.Map{"feedback_type": kind})
	}

	records, err := h.feedback.Feedback(c.UserContext(), kind)
	if err != nil {
		return h.upstreamError(c, "failed to fetch feedback", err)
	}
	return utils.OK(c, records, "feedback retrieved", fiber.Map{"count": len(records)})
}

func (h *CatalogHandler) backendStatus(c *fiber.Ctx) error {
	status := h.status.Check(c.UserContext())
	return utils.OK(c, status, "backend status", nil)
}

func (h *CatalogHandler) upstreamError(c *fiber.Ctx, message string, err error) error {
	requestLogger(h.logger, c).Warn().Err(err).Msg(message)
	if backend.IsTransportError(err) {
		return utils.Fail(c, fiber.StatusBadGateway, message+": "+err.Error(), nil)
	}
	return utils.Fail(c, fiber.StatusInternalServerError, message, nil)
}
