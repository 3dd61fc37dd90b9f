package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/situated-learning/internal/artifact"
	"github.com/noah-isme/situated-learning/internal/feedback"
	"github.com/noah-isme/situated-learning/internal/observability"
	"github.com/noah-isme/situated-learning/internal/screen"
	"github.com/noah-isme/situated-learning/internal/service"
	"github.com/noah-isme/situated-learning/internal/submission"
	"github.com/noah-isme/situated-learning/internal/utils"
	"github.com/noah-isme/situated-learning/internal/workflow"
	"github.com/noah-isme/situated-learning/pkg/backend"
)

var errInvalidBody = errors.New("invalid request body")

// SessionResponse is the body of every session endpoint.
type SessionResponse struct {
	Session workflow.Snapshot `json:"session"`
	View    screen.View       `json:"view"`
}

// SessionHandler exposes workflow sessions over HTTP. Every route maps to one
// session operation.
type SessionHandler struct {
	sessions   service.SessionService
	reader     *submission.Reader
	validator  *validator.Validate
	logger     zerolog.Logger
	stageLimit fiber.Handler
}

// NewSessionHandler constructs the handler. stageLimit guards the routes that
// call the generation services; nil disables it.
func NewSessionHandler(sessions service.SessionService, reader *submission.Reader, validate *validator.Validate, stageLimit fiber.Handler, logger zerolog.Logger) *SessionHandler {
	if stageLimit == nil {
		stageLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &SessionHandler{
		sessions:   sessions,
		reader:     reader,
		validator:  validate,
		logger:     logger.With().Str("component", "session_handler").Logger(),
		stageLimit: stageLimit,
	}
}

// Register attaches session endpoints to the router group.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Post("", h.open)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.close)

	router.Post("/:id/navigate", h.navigate)
	router.Patch("/:id/draft", h.updateDraft)
	router.Post("/:id/course", h.selectCourse)

	router.Post("/:id/assignment", h.stageLimit, h.generateAssignment)
	router.Put("/:id/assignment/text", h.editAssignment)
	router.Post("/:id/rubric", h.stageLimit, h.generateRubric)
	router.Put("/:id/rubric/text", h.editRubric)

	router.Post("/:id/submission", h.uploadSubmission)
	router.Post("/:id/submission/mock", h.mockSubmission)
	router.Put("/:id/submission/assignment", h.selectAssignment)

	router.Post("/:id/evaluation", h.stageLimit, h.evaluate)
	router.Put("/:id/evaluation/text", h.editEvaluation)

	router.Put("/:id/edit-mode", h.setEditMode)
	router.Post("/:id/feedback", h.submitFeedback)
	router.Delete("/:id/feedback", h.dismissFeedback)
	router.Delete("/:id/error", h.dismissError)
}

type navigateRequest struct {
	Screen string `json:"screen" validate:"required,oneof=dashboard create evaluate"`
}

type courseRequest struct {
	Title string `json:"title" validate:"max=300"`
}

type textRequest struct {
	Text string `json:"text" validate:"max=200000"`
}

type selectAssignmentRequest struct {
	AssignmentID string `json:"assignment_id" validate:"max=200"`
}

type editModeRequest struct {
	Artifact string `json:"artifact" validate:"required,oneof=assignment rubric evaluation"`
	Enabled  *bool  `json:"enabled" validate:"required"`
}

type feedbackRequest struct {
	Rating     int    `json:"rating"`
	Suggestion string `json:"suggestion"`
}

func (h *SessionHandler) open(c *fiber.Ctx) error {
	session, err := h.sessions.Open(detach(c))
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.Respond(c, fiber.StatusCreated, sessionResponse(session), "session opened", nil)
}

func (h *SessionHandler) get(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.sessionError(c, err)
	}
	return utils.OK(c, sessionResponse(session), "session retrieved", nil)
}

func (h *SessionHandler) close(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.sessions.Close(id); err != nil {
		return h.sessionError(c, err)
	}
	return utils.OK(c, fiber.Map{"id": id}, "session closed", nil)
}

func (h *SessionHandler) navigate(c *fiber.Ctx) error {
	var payload navigateRequest
	if err := h.bind(c, &payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	return h.run(c, "navigate", func(_ context.Context, s *workflow.Session) error {
		target, _ := workflow.ParseScreen(payload.Screen)
		return s.Navigate(target)
	})
}

func (h *SessionHandler) updateDraft(c *fiber.Ctx) error {
	var payload map[string]string
	if err := c.BodyParser(&payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body", nil)
	}
	if len(payload) == 0 {
		return utils.Fail(c, fiber.StatusBadRequest, "no draft fields supplied", nil)
	}

	changes := make(map[workflow.DraftField]string, len(payload))
	for field, value := range payload {
		changes[workflow.DraftField(field)] = value
	}

	return h.run(c, "update_draft", func(_ context.Context, s *workflow.Session) error {
		return s.UpdateDraft(changes)
	})
}

func (h *SessionHandler) selectCourse(c *fiber.Ctx) error {
	var payload courseRequest
	if err := h.bind(c, &payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	return h.run(c, "select_course", func(ctx context.Context, s *workflow.Session) error {
		return s.SelectCourse(ctx, payload.Title)
	})
}

func (h *SessionHandler) generateAssignment(c *fiber.Ctx) error {
	return h.run(c, "generate_assignment", func(ctx context.Context, s *workflow.Session) error {
		return s.GenerateAssignment(ctx)
	})
}

func (h *SessionHandler) editAssignment(c *fiber.Ctx) error {
	var payload textRequest
	if err := h.bind(c, &payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	return h.run(c, "edit_assignment", func(_ context.Context, s *workflow.Session) error {
		return s.EditAssignmentText(payload.Text)
	})
}

func (h *SessionHandler) generateRubric(c *fiber.Ctx) error {
	return h.run(c, "generate_rubric", func(ctx context.Context, s *workflow.Session) error {
		return s.GenerateRubric(ctx)
	})
}

func (h *SessionHandler) editRubric(c *fiber.Ctx) error {
	var payload textRequest
	if err := h.bind(c, &payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	return h.run(c, "edit_rubric", func(_ context.Context, s *workflow.Session) error {
		return s.EditRubricText(payload.Text)
	})
}

func (h *SessionHandler) uploadSubmission(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "file is required", nil)
	}

	return h.run(c, "attach_submission", func(ctx context.Context, s *workflow.Session) error {
		src, err := file.Open()
		if err != nil {
			return err
		}
		defer src.Close()

		sub, err := h.reader.Read(ctx, file.Filename, src)
		if err != nil {
			return err
		}
		return s.AttachSubmission(sub)
	})
}

func (h *SessionHandler) mockSubmission(c *fiber.Ctx) error {
	return h.run(c, "attach_submission", func(_ context.Context, s *workflow.Session) error {
		return s.UseMockSubmission()
	})
}

func (h *SessionHandler) selectAssignment(c *fiber.Ctx) error {
	var payload selectAssignmentRequest
	if err := h.bind(c, &payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	return h.run(c, "select_assignment", func(_ context.Context, s *workflow.Session) error {
		return s.SelectAssignment(payload.AssignmentID)
	})
}

func (h *SessionHandler) evaluate(c *fiber.Ctx) error {
	return h.run(c, "evaluate_submission", func(ctx context.Context, s *workflow.Session) error {
		return s.Evaluate(ctx)
	})
}

func (h *SessionHandler) editEvaluation(c *fiber.Ctx) error {
	var payload textRequest
	if err := h.bind(c, &payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	return h.run(c, "edit_evaluation", func(_ context.Context, s *workflow.Session) error {
		return s.EditEvaluationText(payload.Text)
	})
}

func (h *SessionHandler) setEditMode(c *fiber.Ctx) error {
	var payload editModeRequest
	if err := h.bind(c, &payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	return h.run(c, "edit_mode", func(_ context.Context, s *workflow.Session) error {
		return s.SetEditMode(feedback.Kind(payload.Artifact), *payload.Enabled)
	})
}

func (h *SessionHandler) submitFeedback(c *fiber.Ctx) error {
	var payload feedbackRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body", nil)
	}

	return h.run(c, "submit_feedback", func(ctx context.Context, s *workflow.Session) error {
		return s.SubmitFeedback(ctx, payload.Rating, payload.Suggestion)
	})
}

func (h *SessionHandler) dismissFeedback(c *fiber.Ctx) error {
	return h.run(c, "dismiss_feedback", func(_ context.Context, s *workflow.Session) error {
		s.DismissFeedback()
		return nil
	})
}

func (h *SessionHandler) dismissError(c *fiber.Ctx) error {
	return h.run(c, "dismiss_error", func(_ context.Context, s *workflow.Session) error {
		s.DismissError()
		return nil
	})
}

func (h *SessionHandler) session(c *fiber.Ctx) (*workflow.Session, error) {
	return h.sessions.Get(c.Params("id"))
}

func (h *SessionHandler) bind(c *fiber.Ctx, payload interface{}) error {
	if err := c.BodyParser(payload); err != nil {
		return errInvalidBody
	}
	return h.validator.Struct(payload)
}

// run resolves the session, executes op on a context detached from the
// request, and answers with the resulting snapshot.
func (h *SessionHandler) run(c *fiber.Ctx, action string, op func(context.Context, *workflow.Session) error) error {
	session, err := h.session(c)
	if err != nil {
		return h.sessionError(c, err)
	}

	err = op(detach(c), session)
	observability.Actions().WithLabelValues(action, outcome(err)).Inc()
	if err != nil {
		requestLogger(h.logger, c).Debug().Err(err).Str("session_id", session.ID()).Str("action", action).Msg("action finished with error")
	}

	return h.respond(c, session, err)
}

func (h *SessionHandler) respond(c *fiber.Ctx, session *workflow.Session, err error) error {
	payload := sessionResponse(session)

	var (
		validationErr *workflow.ValidationError
		parseErr      *artifact.ParseError
		transportErr  *backend.TransportError
		fieldErrs     validator.ValidationErrors
	)

	switch {
	case err == nil:
		return utils.OK(c, payload, "ok", nil)
	case errors.As(err, &parseErr):
		return utils.OK(c, payload, err.Error(), nil)
	case errors.As(err, &validationErr):
		if validationErr.Busy {
			return utils.FailWithData(c, fiber.StatusConflict, err.Error(), payload)
		}
		return utils.FailWithData(c, fiber.StatusBadRequest, err.Error(), payload)
	case errors.As(err, &fieldErrs):
		return utils.FailWithData(c, fiber.StatusBadRequest, err.Error(), payload)
	case errors.As(err, &transportErr), errors.Is(err, workflow.ErrEmptyEvaluation):
		return utils.FailWithData(c, fiber.StatusBadGateway, err.Error(), payload)
	case errors.Is(err, workflow.ErrSuperseded),
		errors.Is(err, feedback.ErrSubmissionInFlight),
		errors.Is(err, feedback.ErrAlreadySubmitted),
		errors.Is(err, feedback.ErrNoPrompt):
		return utils.FailWithData(c, fiber.StatusConflict, err.Error(), payload)
	case errors.Is(err, submission.ErrTooLarge):
		return utils.FailWithData(c, fiber.StatusRequestEntityTooLarge, err.Error(), payload)
	case errors.Is(err, submission.ErrTypeNotAllowed):
		return utils.FailWithData(c, fiber.StatusUnsupportedMediaType, err.Error(), payload)
	case errors.Is(err, submission.ErrEmpty):
		return utils.FailWithData(c, fiber.StatusBadRequest, err.Error(), payload)
	default:
		return h.internalError(c, err)
	}
}

func (h *SessionHandler) sessionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrSessionNotFound) {
		return utils.Fail(c, fiber.StatusNotFound, "session not found", nil)
	}
	return h.internalError(c, err)
}

func (h *SessionHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("session request failed")
	return utils.Fail(c, fiber.StatusInternalServerError, "internal server error", nil)
}

func sessionResponse(session *workflow.Session) SessionResponse {
	snap := session.Snapshot()
	return SessionResponse{Session: snap, View: screen.Route(snap)}
}
