package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/situated-learning/internal/artifact"
	"github.com/noah-isme/situated-learning/internal/models"
	"github.com/noah-isme/situated-learning/internal/repository"
	"github.com/noah-isme/situated-learning/pkg/ai"
)

// Courses is the fixed catalogue served by GET /courses/all.
var Courses = []string{
	"Intro to AI (CS101)",
	"Data Structures (CS201)",
	"Databases (CS205)",
	"Software Engineering (SE301)",
}

// Dependencies wires the dev server.
type Dependencies struct {
	DB        *gorm.DB
	Generator ai.Generator
	Validate  *validator.Validate
	Logger    zerolog.Logger
}

// Server implements the content and feedback service contracts on top of a
// gorm store and an ai.Generator.
type Server struct {
	db          *gorm.DB
	assignments repository.GeneratedAssignmentRepository
	feedback    repository.FeedbackRepository
	generator   ai.Generator
	validate    *validator.Validate
	logger      zerolog.Logger
}

// New builds the server. The database must already be migrated.
func New(deps Dependencies) *Server {
	validate := deps.Validate
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &Server{
		db:          deps.DB,
		assignments: repository.NewGeneratedAssignmentRepository(deps.DB),
		feedback:    repository.NewFeedbackRepository(deps.DB),
		generator:   deps.Generator,
		validate:    validate,
		logger:      deps.Logger.With().Str("component", "devserver").Logger(),
	}
}

// Migrate creates the dev store tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// Register attaches both service contracts to the app.
func (s *Server) Register(app fiber.Router) {
	app.Get("/courses/all", s.listCourses)
	app.Get("/assignments/by_course_title/:title", s.listAssignments)
	app.Post("/generate_from_course_title", s.generateAssignment)
	app.Post("/assignments/:id/generate_rubric", s.generateRubric)
	app.Post("/api/evaluate_assignment", s.evaluate)

	app.Get("/api/health", s.health)
	app.Get("/llm_status", s.llmStatus)
	app.Get("/db_status", s.dbStatus)

	app.Post("/feedback", s.submitFeedback)
	app.Get("/feedback", s.listFeedback)
}

type generateRequest struct {
	CourseTitle       string `json:"course_title" validate:"required"`
	Topic             string `json:"topic" validate:"required"`
	UserDomain        string `json:"user_domain"`
	ExtraInstructions string `json:"extra_instructions"`
}

type evaluateRequest struct {
	Rubric                json.RawMessage `json:"rubric" validate:"required"`
	AssignmentDescription string          `json:"assignment_description"`
	Submission            string          `json:"submission" validate:"required"`
}

type feedbackRequest struct {
	FeedbackType     string `json:"feedback_type" validate:"required,oneof=assignment rubric evaluation"`
	GeneratedContent string `json:"generated_content" validate:"required"`
	Rating           int    `json:"rating" validate:"min=1,max=5"`
	Suggestion       string `json:"suggestion"`
}

type assignmentSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Topic string `json:"topic"`
}

func (s *Server) listCourses(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"courses": Courses})
}

func (s *Server) listAssignments(c *fiber.Ctx) error {
	title, err := url.PathUnescape(c.Params("title"))
	if err != nil {
		return detail(c, fiber.StatusBadRequest, "invalid course title")
	}

	records, err := s.assignments.ListByCourse(c.UserContext(), title)
	if err != nil {
		return s.internal(c, "list assignments", err)
	}

	out := make([]assignmentSummary, 0, len(records))
	for _, r := range records {
		out = append(out, assignmentSummary{ID: r.ID, Title: r.Title(), Topic: r.Topic})
	}
	return c.JSON(out)
}

func (s *Server) generateAssignment(c *fiber.Ctx) error {
	var req generateRequest
	if err := s.bind(c, &req); err != nil {
		return detail(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	text, err := s.generator.Assignment(c.UserContext(), ai.AssignmentInput{
		CourseTitle:       req.CourseTitle,
		Topic:             req.Topic,
		Domain:            req.UserDomain,
		ExtraInstructions: req.ExtraInstructions,
	})
	if err != nil {
		return s.internal(c, "generate assignment", err)
	}

	record := &models.GeneratedAssignment{
		CourseTitle:       req.CourseTitle,
		Topic:             req.Topic,
		Domain:            req.UserDomain,
		ExtraInstructions: req.ExtraInstructions,
		Text:              text,
	}
	if err := s.assignments.Create(c.UserContext(), record); err != nil {
		return s.internal(c, "store assignment", err)
	}

	s.logger.Info().Str("assignment_id", record.ID).Str("course", record.CourseTitle).Msg("assignment generated")
	return c.JSON(fiber.Map{
		"generated_assignment": text,
		"assignment_id":        record.ID,
	})
}

func (s *Server) generateRubric(c *fiber.Ctx) error {
	id := c.Params("id")
	record, err := s.assignments.GetByID(c.UserContext(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return detail(c, fiber.StatusNotFound, "Assignment not found")
	}
	if err != nil {
		return s.internal(c, "load assignment", err)
	}

	raw, err := s.generator.Rubric(c.UserContext(), ai.RubricInput{
		CourseTitle:    record.CourseTitle,
		Topic:          record.Topic,
		AssignmentText: record.Text,
	})
	if err != nil {
		return s.internal(c, "generate rubric", err)
	}

	// Only well-formed rubrics are stored; the raw text is still returned so
	// the caller can show it.
	if _, parseErr := artifact.ParseRubric(raw); parseErr == nil {
		if err := s.assignments.SaveRubric(c.UserContext(), id, datatypes.JSON(raw)); err != nil {
			return s.internal(c, "store rubric", err)
		}
	} else {
		s.logger.Warn().Err(parseErr).Str("assignment_id", id).Msg("generator returned malformed rubric")
	}

	return c.JSON(fiber.Map{"rubric": raw})
}

func (s *Server) evaluate(c *fiber.Ctx) error {
	var req evaluateRequest
	if err := s.bind(c, &req); err != nil {
		return detail(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	raw, err := s.generator.Evaluate(c.UserContext(), ai.EvaluationInput{
		Rubric:                rubricText(req.Rubric),
		AssignmentDescription: req.AssignmentDescription,
		Submission:            req.Submission,
	})
	if err != nil {
		return s.internal(c, "evaluate submission", err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if json.Valid([]byte(raw)) {
		return c.SendString(raw)
	}
	return c.JSON(raw)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) llmStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "provider": s.generator.Name()})
}

func (s *Server) dbStatus(c *fiber.Ctx) error {
	if err := s.ping(c.UserContext()); err != nil {
		s.logger.Warn().Err(err).Msg("database ping failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "error", "detail": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "dialect": s.db.Dialector.Name()})
}

func (s *Server) submitFeedback(c *fiber.Ctx) error {
	var req feedbackRequest
	if err := s.bind(c, &req); err != nil {
		return detail(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	record := &models.Feedback{
		FeedbackType:     req.FeedbackType,
		GeneratedContent: req.GeneratedContent,
		Rating:           req.Rating,
		Suggestion:       strings.TrimSpace(req.Suggestion),
	}
	if err := s.feedback.Create(c.UserContext(), record); err != nil {
		return s.internal(c, "store feedback", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "id": record.ID})
}

func (s *Server) listFeedback(c *fiber.Ctx) error {
	records, err := s.feedback.List(c.UserContext(), strings.TrimSpace(c.Query("feedback_type")))
	if err != nil {
		return s.internal(c, "list feedback", err)
	}
	return c.JSON(fiber.Map{"feedback": records})
}

func (s *Server) bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errors.New("invalid request body")
	}
	return s.validate.Struct(out)
}

func (s *Server) ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Server) internal(c *fiber.Ctx, op string, err error) error {
	s.logger.Error().Err(err).Str("operation", op).Msg("dev backend request failed")
	return detail(c, fiber.StatusInternalServerError, op+" failed")
}

func detail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"detail": message})
}

// rubricText accepts the rubric as a JSON object or as a JSON string holding
// the document.
func rubricText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}
