package workflow

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/situated-learning/internal/events"
	"github.com/noah-isme/situated-learning/internal/feedback"
	"github.com/noah-isme/situated-learning/pkg/backend"
)

// ErrSuperseded indicates a response arrived after a newer request for the
// same stage was dispatched; it was discarded.
var ErrSuperseded = errors.New("response superseded by a newer request")

// Backend is the subset of the transport client the workflow drives.
type Backend interface {
	Courses(ctx context.Context) ([]string, error)
	AssignmentsByCourse(ctx context.Context, courseTitle string) ([]backend.CourseAssignment, error)
	GenerateAssignment(ctx context.Context, req backend.GenerateAssignmentRequest) (backend.GenerateAssignmentResponse, error)
	GenerateRubric(ctx context.Context, assignmentID string) (backend.GenerateRubricResponse, error)
	EvaluateSubmission(ctx context.Context, req backend.EvaluateRequest) (backend.EvaluateResponse, error)
	SubmitFeedback(ctx context.Context, req backend.FeedbackRequest) error
}

// CourseSource provides the course catalogue.
type CourseSource interface {
	Courses(ctx context.Context) ([]string, error)
}

// ActivityPublisher receives workflow milestones.
type ActivityPublisher interface {
	Publish(ctx context.Context, activity events.Activity) error
}

// Dependencies groups the collaborators of a Session.
type Dependencies struct {
	Backend              Backend
	Courses              CourseSource
	Publisher            ActivityPublisher
	Validator            *validator.Validate
	Logger               zerolog.Logger
	FeedbackDismissDelay time.Duration
}

type tokenKind int

const (
	tokenCourses tokenKind = iota
	tokenLookup
	tokenAssignment
	tokenRubric
	tokenEvaluation
	tokenKinds
)

// Session is the single owned state of one instructor's workflow. All reads go
// through Snapshot and all writes through its named operations.
type Session struct {
	mu       sync.Mutex
	state    Snapshot
	tokens   [tokenKinds]uint64
	calls    uint64
	busyCall uint64
	lookups  int

	backend   Backend
	courses   CourseSource
	publisher ActivityPublisher
	validator *validator.Validate
	feedback  *feedback.Capture
	logger    zerolog.Logger
	createdAt time.Time
}

// NewSession builds a session on the dashboard with an empty draft.
func NewSession(deps Dependencies) *Session {
	validate := deps.Validator
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	courses := deps.Courses
	if courses == nil {
		courses = deps.Backend
	}

	id := uuid.NewString()
	logger := deps.Logger.With().Str("component", "workflow").Str("session_id", id).Logger()

	return &Session{
		state: Snapshot{
			ID:                id,
			Stage:             StageDashboard,
			Courses:           []string{},
			CourseAssignments: []backend.CourseAssignment{},
		},
		backend:   deps.Backend,
		courses:   courses,
		publisher: deps.Publisher,
		validator: validate,
		feedback:  feedback.NewCapture(deps.Backend, validate, deps.FeedbackDismissDelay, logger),
		logger:    logger,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.state.ID
}

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Snapshot returns a copy of the current state with derived fields filled in.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := s.state
	snap.Courses = slices.Clone(s.state.Courses)
	snap.CourseAssignments = slices.Clone(s.state.CourseAssignments)
	snap.Loading = s.lookups > 0
	s.mu.Unlock()

	snap.Screen = snap.Stage.Screen()
	snap.Gates = evaluateGates(snap)
	if prompt, ok := s.feedback.Current(); ok {
		snap.Feedback = &prompt
	}
	return snap
}

// Close releases timers held by the session.
func (s *Session) Close() {
	s.feedback.Dismiss()
}

// Navigate moves between screens. Create and evaluate are entered from the
// dashboard; every screen returns to the dashboard.
func (s *Session) Navigate(target Screen) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := navigate(s.state, target)
	if !ok {
		return s.failLocked(invalid("navigate", "cannot open %s from %s, return to the dashboard first", target, s.state.Stage.Screen()))
	}

	s.state.Stage = next
	return nil
}

// DismissError clears the last surfaced error.
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastError = ""
}

// SubmitFeedback rates the artifact of the open feedback prompt.
func (s *Session) SubmitFeedback(ctx context.Context, rating int, suggestion string) error {
	return s.feedback.Submit(ctx, rating, suggestion)
}

// DismissFeedback discards the open feedback prompt.
func (s *Session) DismissFeedback() {
	s.feedback.Dismiss()
}

func (s *Session) failLocked(err *ValidationError) error {
	s.state.LastError = err.Error()
	s.logger.Debug().Str("action", err.Action).Str("reason", err.Reason).Msg("action denied")
	return err
}

// beginLocked marks the session busy for a stage-advancing call and returns
// the stage token and the call id owning the busy flag.
func (s *Session) beginLocked(kind tokenKind, action string) (uint64, uint64) {
	s.tokens[kind]++
	s.calls++
	s.busyCall = s.calls
	s.state.Busy = true
	s.state.BusyAction = action
	s.state.LastError = ""
	return s.tokens[kind], s.calls
}

func (s *Session) releaseLocked(call uint64) {
	if s.busyCall != call {
		return
	}
	s.busyCall = 0
	s.state.Busy = false
	s.state.BusyAction = ""
}

func (s *Session) release(call uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(call)
}

func (s *Session) currentLocked(kind tokenKind, token uint64, action string) bool {
	if s.tokens[kind] == token {
		return true
	}
	s.logger.Info().Str("action", action).Uint64("token", token).Uint64("latest", s.tokens[kind]).Msg("discarding stale response")
	return false
}

func (s *Session) beginLookupLocked(kind tokenKind) uint64 {
	s.tokens[kind]++
	s.lookups++
	return s.tokens[kind]
}

func (s *Session) endLookup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookups > 0 {
		s.lookups--
	}
}

func (s *Session) publish(ctx context.Context, activity *events.Activity) {
	if activity == nil || s.publisher == nil {
		return
	}
	activity.SessionID = s.state.ID
	if err := s.publisher.Publish(ctx, *activity); err != nil {
		s.logger.Warn().Err(err).Str("type", activity.Type).Msg("failed to publish activity")
	}
}
