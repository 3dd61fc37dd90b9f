package feedback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/situated-learning/pkg/backend"
)

// Kind names the artifact a prompt collects feedback for.
type Kind string

const (
	KindAssignment Kind = "assignment"
	KindRubric     Kind = "rubric"
	KindEvaluation Kind = "evaluation"
)

// Valid reports whether k is one of the known artifact kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAssignment, KindRubric, KindEvaluation:
		return true
	default:
		return false
	}
}

var (
	// ErrNoPrompt indicates there is no open prompt to act on.
	ErrNoPrompt = errors.New("no feedback prompt is open")
	// ErrSubmissionInFlight indicates the prompt is already being submitted.
	ErrSubmissionInFlight = errors.New("feedback submission already in progress")
	// ErrAlreadySubmitted indicates the prompt was already submitted.
	ErrAlreadySubmitted = errors.New("feedback already submitted")
)

// Event is one rating of a generated artifact.
type Event struct {
	Kind       Kind   `json:"kind" validate:"required,oneof=assignment rubric evaluation"`
	Content    string `json:"content"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	Suggestion string `json:"suggestion,omitempty" validate:"max=4000"`
}

// Prompt is an open request for feedback on one artifact snapshot.
type Prompt struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Content    string    `json:"content"`
	OpenedAt   time.Time `json:"opened_at"`
	Submitting bool      `json:"submitting"`
	Submitted  bool      `json:"submitted"`
	Error      string    `json:"error,omitempty"`
}

// Submitter ships feedback to the feedback service.
type Submitter interface {
	SubmitFeedback(ctx context.Context, req backend.FeedbackRequest) error
}

// Capture owns at most one open prompt. It never blocks the main workflow.
type Capture struct {
	mu           sync.Mutex
	prompt       *Prompt
	timer        *time.Timer
	submitter    Submitter
	validator    *validator.Validate
	dismissDelay time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

// NewCapture builds a capture that auto-dismisses submitted prompts after dismissDelay.
func NewCapture(submitter Submitter, validate *validator.Validate, dismissDelay time.Duration, logger zerolog.Logger) *Capture {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &Capture{
		submitter:    submitter,
		validator:    validate,
		dismissDelay: dismissDelay,
		logger:       logger.With().Str("component", "feedback_capture").Logger(),
		now:          time.Now,
	}
}

// Open replaces any current prompt with a new one for the given content.
func (c *Capture) Open(kind Kind, content string) Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	c.prompt = &Prompt{
		ID:       uuid.NewString(),
		Kind:     kind,
		Content:  content,
		OpenedAt: c.now().UTC(),
	}

	c.logger.Debug().Str("prompt_id", c.prompt.ID).Str("kind", string(kind)).Msg("feedback prompt opened")
	return *c.prompt
}

// Current returns a copy of the open prompt.
func (c *Capture) Current() (Prompt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prompt == nil {
		return Prompt{}, false
	}
	return *c.prompt, true
}

// Dismiss discards the open prompt without submitting it.
func (c *Capture) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	if c.prompt != nil {
		c.logger.Debug().Str("prompt_id", c.prompt.ID).Msg("feedback prompt dismissed")
	}
	c.prompt = nil
}

// Submit validates the rating locally and ships the event. Validation failures
// never reach the Submitter. A transport failure keeps the prompt open.
func (c *Capture) Submit(ctx context.Context, rating int, suggestion string) error {
	c.mu.Lock()
	if c.prompt == nil {
		c.mu.Unlock()
		return ErrNoPrompt
	}
	if c.prompt.Submitting {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if c.prompt.Submitted {
		c.mu.Unlock()
		return ErrAlreadySubmitted
	}

	event := Event{
		Kind:       c.prompt.Kind,
		Content:    c.prompt.Content,
		Rating:     rating,
		Suggestion: strings.TrimSpace(suggestion),
	}
	if err := c.validator.Struct(event); err != nil {
		c.mu.Unlock()
		return err
	}

	promptID := c.prompt.ID
	c.prompt.Submitting = true
	c.prompt.Error = ""
	c.mu.Unlock()

	err := c.submitter.SubmitFeedback(ctx, backend.FeedbackRequest{
		FeedbackType:     string(event.Kind),
		GeneratedContent: event.Content,
		Rating:           event.Rating,
		Suggestion:       event.Suggestion,
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prompt == nil || c.prompt.ID != promptID {
		// Replaced or dismissed while in flight.
		return err
	}

	c.prompt.Submitting = false
	if err != nil {
		c.prompt.Error = err.Error()
		c.logger.Warn().Err(err).Str("prompt_id", promptID).Msg("feedback submission failed")
		return err
	}

	c.prompt.Submitted = true
	c.logger.Info().Str("prompt_id", promptID).Str("kind", string(event.Kind)).Int("rating", event.Rating).Msg("feedback submitted")
	c.scheduleDismissLocked(promptID)
	return nil
}

func (c *Capture) scheduleDismissLocked(promptID string) {
	if c.dismissDelay <= 0 {
		c.prompt = nil
		return
	}

	c.stopTimerLocked()
	c.timer = time.AfterFunc(c.dismissDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.prompt != nil && c.prompt.ID == promptID {
			c.prompt = nil
		}
	})
}

func (c *Capture) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
