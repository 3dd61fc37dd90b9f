package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Activity types published by the workflow.
const (
	TypeAssignmentGenerated = "assignment.generated"
	TypeRubricGenerated     = "rubric.generated"
	TypeEvaluationCompleted = "evaluation.completed"
)

// Activity is a workflow milestone broadcast for dashboards.
type Activity struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	Course     string    `json:"course,omitempty"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	Structured bool      `json:"structured"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher sends activities to a NATS subject. A nil Publisher or one
// without a connection drops activities silently.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// Connect dials the NATS server at url. An empty url yields a nil connection.
func Connect(url, name string) (*nats.Conn, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}
	return conn, nil
}

// NewPublisher builds a publisher for the subject.
func NewPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "activity_publisher").Logger(),
	}
}

// Publish encodes and sends the activity.
func (p *Publisher) Publish(_ context.Context, activity Activity) error {
	if p == nil || p.conn == nil || p.subject == "" {
		return nil
	}

	if activity.OccurredAt.IsZero() {
		activity.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}

	p.logger.Debug().Str("type", activity.Type).Str("session_id", activity.SessionID).Msg("activity published")
	return nil
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn().Err(err).Msg("failed to drain nats connection")
	}
}
