package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "situated",
		Subsystem: "backend",
		Name:      "request_duration_seconds",
		Help:      "Duration of calls to the content and feedback services",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "situated",
		Subsystem: "backend",
		Name:      "request_failures_total",
		Help:      "Number of failed calls to the content and feedback services",
	}, []string{"operation", "status"})
)

const maxErrorSnippet = 256

// Config defines where the two services live and how to reach them.
type Config struct {
	ContentURL  string
	FeedbackURL string
	// Timeout bounds a whole request; zero leaves calls unbounded.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the content/evaluation service and the feedback service.
type Client struct {
	contentURL  string
	feedbackURL string
	http        *http.Client
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// New builds a client for the configured services.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ContentURL) == "" {
		return nil, fmt.Errorf("content service url is required")
	}
	if strings.TrimSpace(cfg.FeedbackURL) == "" {
		return nil, fmt.Errorf("feedback service url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{
		contentURL:  strings.TrimRight(cfg.ContentURL, "/"),
		feedbackURL: strings.TrimRight(cfg.FeedbackURL, "/"),
		http:        httpClient,
		tracer:      otel.Tracer("github.com/noah-isme/situated-learning/pkg/backend"),
		logger:      cfg.Logger.With().Str("component", "backend_client").Logger(),
	}, nil
}

// Courses fetches the full course catalogue.
func (c *Client) Courses(ctx context.Context) ([]string, error) {
	var out CoursesResponse
	if err := c.do(ctx, "fetch_courses", http.MethodGet, c.contentURL+"/courses/all", nil, &out); err != nil {
		return nil, err
	}
	if out.Courses == nil {
		return []string{}, nil
	}
	return out.Courses, nil
}

// AssignmentsByCourse lists previously generated assignments of a course.
func (c *Client) AssignmentsByCourse(ctx context.Context, courseTitle string) ([]CourseAssignment, error) {
	endpoint := c.contentURL + "/assignments/by_course_title/" + url.PathEscape(courseTitle)

	var out []CourseAssignment
	if err := c.do(ctx, "fetch_assignments", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return []CourseAssignment{}, nil
	}
	return out, nil
}

// GenerateAssignment asks the content service for a new assignment. Every call
// may create a new assignment id upstream.
func (c *Client) GenerateAssignment(ctx context.Context, req GenerateAssignmentRequest) (GenerateAssignmentResponse, error) {
	var out GenerateAssignmentResponse
	if err := c.do(ctx, "generate_assignment", http.MethodPost, c.contentURL+"/generate_from_course_title", req, &out); err != nil {
		return GenerateAssignmentResponse{}, err
	}
	return out, nil
}

// GenerateRubric asks the content service for a rubric of the given assignment.
func (c *Client) GenerateRubric(ctx context.Context, assignmentID string) (GenerateRubricResponse, error) {
	endpoint := fmt.Sprintf("%s/assignments/%s/generate_rubric", c.contentURL, url.PathEscape(assignmentID))

	var out GenerateRubricResponse
	if err := c.do(ctx, "generate_rubric", http.MethodPost, endpoint, nil, &out); err != nil {
		return GenerateRubricResponse{}, err
	}
	return out, nil
}

// EvaluateSubmission grades a submission against a rubric.
func (c *Client) EvaluateSubmission(ctx context.Context, req EvaluateRequest) (EvaluateResponse, error) {
	var body json.RawMessage
	if err := c.do(ctx, "evaluate_submission", http.MethodPost, c.contentURL+"/api/evaluate_assignment", req, &body); err != nil {
		return EvaluateResponse{}, err
	}
	return EvaluateResponse{Body: body}, nil
}

// SubmitFeedback stores a rating for a generated artifact.
func (c *Client) SubmitFeedback(ctx context.Context, req FeedbackRequest) error {
	var ignored json.RawMessage
	return c.do(ctx, "submit_feedback", http.MethodPost, c.feedbackURL+"/feedback", req, &ignored)
}

// Feedback lists stored feedback, optionally filtered by artifact type.
func (c *Client) Feedback(ctx context.Context, feedbackType string) ([]FeedbackRecord, error) {
	endpoint := c.feedbackURL + "/feedback"
	if feedbackType != "" {
		endpoint += "?" + url.Values{"feedback_type": []string{feedbackType}}.Encode()
	}

	var body json.RawMessage
	if err := c.do(ctx, "fetch_feedback", http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, err
	}

	records, err := decodeFeedbackList(body)
	if err != nil {
		return nil, &TransportError{Op: "fetch_feedback", Status: http.StatusOK, Message: "invalid response body", Err: err}
	}
	return records, nil
}

// Health calls GET /api/health.
func (c *Client) Health(ctx context.Context) (Status, error) {
	return c.status(ctx, "health", "/api/health")
}

// LLMStatus calls GET /llm_status.
func (c *Client) LLMStatus(ctx context.Context) (Status, error) {
	return c.status(ctx, "llm_status", "/llm_status")
}

// DBStatus calls GET /db_status.
func (c *Client) DBStatus(ctx context.Context) (Status, error) {
	return c.status(ctx, "db_status", "/db_status")
}

func (c *Client) status(ctx context.Context, op, path string) (Status, error) {
	var out Status
	if err := c.do(ctx, op, http.MethodGet, c.contentURL+path, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Status{}
	}
	return out, nil
}

func (c *Client) do(parent context.Context, op, method, endpoint string, payload any, out any) (err error) {
	ctx, span := c.tracer.Start(parent, "backend."+op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("backend.operation", op),
	))
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			requestFailures.WithLabelValues(op, fmt.Sprintf("%d", status)).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn().Err(err).Str("operation", op).Int("status", status).Msg("backend call failed")
			return
		}
		c.logger.Debug().Str("operation", op).Dur("duration", time.Since(start)).Msg("backend call completed")
	}()

	var body io.Reader
	if payload != nil {
		encoded, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return &TransportError{Op: op, Message: "encode request", Err: marshalErr}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &TransportError{Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Status: status, Message: "read response body", Err: err}
	}

	if status < 200 || status > 299 {
		return &TransportError{Op: op, Status: status, Message: errorMessage(status, data)}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("null")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Status: status, Message: "invalid response body", Err: err}
	}

	return nil
}

func errorMessage(status int, body []byte) string {
	message := http.StatusText(status)

	var detail struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &detail); err == nil {
		switch {
		case detail.Message != "":
			return message + ": " + truncate(detail.Message)
		case detail.Detail != nil:
			return message + ": " + truncate(fmt.Sprint(detail.Detail))
		}
	}

	return message
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrorSnippet {
		return s
	}
	cut := maxErrorSnippet
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func decodeFeedbackList(body json.RawMessage) ([]FeedbackRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return []FeedbackRecord{}, nil
	}

	if trimmed[0] == '[' {
		var records []FeedbackRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var wrapped struct {
		Feedback []FeedbackRecord `json:"feedback"`
		Data     []FeedbackRecord `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Feedback != nil {
		return wrapped.Feedback, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return []FeedbackRecord{}, nil
}
