package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "situated",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of LLM generation requests",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"model", "kind"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "situated",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of LLM generation failures",
	}, []string{"model", "kind"})
)

var errNoChoices = errors.New("no choices returned from openai")

// OpenAIConfig defines configuration options for the OpenAI generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Logger  zerolog.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1500
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/situated-learning/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_generator").Logger(),
	}, nil
}

// Name reports the model in use.
func (g *OpenAIGenerator) Name() string {
	return "openai:" + g.cfg.Model
}

// Assignment asks the model for a situated assignment brief.
func (g *OpenAIGenerator) Assignment(ctx context.Context, input AssignmentInput) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\nTopic: %s\n", input.CourseTitle, input.Topic)
	if input.Domain != "" {
		fmt.Fprintf(&b, "Industry domain: %s\n", input.Domain)
	}
	if input.ExtraInstructions != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", input.ExtraInstructions)
	}
	b.WriteString("Write the assignment brief as plain text.")

	return g.complete(ctx, "assignment", assignmentSystemPrompt, b.String(), false)
}

// Rubric asks the model for a rubric JSON document.
func (g *OpenAIGenerator) Rubric(ctx context.Context, input RubricInput) (string, error) {
	prompt := fmt.Sprintf("Course: %s\nTopic: %s\n\n## Assignment\n%s\n\nReturn JSON.",
		input.CourseTitle, input.Topic, input.AssignmentText)

	return g.complete(ctx, "rubric", rubricSystemPrompt, prompt, true)
}

// Evaluate asks the model to grade a submission against the rubric.
func (g *OpenAIGenerator) Evaluate(ctx context.Context, input EvaluationInput) (string, error) {
	var b strings.Builder
	b.WriteString("## Rubric\n")
	b.WriteString(input.Rubric)
	b.WriteString("\n\n## Assignment\n")
	b.WriteString(input.AssignmentDescription)
	b.WriteString("\n\n## Submission\n")
	b.WriteString(input.Submission)
	b.WriteString("\n\nReturn JSON.")

	return g.complete(ctx, "evaluation", evaluationSystemPrompt, b.String(), true)
}

func (g *OpenAIGenerator) complete(parent context.Context, kind, system, prompt string, jsonOutput bool) (string, error) {
	ctx, span := g.tracer.Start(parent, "openai."+kind, trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if jsonOutput {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(g.cfg.Model, kind).Observe(time.Since(start).Seconds())
	if err == nil && len(resp.Choices) == 0 {
		err = errNoChoices
	}
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model, kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn().Err(err).Str("kind", kind).Msg("openai completion failed")
		return "", fmt.Errorf("openai %s: %w", kind, err)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

const assignmentSystemPrompt = "You write situated learning assignments. Place the learner in a realistic " +
	"workplace scenario from the given industry domain and list concrete tasks they must complete."

const rubricSystemPrompt = "You write grading rubrics. Respond with a JSON object with keys rubric_name, " +
	"doc_type (\"rubric\") and categories, an array of objects with category and questions (array of strings)."

const evaluationSystemPrompt = "You grade submissions against a rubric. Score every rubric question 0 or 1. " +
	"Respond with a JSON object with keys rubric_name, summary {total_score, total_questions, percentage} and " +
	"category_breakdown, an object keyed by category name with {score, total, percentage}."
