package ai

import "context"

// AssignmentInput describes the assignment an instructor asked for.
type AssignmentInput struct {
	CourseTitle       string
	Topic             string
	Domain            string
	ExtraInstructions string
}

// RubricInput carries the assignment a rubric is written for.
type RubricInput struct {
	CourseTitle    string
	Topic          string
	AssignmentText string
}

// EvaluationInput contains the artefacts needed to grade a submission.
type EvaluationInput struct {
	// Rubric is the rubric JSON document.
	Rubric                string
	AssignmentDescription string
	Submission            string
}

// Generator produces assignments, rubrics and evaluations. Rubric and
// Evaluate return JSON documents in the content service's wire format.
type Generator interface {
	Name() string
	Assignment(ctx context.Context, input AssignmentInput) (string, error)
	Rubric(ctx context.Context, input RubricInput) (string, error)
	Evaluate(ctx context.Context, input EvaluationInput) (string, error)
}

type rubricDocument struct {
	RubricName string           `json:"rubric_name"`
	DocType    string           `json:"doc_type"`
	Categories []rubricCategory `json:"categories"`
}

type rubricCategory struct {
	Category  string   `json:"category"`
	Questions []string `json:"questions"`
}

type categoryScore struct {
	Score      float64 `json:"score"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
}

type evaluationSummary struct {
	TotalScore     float64 `json:"total_score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
}

type evaluationDocument struct {
	RubricName        string                   `json:"rubric_name"`
	Summary           evaluationSummary        `json:"summary"`
	CategoryBreakdown map[string]categoryScore `json:"category_breakdown"`
}
