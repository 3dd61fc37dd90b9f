package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/noah-isme/situated-learning/internal/artifact"
)

// TemplateGenerator is a deterministic Generator for local development and
// tests. Its grading is a keyword match, not an assessment.
type TemplateGenerator struct{}

// NewTemplateGenerator builds the template generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Name identifies the generator in status checks.
func (g *TemplateGenerator) Name() string {
	return "template"
}

// Assignment writes a situated assignment brief.
func (g *TemplateGenerator) Assignment(_ context.Context, input AssignmentInput) (string, error) {
	if strings.TrimSpace(input.CourseTitle) == "" || strings.TrimSpace(input.Topic) == "" {
		return "", fmt.Errorf("course title and topic are required")
	}

	domain := strings.TrimSpace(input.Domain)
	if domain == "" {
		domain = "Technology Industry"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Situated Learning Assignment: %s\n", input.Topic)
	fmt.Fprintf(&b, "Course: %s\n\n", input.CourseTitle)
	b.WriteString("Scenario\n")
	fmt.Fprintf(&b, "You have joined a team in the %s sector that needs to apply %s to a live business problem. ", domain, input.Topic)
	b.WriteString("Stakeholders expect a recommendation they can act on within one quarter.\n\n")
	b.WriteString("Tasks\n")
	fmt.Fprintf(&b, "1. Describe the problem and explain why %s is a suitable approach.\n", input.Topic)
	b.WriteString("2. Build or outline a solution and justify each design decision.\n")
	b.WriteString("3. Evaluate the solution against measurable success criteria.\n")
	b.WriteString("4. Summarise risks, limitations and next steps for the stakeholders.\n")
	if extra := strings.TrimSpace(input.ExtraInstructions); extra != "" {
		b.WriteString("\nAdditional instructions\n")
		b.WriteString(extra)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// Rubric writes a four-category rubric for the assignment.
func (g *TemplateGenerator) Rubric(_ context.Context, input RubricInput) (string, error) {
	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		topic = "the topic"
	}

	doc := rubricDocument{
		RubricName: fmt.Sprintf("%s Rubric", strings.TrimSpace(input.CourseTitle+" "+input.Topic)),
		DocType:    "rubric",
		Categories: []rubricCategory{
			{Category: "Problem Understanding", Questions: []string{
				"Does the submission describe the business problem clearly?",
				fmt.Sprintf("Does the submission explain why %s fits the problem?", topic),
			}},
			{Category: "Solution Design", Questions: []string{
				"Is the proposed solution described step by step?",
				"Are the design decisions justified?",
			}},
			{Category: "Evaluation", Questions: []string{
				"Are measurable success criteria defined?",
				"Are results compared against the criteria?",
			}},
			{Category: "Communication", Questions: []string{
				"Are risks and limitations discussed?",
				"Are next steps recommended to stakeholders?",
			}},
		},
	}

	return encode(doc)
}

// Evaluate scores each rubric question by whether the submission mentions the
// question's key terms.
func (g *TemplateGenerator) Evaluate(_ context.Context, input EvaluationInput) (string, error) {
	var rubric rubricDocument
	if err := json.Unmarshal([]byte(input.Rubric), &rubric); err != nil {
		return "", fmt.Errorf("decode rubric: %w", err)
	}
	if len(rubric.Categories) == 0 {
		return "", fmt.Errorf("rubric has no categories")
	}

	words := wordSet(input.Submission)
	doc := evaluationDocument{
		RubricName:        rubric.RubricName,
		CategoryBreakdown: make(map[string]categoryScore, len(rubric.Categories)),
	}

	var scoreSum, totalSum float64
	for _, category := range rubric.Categories {
		var score float64
		for _, question := range category.Questions {
			if mentions(words, question) {
				score++
			}
		}
		total := float64(len(category.Questions))
		doc.CategoryBreakdown[category.Category] = categoryScore{
			Score:      score,
			Total:      total,
			Percentage: artifact.ComputePercentage(score, total),
		}
		scoreSum += score
		totalSum += total
		doc.Summary.TotalQuestions += len(category.Questions)
	}

	doc.Summary.TotalScore = scoreSum
	doc.Summary.Percentage = artifact.ComputePercentage(scoreSum, totalSum)

	return encode(doc)
}

func encode(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}


func wordSet(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), notLetterOrDigit) {
		words[w] = struct{}{}
	}
	return words
}

// mentions reports whether any word longer than four letters of the question
// appears in the submission.
func mentions(words map[string]struct{}, question string) bool {
	for _, w := range strings.FieldsFunc(strings.ToLower(question), notLetterOrDigit) {
		if len(w) <= 4 {
			continue
		}
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}

func notLetterOrDigit(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
