package ai

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTemplateAssignmentIncludesContext(t *testing.T) {
	gen := NewTemplateGenerator()

	text, err := gen.Assignment(context.Background(), AssignmentInput{
		CourseTitle:       "Intro to AI (CS101)",
		Topic:             "ML",
		Domain:            "Finance",
		ExtraInstructions: "Use a public dataset.",
	})
	require.NoError(t, err)
	require.Contains(t, text, "Intro to AI (CS101)")
	require.Contains(t, text, "Finance sector")
	require.Contains(t, text, "Use a public dataset.")

	_, err = gen.Assignment(context.Background(), AssignmentInput{Topic: "ML"})
	require.Error(t, err)
}

func TestTemplateRubricIsWellFormed(t *testing.T) {
	raw, err := NewTemplateGenerator().Rubric(context.Background(), RubricInput{CourseTitle: "CS101", Topic: "ML"})
	require.NoError(t, err)

	var doc rubricDocument
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.Equal(t, "CS101 ML Rubric", doc.RubricName)
	require.Equal(t, "rubric", doc.DocType)
	require.Len(t, doc.Categories, 4)
	for _, c := range doc.Categories {
		require.Len(t, c.Questions, 2)
	}
}

func TestTemplateEvaluateScoresKeywords(t *testing.T) {
	rubric := `{"rubric_name":"R","categories":[{"category":"Design","questions":["Is the solution justified?","Are decisions explained?"]},{"category":"Risks","questions":["Are limitations discussed?"]}]}`

	raw, err := NewTemplateGenerator().Evaluate(context.Background(), EvaluationInput{
		Rubric:     rubric,
		Submission: "Our solution uses a random forest. Limitations include data drift.",
	})
	require.NoError(t, err)

	var doc evaluationDocument
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.Equal(t, "R", doc.RubricName)
	require.Equal(t, 3, doc.Summary.TotalQuestions)
	require.Equal(t, float64(2), doc.Summary.TotalScore)
	require.Equal(t, float64(67), doc.Summary.Percentage)
	require.Equal(t, categoryScore{Score: 1, Total: 2, Percentage: 50}, doc.CategoryBreakdown["Design"])
	require.Equal(t, categoryScore{Score: 1, Total: 1, Percentage: 100}, doc.CategoryBreakdown["Risks"])
}

func TestTemplateEvaluateRejectsBadRubric(t *testing.T) {
	gen := NewTemplateGenerator()

	_, err := gen.Evaluate(context.Background(), EvaluationInput{Rubric: "not json"})
	require.Error(t, err)

	_, err = gen.Evaluate(context.Background(), EvaluationInput{Rubric: `{"categories":[]}`})
	require.Error(t, err)
}
