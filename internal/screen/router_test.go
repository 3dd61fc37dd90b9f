package screen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/situated-learning/internal/artifact"
	"github.com/noah-isme/situated-learning/internal/submission"
	"github.com/noah-isme/situated-learning/internal/workflow"
	"github.com/noah-isme/situated-learning/pkg/backend"
)

const rubricJSON = `{"rubric_name":"Situated ML","categories":[{"category":"Communication","questions":["Clear?"]},{"category":"Analysis","questions":["Explored?","Justified?"]}]}`

func TestRouteDashboardLimitsRecentActivity(t *testing.T) {
	snap := workflow.Snapshot{
		Stage:   workflow.StageDashboard,
		Courses: []string{"Intro to AI (CS101)"},
		CourseAssignments: []backend.CourseAssignment{
			{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"},
		},
	}

	view := Route(snap)
	require.Equal(t, workflow.ScreenDashboard, view.Screen)
	require.NotNil(t, view.Dashboard)
	require.Nil(t, view.Create)
	require.Nil(t, view.Evaluate)
	require.Len(t, view.Dashboard.RecentActivity, RecentActivityLimit)
	require.Equal(t, "3", view.Dashboard.RecentActivity[2].ID)
}

func TestRouteDashboardZeroValue(t *testing.T) {
	view := Route(workflow.Snapshot{})
	require.NotNil(t, view.Dashboard)
	require.NotNil(t, view.Dashboard.Courses)
	require.NotNil(t, view.Dashboard.RecentActivity)
}

func TestRouteCreateStructuredRubric(t *testing.T) {
	snap := workflow.Snapshot{
		Stage:      workflow.StageRubricReady,
		Draft:      workflow.Draft{CourseName: "Intro to AI (CS101)", Topic: "ML"},
		Assignment: &workflow.Assignment{ID: "A1", Text: "Build a classifier"},
		Rubric: &workflow.Rubric{
			AssignmentID: "A1",
			Raw:          rubricJSON,
			Structured:   artifact.ParseRubricResult(rubricJSON),
		},
	}

	view := Route(snap)
	require.Equal(t, workflow.ScreenCreate, view.Screen)
	require.NotNil(t, view.Create)
	require.True(t, view.Create.GenerateAssignment.Allowed)
	require.True(t, view.Create.GenerateRubric.Allowed)
	require.Equal(t, DisplayRaw, view.Create.Assignment.Display)

	panel := view.Create.Rubric
	require.Equal(t, DisplayStructured, panel.Display)
	require.Equal(t, 3, panel.QuestionCount)
	require.Len(t, panel.Categories, 2)
	require.Equal(t, 1, panel.Categories[0].Number)
	require.Equal(t, "Communication", panel.Categories[0].Category)
	require.Empty(t, panel.ParseError)
}

func TestRouteCreateMalformedRubricFallsBackToRaw(t *testing.T) {
	snap := workflow.Snapshot{
		Stage:      workflow.StageRubricReady,
		Assignment: &workflow.Assignment{ID: "A1", Text: "text"},
		Rubric: &workflow.Rubric{
			Raw:        "not json",
			Structured: artifact.ParseRubricResult("not json"),
		},
		EditMode: workflow.EditMode{Assignment: true},
	}

	view := Route(snap)
	require.Equal(t, DisplayEditor, view.Create.Assignment.Display)
	require.Equal(t, DisplayRaw, view.Create.Rubric.Display)
	require.Equal(t, "not json", view.Create.Rubric.Raw)
	require.NotEmpty(t, view.Create.Rubric.ParseError)
	require.Empty(t, view.Create.Rubric.Categories)
}

func TestRouteEvaluateOrdersCategoriesByRubric(t *testing.T) {
	evaluation := `{"summary":{"total_score":2,"total_questions":3},"category_breakdown":{"Analysis":{"score":1,"total":2},"Communication":{"score":1,"total":1},"Bonus":{"score":0,"total":0}}}`
	mock := submission.Mock()

	snap := workflow.Snapshot{
		Stage:                workflow.StageEvaluationReady,
		CourseAssignments:    []backend.CourseAssignment{{ID: "A1", Title: "Classifier"}},
		SelectedAssignmentID: "A1",
		Assignment:           &workflow.Assignment{ID: "A1", Text: "Build a classifier"},
		Rubric:               &workflow.Rubric{Raw: rubricJSON, Structured: artifact.ParseRubricResult(rubricJSON)},
		Submission:           &mock,
		Evaluation:           &workflow.Evaluation{Raw: evaluation, Structured: artifact.ParseEvaluationResult(evaluation)},
	}

	view := Route(snap)
	require.Equal(t, workflow.ScreenEvaluate, view.Screen)
	ev := view.Evaluate
	require.True(t, ev.ShowEvaluateAction)
	require.True(t, ev.Evaluate.Allowed)
	require.Equal(t, "0.05 KB", ev.Submission.Size)

	panel := ev.Evaluation
	require.Equal(t, DisplayStructured, panel.Display)
	require.Equal(t, float64(67), panel.Summary.Percentage)

	names := make([]string, 0, len(panel.Categories))
	for _, row := range panel.Categories {
		names = append(names, row.Name)
	}
	require.Equal(t, []string{"Communication", "Analysis", "Bonus"}, names)
	require.Equal(t, float64(50), panel.Categories[1].Percentage)
	require.Equal(t, float64(0), panel.Categories[2].Percentage)
}

func TestRouteEvaluateRawEvaluationAndHiddenAction(t *testing.T) {
	snap := workflow.Snapshot{
		Stage:      workflow.StageEvaluationReady,
		Evaluation: &workflow.Evaluation{Raw: "Good work", Structured: artifact.ParseEvaluationResult("Good work")},
	}

	view := Route(snap)
	ev := view.Evaluate
	require.False(t, ev.ShowEvaluateAction)
	require.False(t, ev.Evaluate.Allowed)
	require.Equal(t, []string{"rubric", "assignment", "submission"}, ev.Evaluate.Missing)
	require.Equal(t, DisplayRaw, ev.Evaluation.Display)
	require.Equal(t, "Good work", ev.Evaluation.Raw)
	require.Nil(t, ev.Evaluation.Summary)
}
