package devserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/situated-learning/internal/artifact"
	"github.com/noah-isme/situated-learning/internal/database"
	"github.com/noah-isme/situated-learning/internal/workflow"
	"github.com/noah-isme/situated-learning/pkg/ai"
	"github.com/noah-isme/situated-learning/pkg/backend"
)

type stubGenerator struct {
	*ai.TemplateGenerator
	rubric string
}

func (g stubGenerator) Rubric(context.Context, ai.RubricInput) (string, error) {
	return g.rubric, nil
}

func setupServer(t *testing.T, generator ai.Generator) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := database.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	server := New(Dependencies{DB: db, Generator: generator, Logger: zerolog.Nop()})
	return NewApp("situated-dev-test", server, nil), db
}

func newClient(t *testing.T, app *fiber.App) *backend.Client {
	t.Helper()

	httpServer := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(httpServer.Close)

	client, err := backend.New(backend.Config{
		ContentURL:  httpServer.URL,
		FeedbackURL: httpServer.URL,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return client
}

func TestWorkflowAgainstDevBackend(t *testing.T) {
	app, _ := setupServer(t, ai.NewTemplateGenerator())
	client := newClient(t, app)
	ctx := context.Background()

	session := workflow.NewSession(workflow.Dependencies{Backend: client, Logger: zerolog.Nop()})
	t.Cleanup(session.Close)

	require.NoError(t, session.LoadCourses(ctx))
	require.Equal(t, Courses, session.Snapshot().Courses)

	require.NoError(t, session.Navigate(workflow.ScreenCreate))
	require.NoError(t, session.UpdateDraft(map[workflow.DraftField]string{
		workflow.FieldCourseName: "Intro to AI (CS101)",
		workflow.FieldTopic:      "ML",
		workflow.FieldDomain:     "Finance",
	}))
	require.NoError(t, session.GenerateAssignment(ctx))
	require.NoError(t, session.GenerateRubric(ctx))

	snap := session.Snapshot()
	require.NotNil(t, snap.Assignment)
	require.Contains(t, snap.Assignment.Text, "Finance sector")
	rubric, ok := snap.Rubric.Structured.Value()
	require.True(t, ok)
	require.Equal(t, 8, rubric.QuestionCount())

	require.NoError(t, session.SelectCourse(ctx, "Intro to AI (CS101)"))
	snap = session.Snapshot()
	require.Len(t, snap.CourseAssignments, 1)
	require.Equal(t, snap.Assignment.ID, snap.CourseAssignments[0].ID)

	require.NoError(t, session.SelectAssignment(snap.Assignment.ID))
	require.NoError(t, session.Navigate(workflow.ScreenDashboard))
	require.NoError(t, session.Navigate(workflow.ScreenEvaluate))
	require.NoError(t, session.UseMockSubmission())
	require.NoError(t, session.Evaluate(ctx))

	snap = session.Snapshot()
	require.Equal(t, workflow.StageEvaluationReady, snap.Stage)
	evaluation, ok := snap.Evaluation.Structured.Value()
	require.True(t, ok)
	require.Equal(t, 8, evaluation.Summary.TotalQuestions)
	require.Len(t, evaluation.CategoryBreakdown, 4)

	require.NoError(t, session.SubmitFeedback(ctx, 5, "Useful"))
	records, err := client.Feedback(ctx, "evaluation")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 5, records[0].Rating)
	require.Equal(t, "Useful", records[0].Suggestion)
}

func TestGenerateRubricUnknownAssignment(t *testing.T) {
	app, _ := setupServer(t, ai.NewTemplateGenerator())

	req := httptest.NewRequest(http.MethodPost, "/assignments/missing/generate_rubric", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMalformedRubricIsReturnedButNotStored(t *testing.T) {
	app, db := setupServer(t, stubGenerator{TemplateGenerator: ai.NewTemplateGenerator(), rubric: "not json"})
	client := newClient(t, app)
	ctx := context.Background()

	generated, err := client.GenerateAssignment(ctx, backend.GenerateAssignmentRequest{CourseTitle: "Databases (CS205)", Topic: "SQL"})
	require.NoError(t, err)

	resp, err := client.GenerateRubric(ctx, generated.AssignmentID)
	require.NoError(t, err)
	require.Equal(t, "not json", resp.Rubric)

	var stored int64
	require.NoError(t, db.Table("generated_assignments").Where("rubric IS NOT NULL").Count(&stored).Error)
	require.Zero(t, stored)
}

func TestEvaluateAcceptsRubricAsString(t *testing.T) {
	app, _ := setupServer(t, ai.NewTemplateGenerator())
	rubric := `{"rubric_name":"R","categories":[{"category":"Risks","questions":["Are limitations discussed?"]}]}`

	for name, payload := range map[string]string{
		"object": fmt.Sprintf(`{"rubric":%s,"submission":"Limitations are listed."}`, rubric),
		"string": fmt.Sprintf(`{"rubric":%q,"submission":"Limitations are listed."}`, rubric),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/evaluate_assignment", strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			evaluation, err := artifact.ParseEvaluation(artifact.NormalizeEvaluationPayload(body))
			require.NoError(t, err)
			require.Equal(t, float64(100), evaluation.Summary.Percentage)
		})
	}
}

func TestGenerateAssignmentValidation(t *testing.T) {
	app, _ := setupServer(t, ai.NewTemplateGenerator())

	req := httptest.NewRequest(http.MethodPost, "/generate_from_course_title", strings.NewReader(`{"course_title":"CS101"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestStatusEndpoints(t *testing.T) {
	app, _ := setupServer(t, ai.NewTemplateGenerator())
	client := newClient(t, app)
	ctx := context.Background()

	health, err := client.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", health["status"])

	llm, err := client.LLMStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, "template", llm["provider"])

	db, err := client.DBStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, "sqlite", db["dialect"])
}

func TestFeedbackRejectsOutOfRangeRating(t *testing.T) {
	app, _ := setupServer(t, ai.NewTemplateGenerator())
	client := newClient(t, app)

	err := client.SubmitFeedback(context.Background(), backend.FeedbackRequest{
		FeedbackType:     "rubric",
		GeneratedContent: "text",
		Rating:           9,
	})
	var transportErr *backend.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, http.StatusUnprocessableEntity, transportErr.Status)
}
