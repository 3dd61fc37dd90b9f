package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/situated-learning/internal/config"
	"github.com/noah-isme/situated-learning/internal/database"
	"github.com/noah-isme/situated-learning/internal/devserver"
	"github.com/noah-isme/situated-learning/internal/handler"
	"github.com/noah-isme/situated-learning/internal/middleware"
	"github.com/noah-isme/situated-learning/internal/router"
	"github.com/noah-isme/situated-learning/internal/service"
	"github.com/noah-isme/situated-learning/internal/submission"
	"github.com/noah-isme/situated-learning/internal/workflow"
	"github.com/noah-isme/situated-learning/pkg/ai"
	"github.com/noah-isme/situated-learning/pkg/backend"
)

// setupStack runs the session API against the dev backend over real HTTP.
func setupStack(t *testing.T) *fiber.App {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, devserver.Migrate(db))
	dev := devserver.NewApp("dev", devserver.New(devserver.Dependencies{DB: db, Generator: ai.NewTemplateGenerator(), Logger: logger}), nil)

	upstream := httptest.NewServer(adaptor.FiberApp(dev))
	t.Cleanup(upstream.Close)

	client, err := backend.New(backend.Config{ContentURL: upstream.URL, FeedbackURL: upstream.URL, Logger: logger})
	require.NoError(t, err)

	validate := validator.New(validator.WithRequiredStructEnabled())
	sessions := service.NewSessionService(func() *workflow.Session {
		return workflow.NewSession(workflow.Dependencies{Backend: client, Validator: validate, Logger: logger})
	}, logger)

	cfg := config.Config{AppName: "Situated", AppEnv: "test", ContentAPIURL: upstream.URL}
	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler: handler.NewSessionHandler(sessions, submission.NewReader(1, logger), validate, middleware.RateLimit("stage", 100, 0), logger),
		CatalogHandler: handler.NewCatalogHandler(client, client, service.NewBackendStatusService(client, logger), logger),
		Sessions:       sessions,
	})
	return app
}

func compileSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", "session_response.schema.json"))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + filepath.ToSlash(path))
	require.NoError(t, err)
	return schema
}

func call(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, payload
}

func TestSessionResponsesMatchContract(t *testing.T) {
	app := setupStack(t)
	schema := compileSchema(t)

	check := func(status int, payload []byte) map[string]any {
		t.Helper()
		require.Equal(t, http.StatusOK, status, string(payload))

		var doc map[string]any
		require.NoError(t, json.Unmarshal(payload, &doc))
		require.NoError(t, schema.Validate(doc))
		return doc
	}

	status, payload := call(t, app, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, status)
	var opened struct {
		Data handler.SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &opened))
	base := "/api/v1/sessions/" + opened.Data.Session.ID
	require.Equal(t, devserver.Courses, opened.Data.Session.Courses)

	check(call(t, app, http.MethodPost, base+"/navigate", map[string]string{"screen": "create"}))
	check(call(t, app, http.MethodPatch, base+"/draft", map[string]string{"course_name": "Intro to AI (CS101)", "topic": "ML"}))
	check(call(t, app, http.MethodPost, base+"/assignment", nil))
	doc := check(call(t, app, http.MethodPost, base+"/rubric", nil))
	require.Equal(t, "rubric_ready", doc["data"].(map[string]any)["session"].(map[string]any)["stage"])

	check(call(t, app, http.MethodPost, base+"/navigate", map[string]string{"screen": "dashboard"}))
	check(call(t, app, http.MethodPost, base+"/navigate", map[string]string{"screen": "evaluate"}))
	check(call(t, app, http.MethodPost, base+"/submission/mock", nil))
	doc = check(call(t, app, http.MethodPost, base+"/evaluation", nil))

	evaluation := doc["data"].(map[string]any)["session"].(map[string]any)["evaluation"].(map[string]any)
	require.Equal(t, "ok", evaluation["structured"].(map[string]any)["state"])
}

func TestBackendStatusThroughDevBackend(t *testing.T) {
	app := setupStack(t)

	status, payload := call(t, app, http.MethodGet, "/api/v1/backend/status", nil)
	require.Equal(t, http.StatusOK, status)

	var body struct {
		Data service.BackendStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	require.True(t, body.Data.Healthy)
}

func TestMetricsMountedAtRoot(t *testing.T) {
	app := setupStack(t)

	call(t, app, http.MethodGet, "/api/v1/health", nil)
	status, payload := call(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, strings.Contains(string(payload), "situated_http_requests_total"))
}
