package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newOpenAIStub(t *testing.T, content string, status int) (*OpenAIGenerator, *map[string]any) {
	t.Helper()

	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(server.Close)

	gen, err := NewOpenAIGenerator(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return gen, &captured
}

func TestNewOpenAIGeneratorRequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator(OpenAIConfig{})
	require.Error(t, err)
}

func TestOpenAIRubricRequestsJSON(t *testing.T) {
	gen, captured := newOpenAIStub(t, `  {"rubric_name":"R","categories":[]}  `, http.StatusOK)
	require.Equal(t, "openai:gpt-4o-mini", gen.Name())

	raw, err := gen.Rubric(context.Background(), RubricInput{CourseTitle: "CS101", Topic: "ML", AssignmentText: "Build it"})
	require.NoError(t, err)
	require.Equal(t, `{"rubric_name":"R","categories":[]}`, raw)

	format, ok := (*captured)["response_format"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "json_object", format["type"])
}

func TestOpenAIAssignmentIsPlainText(t *testing.T) {
	gen, captured := newOpenAIStub(t, "A situated brief", http.StatusOK)

	text, err := gen.Assignment(context.Background(), AssignmentInput{CourseTitle: "CS101", Topic: "ML", Domain: "Finance"})
	require.NoError(t, err)
	require.Equal(t, "A situated brief", text)
	require.NotContains(t, *captured, "response_format")
}

func TestOpenAIEvaluateWrapsFailures(t *testing.T) {
	gen, _ := newOpenAIStub(t, "", http.StatusTooManyRequests)

	_, err := gen.Evaluate(context.Background(), EvaluationInput{Rubric: "{}", Submission: "text"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "openai evaluation")
}
