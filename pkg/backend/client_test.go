package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, content, feedback http.Handler) *Client {
	t.Helper()

	contentServer := httptest.NewServer(content)
	t.Cleanup(contentServer.Close)

	if feedback == nil {
		feedback = http.NotFoundHandler()
	}
	feedbackServer := httptest.NewServer(feedback)
	t.Cleanup(feedbackServer.Close)

	client, err := New(Config{
		ContentURL:  contentServer.URL,
		FeedbackURL: feedbackServer.URL,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return client
}

func TestClientGenerateAssignment(t *testing.T) {
	var received GenerateAssignmentRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/generate_from_course_title", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"generated_assignment":"Build a classifier","assignment_id":42}`)
	})

	client := newTestClient(t, mux, nil)
	resp, err := client.GenerateAssignment(context.Background(), GenerateAssignmentRequest{
		CourseTitle: "Intro to AI (CS101)",
		Topic:       "ML",
		UserDomain:  "Finance",
	})
	require.NoError(t, err)
	require.Equal(t, "Build a classifier", resp.GeneratedAssignment)
	require.Equal(t, "42", resp.AssignmentID)
	require.Equal(t, "Intro to AI (CS101)", received.CourseTitle)
	require.Equal(t, "Finance", received.UserDomain)
}

func TestClientAssignmentsByCourseEscapesTitle(t *testing.T) {
	var rawPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/assignments/by_course_title/", func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		_, _ = io.WriteString(w, `[{"id":"A1","title":"Week 1"},{"id":7,"title":"Week 2"}]`)
	})

	client := newTestClient(t, mux, nil)
	list, err := client.AssignmentsByCourse(context.Background(), "Intro to AI (CS101)")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "7", list[1].ID)
	require.Contains(t, rawPath, "Intro%20to%20AI")
}

func TestClientMapsNon2xxToTransportError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/courses/all", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"detail":"llm offline"}`)
	})

	client := newTestClient(t, mux, nil)
	courses, err := client.Courses(context.Background())
	require.Nil(t, courses)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	require.Equal(t, http.StatusServiceUnavailable, transportErr.Status)
	require.Equal(t, "fetch_courses", transportErr.Op)
	require.Contains(t, transportErr.Error(), "llm offline")
}

func TestClientErrorSnippetKeepsRunesWhole(t *testing.T) {
	detail := "x" + strings.Repeat("é", maxErrorSnippet)
	mux := http.NewServeMux()
	mux.HandleFunc("/courses/all", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
	})

	client := newTestClient(t, mux, nil)
	_, err := client.Courses(context.Background())

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	require.True(t, utf8.ValidString(transportErr.Message))
	require.True(t, strings.HasSuffix(transportErr.Message, "..."))
	require.LessOrEqual(t, len(transportErr.Message), len(http.StatusText(http.StatusBadGateway))+2+maxErrorSnippet+3)
}

func TestClientMapsNetworkFailureToTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client, err := New(Config{ContentURL: addr, FeedbackURL: addr, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = client.GenerateRubric(context.Background(), "A1")
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	require.Zero(t, transportErr.Status)
}

func TestClientRejectsMalformedBodyWithoutPartialResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate_from_course_title", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"generated_assignment":"partial"`)
	})

	client := newTestClient(t, mux, nil)
	resp, err := client.GenerateAssignment(context.Background(), GenerateAssignmentRequest{})
	require.Error(t, err)
	require.True(t, IsTransportError(err))
	require.Equal(t, GenerateAssignmentResponse{}, resp)
}

func TestClientEvaluateKeepsRawBody(t *testing.T) {
	var received map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/evaluate_assignment", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = io.WriteString(w, `"Great work overall"`)
	})

	client := newTestClient(t, mux, nil)
	resp, err := client.EvaluateSubmission(context.Background(), EvaluateRequest{
		Rubric:                map[string]any{"rubric_name": "R"},
		AssignmentDescription: "desc",
		Submission:            "text",
	})
	require.NoError(t, err)
	require.JSONEq(t, `"Great work overall"`, string(resp.Body))
	require.Equal(t, "desc", received["assignment_description"])
}

func TestClientFeedbackRoundTrip(t *testing.T) {
	var posted FeedbackRequest
	var query string
	feedback := http.NewServeMux()
	feedback.HandleFunc("/feedback", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"status":"ok"}`)
		default:
			query = r.URL.Query().Get("feedback_type")
			_, _ = io.WriteString(w, `{"feedback":[{"feedback_type":"rubric","generated_content":"x","rating":4}]}`)
		}
	})

	client := newTestClient(t, http.NotFoundHandler(), feedback)
	require.NoError(t, client.SubmitFeedback(context.Background(), FeedbackRequest{
		FeedbackType:     "rubric",
		GeneratedContent: "x",
		Rating:           4,
	}))
	require.Equal(t, 4, posted.Rating)

	records, err := client.Feedback(context.Background(), "rubric")
	require.NoError(t, err)
	require.Equal(t, "rubric", query)
	require.Len(t, records, 1)
	require.Equal(t, 4, records[0].Rating)
}

func TestNewRequiresURLs(t *testing.T) {
	_, err := New(Config{FeedbackURL: "http://localhost"})
	require.Error(t, err)
}
