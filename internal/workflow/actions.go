package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/noah-isme/situated-learning/internal/artifact"
	"github.com/noah-isme/situated-learning/internal/events"
	"github.com/noah-isme/situated-learning/internal/feedback"
	"github.com/noah-isme/situated-learning/pkg/backend"
)

// LoadCourses fetches the course catalogue. Lookups do not hold the busy flag.
func (s *Session) LoadCourses(ctx context.Context) error {
	s.mu.Lock()
	token := s.beginLookupLocked(tokenCourses)
	s.mu.Unlock()
	defer s.endLookup()

	courses, err := s.courses.Courses(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(tokenCourses, token, "fetch_courses") {
		return ErrSuperseded
	}
	if err != nil {
		s.state.LastError = "Failed to fetch courses: " + err.Error()
		return fmt.Errorf("fetch courses: %w", err)
	}

	if courses == nil {
		courses = []string{}
	}
	s.state.Courses = courses
	return nil
}

// SelectCourse sets the draft course (and its code, when the title carries
// one) and refreshes the course's assignment list. Only the latest selection's
// list is applied.
func (s *Session) SelectCourse(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)

	s.mu.Lock()
	if title != "" && len(s.state.Courses) > 0 && !slices.Contains(s.state.Courses, title) {
		err := s.failLocked(invalid("select_course", "unknown course %q", title))
		s.mu.Unlock()
		return err
	}

	draft := s.state.Draft
	draft.CourseName = title
	if code, ok := CourseCode(title); ok {
		draft.CourseCode = code
	}
	s.state.Draft = draft
	s.state.SelectedAssignmentID = ""

	if title == "" {
		s.tokens[tokenLookup]++
		s.state.CourseAssignments = []backend.CourseAssignment{}
		s.mu.Unlock()
		return nil
	}

	token := s.beginLookupLocked(tokenLookup)
	s.mu.Unlock()
	defer s.endLookup()

	list, err := s.backend.AssignmentsByCourse(ctx, title)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(tokenLookup, token, "fetch_assignments") {
		return ErrSuperseded
	}
	if err != nil {
		s.state.LastError = "Failed to fetch assignments: " + err.Error()
		return fmt.Errorf("fetch assignments: %w", err)
	}

	if list == nil {
		list = []backend.CourseAssignment{}
	}
	s.state.CourseAssignments = list
	return nil
}

// GenerateAssignment generates an assignment from the draft. A new assignment
// invalidates the current rubric and evaluation.
func (s *Session) GenerateAssignment(ctx context.Context) error {
	const action = "generate_assignment"

	s.mu.Lock()
	if d := CanGenerateAssignment(s.state); !d.Allowed {
		err := s.failLocked(gateError(action, d))
		s.mu.Unlock()
		return err
	}
	draft := s.state.Draft
	token, call := s.beginLocked(tokenAssignment, action)
	s.mu.Unlock()
	defer s.release(call)

	resp, err := s.backend.GenerateAssignment(ctx, backend.GenerateAssignmentRequest{
		CourseTitle:       draft.CourseName,
		Topic:             draft.Topic,
		UserDomain:        draft.Domain,
		ExtraInstructions: draft.CustomInstructions,
	})

	activity, err := s.applyAssignment(call, token, draft, resp, err)
	s.publish(ctx, activity)
	return err
}

func (s *Session) applyAssignment(call, token uint64, draft Draft, resp backend.GenerateAssignmentResponse, callErr error) (*events.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(call)

	if !s.currentLocked(tokenAssignment, token, "generate_assignment") {
		return nil, ErrSuperseded
	}
	if callErr != nil {
		s.state.LastError = "Failed to generate assignment: " + callErr.Error()
		return nil, fmt.Errorf("generate assignment: %w", callErr)
	}

	s.state.Assignment = &Assignment{ID: strings.TrimSpace(resp.AssignmentID), Text: resp.GeneratedAssignment}
	s.state.Rubric = nil
	s.state.Evaluation = nil
	s.state.EditMode = EditMode{}
	s.tokens[tokenRubric]++
	s.tokens[tokenEvaluation]++
	s.state.Stage = reconcileStage(s.state)
	s.feedback.Open(feedback.KindAssignment, resp.GeneratedAssignment)

	s.logger.Info().Str("assignment_id", s.state.Assignment.ID).Str("course", draft.CourseName).Msg("assignment generated")

	return &events.Activity{
		Type:       events.TypeAssignmentGenerated,
		Course:     draft.CourseName,
		ArtifactID: s.state.Assignment.ID,
		Structured: true,
	}, nil
}

// GenerateRubric generates a rubric for the current assignment id. A rubric
// that does not parse is kept as raw text and returned as a ParseError.
func (s *Session) GenerateRubric(ctx context.Context) error {
	const action = "generate_rubric"

	s.mu.Lock()
	if d := CanGenerateRubric(s.state); !d.Allowed {
		err := s.failLocked(gateError(action, d))
		s.mu.Unlock()
		return err
	}
	assignmentID := s.state.Assignment.ID
	course := s.state.Draft.CourseName
	token, call := s.beginLocked(tokenRubric, action)
	s.mu.Unlock()
	defer s.release(call)

	resp, err := s.backend.GenerateRubric(ctx, assignmentID)

	activity, err := s.applyRubric(call, token, assignmentID, course, resp, err)
	s.publish(ctx, activity)
	return err
}

func (s *Session) applyRubric(call, token uint64, assignmentID, course string, resp backend.GenerateRubricResponse, callErr error) (*events.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(call)

	if !s.currentLocked(tokenRubric, token, "generate_rubric") {
		return nil, ErrSuperseded
	}
	if callErr != nil {
		s.state.LastError = "Failed to generate rubric: " + callErr.Error()
		return nil, fmt.Errorf("generate rubric: %w", callErr)
	}

	rubric := Rubric{
		AssignmentID: assignmentID,
		Raw:          resp.Rubric,
		Structured:   artifact.ParseRubricResult(resp.Rubric),
	}
	s.state.Rubric = &rubric
	s.state.EditMode.Rubric = false
	s.state.Stage = reconcileStage(s.state)
	s.feedback.Open(feedback.KindRubric, resp.Rubric)

	activity := &events.Activity{
		Type:       events.TypeRubricGenerated,
		Course:     course,
		ArtifactID: assignmentID,
		Structured: rubric.Structured.State() == artifact.ParsedOK,
	}

	if parseErr := rubric.Structured.Err(); parseErr != nil {
		s.state.LastError = "Failed to parse rubric: " + parseErr.Error()
		s.logger.Warn().Err(parseErr).Str("assignment_id", assignmentID).Msg("rubric is not structured")
		return activity, parseErr
	}

	s.logger.Info().Str("assignment_id", assignmentID).Msg("rubric generated")
	return activity, nil
}

// Evaluate grades the current submission against the structured rubric and
// the assignment text. An evaluation that does not parse still completes.
func (s *Session) Evaluate(ctx context.Context) error {
	const action = "evaluate_submission"

	s.mu.Lock()
	if d := CanEvaluate(s.state); !d.Allowed {
		err := s.failLocked(gateError(action, d))
		s.mu.Unlock()
		return err
	}
	rubric, _ := s.state.StructuredRubric()
	req := backend.EvaluateRequest{
		Rubric:                rubric,
		AssignmentDescription: s.state.Assignment.Text,
		Submission:            s.state.Submission.Text,
	}
	assignmentID := s.state.Assignment.ID
	course := s.state.Draft.CourseName
	token, call := s.beginLocked(tokenEvaluation, action)
	s.mu.Unlock()
	defer s.release(call)

	resp, err := s.backend.EvaluateSubmission(ctx, req)

	activity, err := s.applyEvaluation(call, token, assignmentID, course, resp, err)
	s.publish(ctx, activity)
	return err
}

func (s *Session) applyEvaluation(call, token uint64, assignmentID, course string, resp backend.EvaluateResponse, callErr error) (*events.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(call)

	if !s.currentLocked(tokenEvaluation, token, "evaluate_submission") {
		return nil, ErrSuperseded
	}
	if callErr != nil {
		s.state.LastError = "Failed to evaluate submission: " + callErr.Error()
		return nil, fmt.Errorf("evaluate submission: %w", callErr)
	}

	text := artifact.NormalizeEvaluationPayload(resp.Body)
	if strings.TrimSpace(text) == "" {
		s.state.LastError = "No evaluation data received from server"
		return nil, ErrEmptyEvaluation
	}

	evaluation := Evaluation{
		Raw:        text,
		Structured: artifact.ParseEvaluationResult(text),
	}
	s.state.Evaluation = &evaluation
	s.state.EditMode.Evaluation = false
	s.state.Stage = reconcileStage(s.state)
	s.feedback.Open(feedback.KindEvaluation, text)

	structured := evaluation.Structured.State() == artifact.ParsedOK
	s.logger.Info().Str("assignment_id", assignmentID).Bool("structured", structured).Msg("submission evaluated")

	return &events.Activity{
		Type:       events.TypeEvaluationCompleted,
		Course:     course,
		ArtifactID: assignmentID,
		Structured: structured,
	}, nil
}
