package workflow

import (
	"strings"

	"github.com/noah-isme/situated-learning/internal/artifact"
	"github.com/noah-isme/situated-learning/internal/feedback"
	"github.com/noah-isme/situated-learning/internal/submission"
)

// SetDraftField updates one draft field. Draft edits stay allowed while a
// stage action is in flight; the in-flight call already holds its own copy.
func (s *Session) SetDraftField(field DraftField, value string) error {
	return s.UpdateDraft(map[DraftField]string{field: value})
}

// UpdateDraft applies several field changes at once or none of them.
func (s *Session) UpdateDraft(changes map[DraftField]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.Draft
	for field, value := range changes {
		next, ok := draft.with(field, value)
		if !ok {
			return s.failLocked(invalid("update_draft", "unknown draft field %q", field))
		}
		draft = next
	}

	if !validDomain(draft.Domain) {
		return s.failLocked(invalid("update_draft", "unknown domain %q", draft.Domain))
	}
	if err := s.validator.Struct(draft); err != nil {
		return s.failLocked(invalid("update_draft", "%s", err.Error()))
	}

	s.state.Draft = draft
	return nil
}

// SelectAssignment picks one of the course's existing assignments for the
// evaluate screen. An empty id clears the selection.
func (s *Session) SelectAssignment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	if id == "" {
		s.state.SelectedAssignmentID = ""
		return nil
	}

	for _, a := range s.state.CourseAssignments {
		if a.ID == id {
			s.state.SelectedAssignmentID = id
			return nil
		}
	}
	return s.failLocked(invalid("select_assignment", "assignment %q is not listed for the selected course", id))
}

// AttachSubmission replaces the current submission wholesale.
func (s *Session) AttachSubmission(sub submission.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !hasText(sub.Text) {
		return s.failLocked(invalid("attach_submission", "submission has no text"))
	}

	s.state.Submission = &sub
	s.logger.Debug().Str("file", sub.SourceFileName).Int64("bytes", sub.SizeBytes).Msg("submission attached")
	return nil
}

// UseMockSubmission attaches the canned mock submission.
func (s *Session) UseMockSubmission() error {
	return s.AttachSubmission(submission.Mock())
}

// SetEditMode opens or closes local editing of an artifact. Closing is the
// "save" action: edits are kept in memory only.
func (s *Session) SetEditMode(kind feedback.Kind, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case feedback.KindAssignment:
		if s.state.Assignment == nil {
			return s.failLocked(invalid("edit_mode", "no assignment to edit"))
		}
		s.state.EditMode.Assignment = enabled
	case feedback.KindRubric:
		if s.state.Rubric == nil {
			return s.failLocked(invalid("edit_mode", "no rubric to edit"))
		}
		s.state.EditMode.Rubric = enabled
	case feedback.KindEvaluation:
		if s.state.Evaluation == nil {
			return s.failLocked(invalid("edit_mode", "no evaluation to edit"))
		}
		s.state.EditMode.Evaluation = enabled
	default:
		return s.failLocked(invalid("edit_mode", "unknown artifact %q", kind))
	}
	return nil
}

// EditAssignmentText replaces the assignment text locally. The id is kept, so
// rubric generation still targets the backend's copy.
func (s *Session) EditAssignmentText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Assignment == nil {
		return s.failLocked(invalid("edit_assignment", "no assignment to edit"))
	}
	if !s.state.EditMode.Assignment {
		return s.failLocked(invalid("edit_assignment", "assignment is not in edit mode"))
	}

	edited := *s.state.Assignment
	edited.Text = text
	s.state.Assignment = &edited
	return nil
}

// EditRubricText replaces the raw rubric and parses it again. A rubric that no
// longer parses blocks evaluation until it is fixed.
func (s *Session) EditRubricText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Rubric == nil {
		return s.failLocked(invalid("edit_rubric", "no rubric to edit"))
	}
	if !s.state.EditMode.Rubric {
		return s.failLocked(invalid("edit_rubric", "rubric is not in edit mode"))
	}

	edited := Rubric{
		AssignmentID: s.state.Rubric.AssignmentID,
		Raw:          text,
		Structured:   artifact.ParseRubricResult(text),
	}
	s.state.Rubric = &edited

	if parseErr := edited.Structured.Err(); parseErr != nil {
		s.state.LastError = "Failed to parse rubric: " + parseErr.Error()
		return parseErr
	}
	return nil
}

// EditEvaluationText replaces the raw evaluation; an unparseable edit falls
// back to raw display.
func (s *Session) EditEvaluationText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Evaluation == nil {
		return s.failLocked(invalid("edit_evaluation", "no evaluation to edit"))
	}
	if !s.state.EditMode.Evaluation {
		return s.failLocked(invalid("edit_evaluation", "evaluation is not in edit mode"))
	}

	s.state.Evaluation = &Evaluation{
		Raw:        text,
		Structured: artifact.ParseEvaluationResult(text),
	}
	return nil
}
