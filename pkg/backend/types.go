package backend

import "encoding/json"

// CoursesResponse is returned by GET /courses/all.
type CoursesResponse struct {
	Courses []string `json:"courses"`
}

// CourseAssignment is one entry of GET /assignments/by_course_title/{title}.
type CourseAssignment struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Topic string `json:"topic,omitempty"`
}

// UnmarshalJSON accepts both numeric and string identifiers.
func (a *CourseAssignment) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    json.RawMessage `json:"id"`
		Title string          `json:"title"`
		Topic string          `json:"topic"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.ID = identifierString(raw.ID)
	a.Title = raw.Title
	a.Topic = raw.Topic
	return nil
}

// GenerateAssignmentRequest is the body of POST /generate_from_course_title.
type GenerateAssignmentRequest struct {
	CourseTitle       string `json:"course_title"`
	Topic             string `json:"topic"`
	UserDomain        string `json:"user_domain"`
	ExtraInstructions string `json:"extra_instructions"`
}

// GenerateAssignmentResponse carries the generated prose and its backend id.
type GenerateAssignmentResponse struct {
	GeneratedAssignment string `json:"generated_assignment"`
	AssignmentID        string `json:"assignment_id"`
}

// UnmarshalJSON accepts both numeric and string assignment ids.
func (r *GenerateAssignmentResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		GeneratedAssignment string          `json:"generated_assignment"`
		AssignmentID        json.RawMessage `json:"assignment_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.GeneratedAssignment = raw.GeneratedAssignment
	r.AssignmentID = identifierString(raw.AssignmentID)
	return nil
}

// GenerateRubricResponse wraps the JSON-encoded rubric string.
type GenerateRubricResponse struct {
	Rubric string `json:"rubric"`
}

// EvaluateRequest is the body of POST /api/evaluate_assignment. Rubric holds the
// structured rubric as produced by the artifact parser.
type EvaluateRequest struct {
	Rubric                any    `json:"rubric"`
	AssignmentDescription string `json:"assignment_description"`
	Submission            string `json:"submission"`
}

// EvaluateResponse is the undecoded evaluation payload; the service may answer
// with a JSON string or a JSON object.
type EvaluateResponse struct {
	Body json.RawMessage
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	FeedbackType     string `json:"feedback_type"`
	GeneratedContent string `json:"generated_content"`
	Rating           int    `json:"rating"`
	Suggestion       string `json:"suggestion,omitempty"`
}

// FeedbackRecord is a stored feedback entry returned by GET /feedback.
type FeedbackRecord struct {
	ID               any    `json:"id,omitempty"`
	FeedbackType     string `json:"feedback_type"`
	GeneratedContent string `json:"generated_content"`
	Rating           int    `json:"rating"`
	Suggestion       string `json:"suggestion,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// Status is the loosely typed payload of the health and status endpoints.
type Status map[string]any

func identifierString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return ""
}
