package workflow

import (
	"regexp"
	"strings"

	"github.com/noah-isme/situated-learning/internal/artifact"
	"github.com/noah-isme/situated-learning/internal/feedback"
	"github.com/noah-isme/situated-learning/internal/submission"
	"github.com/noah-isme/situated-learning/pkg/backend"
)

// Domains lists the industry contexts an assignment can be situated in.
var Domains = []string{"Technology Industry", "Manufacturing", "Finance", "Healthcare", "Education"}

var courseCodePattern = regexp.MustCompile(`\(([^)]+)\)`)

// CourseCode extracts the parenthesised code from a course title.
func CourseCode(title string) (string, bool) {
	match := courseCodePattern.FindStringSubmatch(title)
	if len(match) < 2 || match[1] == "" {
		return "", false
	}
	return match[1], true
}

// Draft is the instructor's input for assignment generation.
type Draft struct {
	CourseName         string `json:"course_name" validate:"max=300"`
	CourseCode         string `json:"course_code" validate:"max=50"`
	InstructorName     string `json:"instructor_name" validate:"max=200"`
	Domain             string `json:"domain" validate:"max=100"`
	Topic              string `json:"topic" validate:"max=300"`
	CustomInstructions string `json:"custom_instructions" validate:"max=10000"`
}

// DraftField names one editable Draft field.
type DraftField string

const (
	FieldCourseName         DraftField = "course_name"
	FieldCourseCode         DraftField = "course_code"
	FieldInstructorName     DraftField = "instructor_name"
	FieldDomain             DraftField = "domain"
	FieldTopic              DraftField = "topic"
	FieldCustomInstructions DraftField = "custom_instructions"
)

func (d Draft) with(field DraftField, value string) (Draft, bool) {
	switch field {
	case FieldCourseName:
		d.CourseName = value
	case FieldCourseCode:
		d.CourseCode = value
	case FieldInstructorName:
		d.InstructorName = value
	case FieldDomain:
		d.Domain = value
	case FieldTopic:
		d.Topic = value
	case FieldCustomInstructions:
		d.CustomInstructions = value
	default:
		return d, false
	}
	return d, true
}

func validDomain(domain string) bool {
	if domain == "" {
		return true
	}
	for _, d := range Domains {
		if d == domain {
			return true
		}
	}
	return false
}

// Assignment is a generated assignment. Text may be edited locally.
type Assignment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Rubric is a generated rubric with its parsed form.
type Rubric struct {
	AssignmentID string                                     `json:"assignment_id"`
	Raw          string                                     `json:"raw"`
	Structured   artifact.Parsed[artifact.StructuredRubric] `json:"structured"`
}

// Evaluation is a graded submission with its parsed form, when one exists.
type Evaluation struct {
	Raw        string                                         `json:"raw"`
	Structured artifact.Parsed[artifact.StructuredEvaluation] `json:"structured"`
}

// EditMode tracks which artifacts are open for local editing.
type EditMode struct {
	Assignment bool `json:"assignment"`
	Rubric     bool `json:"rubric"`
	Evaluation bool `json:"evaluation"`
}

// Gates is the advisory view of the stage gates.
type Gates struct {
	GenerateAssignment Decision `json:"generate_assignment"`
	GenerateRubric     Decision `json:"generate_rubric"`
	Evaluate           Decision `json:"evaluate"`
}

// Snapshot is a read-only copy of a session. Every field has a usable zero
// value. Artifact pointers are never mutated in place once published.
type Snapshot struct {
	ID                   string                     `json:"id"`
	Stage                Stage                      `json:"stage"`
	Screen               Screen                     `json:"screen"`
	Courses              []string                   `json:"courses"`
	CourseAssignments    []backend.CourseAssignment `json:"course_assignments"`
	SelectedAssignmentID string                     `json:"selected_assignment_id,omitempty"`
	Draft                Draft                      `json:"draft"`
	Assignment           *Assignment                `json:"assignment,omitempty"`
	Rubric               *Rubric                    `json:"rubric,omitempty"`
	Submission           *submission.Submission     `json:"submission,omitempty"`
	Evaluation           *Evaluation                `json:"evaluation,omitempty"`
	Busy                 bool                       `json:"busy"`
	BusyAction           string                     `json:"busy_action,omitempty"`
	Loading              bool                       `json:"loading"`
	LastError            string                     `json:"last_error,omitempty"`
	EditMode             EditMode                   `json:"edit_mode"`
	Feedback             *feedback.Prompt           `json:"feedback,omitempty"`
	Gates                Gates                      `json:"gates"`
}

// StructuredRubric returns the parsed rubric if one is available.
func (s Snapshot) StructuredRubric() (artifact.StructuredRubric, bool) {
	if s.Rubric == nil {
		return artifact.StructuredRubric{}, false
	}
	return s.Rubric.Structured.Value()
}

func hasText(value string) bool {
	return strings.TrimSpace(value) != ""
}
