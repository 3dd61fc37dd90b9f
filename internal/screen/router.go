package screen

import (
	"slices"

	"github.com/noah-isme/situated-learning/internal/artifact"
	"github.com/noah-isme/situated-learning/internal/workflow"
	"github.com/noah-isme/situated-learning/pkg/backend"
)

// RecentActivityLimit is how many course assignments the dashboard lists.
const RecentActivityLimit = 3

// Display modes of an artifact panel.
const (
	DisplayStructured = "structured"
	DisplayRaw        = "raw"
	DisplayEditor     = "editor"
)

// View is the active screen derived from a snapshot. Exactly one of the
// screen fields is set.
type View struct {
	Screen    workflow.Screen `json:"screen"`
	Stage     workflow.Stage  `json:"stage"`
	Dashboard *DashboardView  `json:"dashboard,omitempty"`
	Create    *CreateView     `json:"create,omitempty"`
	Evaluate  *EvaluateView   `json:"evaluate,omitempty"`
}

// DashboardView lists courses and recent assignments.
type DashboardView struct {
	Courses        []string                   `json:"courses"`
	SelectedCourse string                     `json:"selected_course,omitempty"`
	RecentActivity []backend.CourseAssignment `json:"recent_activity"`
	Loading        bool                       `json:"loading"`
}

// CreateView is the assignment and rubric authoring screen.
type CreateView struct {
	Draft              workflow.Draft    `json:"draft"`
	Domains            []string          `json:"domains"`
	Assignment         *AssignmentPanel  `json:"assignment,omitempty"`
	Rubric             *RubricPanel      `json:"rubric,omitempty"`
	GenerateAssignment workflow.Decision `json:"generate_assignment"`
	GenerateRubric     workflow.Decision `json:"generate_rubric"`
}

// EvaluateView is the grading screen.
type EvaluateView struct {
	CourseAssignments    []backend.CourseAssignment `json:"course_assignments"`
	SelectedAssignmentID string                     `json:"selected_assignment_id,omitempty"`
	Submission           *SubmissionPanel           `json:"submission,omitempty"`
	Rubric               *RubricPanel               `json:"rubric,omitempty"`
	Evaluation           *EvaluationPanel           `json:"evaluation,omitempty"`
	ShowEvaluateAction   bool                       `json:"show_evaluate_action"`
	Evaluate             workflow.Decision          `json:"evaluate"`
}

// AssignmentPanel shows the generated assignment.
type AssignmentPanel struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Display string `json:"display"`
}

// RubricPanel shows a rubric either as categories or as raw text.
type RubricPanel struct {
	Display       string        `json:"display"`
	Raw           string        `json:"raw"`
	Name          string        `json:"name,omitempty"`
	DocType       string        `json:"doc_type,omitempty"`
	Categories    []RubricGroup `json:"categories,omitempty"`
	QuestionCount int           `json:"question_count"`
	ParseError    string        `json:"parse_error,omitempty"`
}

// RubricGroup is one numbered category of questions.
type RubricGroup struct {
	Number    int      `json:"number"`
	Category  string   `json:"category"`
	Questions []string `json:"questions"`
}

// SubmissionPanel describes the attached submission.
type SubmissionPanel struct {
	FileName string `json:"file_name"`
	Size     string `json:"size"`
	MimeType string `json:"mime_type"`
}

// EvaluationPanel shows grading results.
type EvaluationPanel struct {
	Display    string                      `json:"display"`
	Raw        string                      `json:"raw"`
	RubricName string                      `json:"rubric_name,omitempty"`
	Summary    *artifact.EvaluationSummary `json:"summary,omitempty"`
	Categories []CategoryRow               `json:"categories,omitempty"`
	ParseError string                      `json:"parse_error,omitempty"`
}

// CategoryRow is one line of the category breakdown.
type CategoryRow struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Route derives the active view. It reads the snapshot only.
func Route(s workflow.Snapshot) View {
	screen := s.Stage.Screen()
	view := View{Screen: screen, Stage: s.Stage}

	switch screen {
	case workflow.ScreenCreate:
		view.Create = createView(s)
	case workflow.ScreenEvaluate:
		view.Evaluate = evaluateView(s)
	default:
		view.Dashboard = dashboardView(s)
	}

	return view
}

func dashboardView(s workflow.Snapshot) *DashboardView {
	recent := s.CourseAssignments
	if len(recent) > RecentActivityLimit {
		recent = recent[:RecentActivityLimit]
	}

	return &DashboardView{
		Courses:        nonNil(s.Courses),
		SelectedCourse: s.Draft.CourseName,
		RecentActivity: nonNil(slices.Clone(recent)),
		Loading:        s.Loading,
	}
}

func createView(s workflow.Snapshot) *CreateView {
	view := &CreateView{
		Draft:              s.Draft,
		Domains:            slices.Clone(workflow.Domains),
		GenerateAssignment: workflow.CanGenerateAssignment(s),
		GenerateRubric:     workflow.CanGenerateRubric(s),
	}

	if s.Assignment != nil {
		display := DisplayRaw
		if s.EditMode.Assignment {
			display = DisplayEditor
		}
		view.Assignment = &AssignmentPanel{ID: s.Assignment.ID, Text: s.Assignment.Text, Display: display}
	}
	if s.Rubric != nil {
		view.Rubric = rubricPanel(*s.Rubric, s.EditMode.Rubric)
	}

	return view
}

func evaluateView(s workflow.Snapshot) *EvaluateView {
	view := &EvaluateView{
		CourseAssignments:    nonNil(s.CourseAssignments),
		SelectedAssignmentID: s.SelectedAssignmentID,
		Evaluate:             workflow.CanEvaluate(s),
		ShowEvaluateAction:   s.Submission != nil && s.SelectedAssignmentID != "",
	}

	if s.Submission != nil {
		view.Submission = &SubmissionPanel{
			FileName: s.Submission.SourceFileName,
			Size:     s.Submission.SizeKB(),
			MimeType: s.Submission.MimeType,
		}
	}

	var order []string
	if s.Rubric != nil {
		view.Rubric = rubricPanel(*s.Rubric, s.EditMode.Rubric)
		if rubric, ok := s.Rubric.Structured.Value(); ok {
			for _, c := range rubric.Categories {
				order = append(order, c.Category)
			}
		}
	}
	if s.Evaluation != nil {
		view.Evaluation = evaluationPanel(*s.Evaluation, s.EditMode.Evaluation, order)
	}

	return view
}

func rubricPanel(r workflow.Rubric, editing bool) *RubricPanel {
	panel := &RubricPanel{Raw: r.Raw}

	switch r.Structured.State() {
	case artifact.ParsedOK:
		rubric, _ := r.Structured.Value()
		panel.Display = DisplayStructured
		panel.Name = rubric.RubricName
		panel.DocType = rubric.DocType
		panel.QuestionCount = rubric.QuestionCount()
		panel.Categories = make([]RubricGroup, 0, len(rubric.Categories))
		for i, c := range rubric.Categories {
			panel.Categories = append(panel.Categories, RubricGroup{
				Number:    i + 1,
				Category:  c.Category,
				Questions: nonNil(slices.Clone(c.Questions)),
			})
		}
	case artifact.ParseFailed:
		panel.Display = DisplayRaw
		panel.ParseError = r.Structured.Err().Error()
	case artifact.NotParsed:
		panel.Display = DisplayRaw
	}

	if editing {
		panel.Display = DisplayEditor
	}
	return panel
}

// evaluationPanel lists breakdown rows in rubric order; categories the rubric
// does not name follow alphabetically.
func evaluationPanel(e workflow.Evaluation, editing bool, order []string) *EvaluationPanel {
	panel := &EvaluationPanel{Raw: e.Raw}

	switch e.Structured.State() {
	case artifact.ParsedOK:
		evaluation, _ := e.Structured.Value()
		summary := evaluation.Summary
		panel.Display = DisplayStructured
		panel.RubricName = evaluation.RubricName
		panel.Summary = &summary
		panel.Categories = categoryRows(evaluation, order)
	case artifact.ParseFailed:
		panel.Display = DisplayRaw
		panel.ParseError = e.Structured.Err().Error()
	case artifact.NotParsed:
		panel.Display = DisplayRaw
	}

	if editing {
		panel.Display = DisplayEditor
	}
	return panel
}

func categoryRows(e artifact.StructuredEvaluation, order []string) []CategoryRow {
	rows := make([]CategoryRow, 0, len(e.CategoryBreakdown))
	seen := make(map[string]bool, len(e.CategoryBreakdown))

	add := func(name string) {
		score, ok := e.CategoryBreakdown[name]
		if !ok || seen[name] {
			return
		}
		seen[name] = true
		rows = append(rows, CategoryRow{
			Name:       name,
			Score:      score.Score,
			Total:      score.Total,
			Percentage: score.Percentage,
		})
	}

	for _, name := range order {
		add(name)
	}
	for _, name := range e.CategoryNames() {
		add(name)
	}
	return rows
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
