package workflow

// Stage is the position of a session in the workflow.
type Stage string

const (
	StageDashboard       Stage = "dashboard"
	StageCreating        Stage = "creating"
	StageAssignmentReady Stage = "assignment_ready"
	StageRubricReady     Stage = "rubric_ready"
	StageEvaluating      Stage = "evaluating"
	StageEvaluationReady Stage = "evaluation_ready"
)

// Screen is the view a stage is shown on.
type Screen string

const (
	ScreenDashboard Screen = "dashboard"
	ScreenCreate    Screen = "create"
	ScreenEvaluate  Screen = "evaluate"
)

// ParseScreen validates a screen name.
func ParseScreen(value string) (Screen, bool) {
	switch Screen(value) {
	case ScreenDashboard, ScreenCreate, ScreenEvaluate:
		return Screen(value), true
	default:
		return "", false
	}
}

// Screen maps the stage onto its view.
func (s Stage) Screen() Screen {
	switch s {
	case StageCreating, StageAssignmentReady, StageRubricReady:
		return ScreenCreate
	case StageEvaluating, StageEvaluationReady:
		return ScreenEvaluate
	default:
		return ScreenDashboard
	}
}

// creatingStage is the furthest create-branch stage the artifacts support.
func creatingStage(s Snapshot) Stage {
	switch {
	case s.Assignment != nil && s.Rubric != nil:
		return StageRubricReady
	case s.Assignment != nil:
		return StageAssignmentReady
	default:
		return StageCreating
	}
}

func evaluatingStage(s Snapshot) Stage {
	if s.Evaluation != nil {
		return StageEvaluationReady
	}
	return StageEvaluating
}

// reconcileStage keeps the stage within its current branch while artifacts
// appear or are invalidated. It never moves the session to another screen.
func reconcileStage(s Snapshot) Stage {
	switch s.Stage.Screen() {
	case ScreenCreate:
		return creatingStage(s)
	case ScreenEvaluate:
		return evaluatingStage(s)
	default:
		return StageDashboard
	}
}

// navigate resolves an explicit navigation request. Creating and Evaluating are
// entered from the dashboard only; any screen can return to the dashboard.
func navigate(s Snapshot, target Screen) (Stage, bool) {
	current := s.Stage.Screen()
	switch {
	case target == ScreenDashboard:
		return StageDashboard, true
	case target == current:
		return s.Stage, true
	case current != ScreenDashboard:
		return s.Stage, false
	case target == ScreenCreate:
		return creatingStage(s), true
	case target == ScreenEvaluate:
		return evaluatingStage(s), true
	default:
		return s.Stage, false
	}
}
