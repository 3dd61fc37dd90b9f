package workflow

import "strings"

const busyReason = "another action is in progress"

// Decision is the outcome of a stage gate.
type Decision struct {
	Allowed bool     `json:"allowed"`
	Reason  string   `json:"reason,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Busy    bool     `json:"busy,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

// deny states the gate's own reason first and appends the busy reason when
// another action is running.
func deny(s Snapshot, missing []string, reason string) Decision {
	var parts []string
	switch {
	case reason != "":
		parts = append(parts, reason)
	case len(missing) > 0:
		parts = append(parts, "missing required data: "+strings.Join(missing, ", "))
	}
	if s.Busy {
		parts = append(parts, busyReason)
	}
	return Decision{Missing: missing, Busy: s.Busy, Reason: strings.Join(parts, "; ")}
}

// CanGenerateAssignment requires a course name and a topic in the draft.
func CanGenerateAssignment(s Snapshot) Decision {
	var missing []string
	if !hasText(s.Draft.CourseName) {
		missing = append(missing, "course name")
	}
	if !hasText(s.Draft.Topic) {
		missing = append(missing, "topic")
	}
	if len(missing) > 0 || s.Busy {
		return deny(s, missing, "")
	}
	return allow()
}

// CanGenerateRubric requires a generated assignment id.
func CanGenerateRubric(s Snapshot) Decision {
	if s.Assignment == nil || !hasText(s.Assignment.ID) {
		return deny(s, []string{"assignment id"}, "no assignment id available, generate an assignment first")
	}
	if s.Busy {
		return deny(s, nil, "")
	}
	return allow()
}

// CanEvaluate requires a structured rubric, assignment text and submission text
// at the same time. The reason names exactly the missing items.
func CanEvaluate(s Snapshot) Decision {
	var missing []string
	if _, ok := s.StructuredRubric(); !ok {
		missing = append(missing, "rubric")
	}
	if s.Assignment == nil || !hasText(s.Assignment.Text) {
		missing = append(missing, "assignment")
	}
	if s.Submission == nil || !hasText(s.Submission.Text) {
		missing = append(missing, "submission")
	}
	if len(missing) > 0 || s.Busy {
		return deny(s, missing, "")
	}
	return allow()
}

func evaluateGates(s Snapshot) Gates {
	return Gates{
		GenerateAssignment: CanGenerateAssignment(s),
		GenerateRubric:     CanGenerateRubric(s),
		Evaluate:           CanEvaluate(s),
	}
}
