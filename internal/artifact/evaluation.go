package artifact

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// StructuredEvaluation is the parsed form of an evaluation payload.
type StructuredEvaluation struct {
	RubricName        string                   `json:"rubric_name"`
	Summary           EvaluationSummary        `json:"summary"`
	CategoryBreakdown map[string]CategoryScore `json:"category_breakdown"`
}

// EvaluationSummary aggregates the whole submission.
type EvaluationSummary struct {
	TotalScore     float64 `json:"total_score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
}

// CategoryScore is the per-category breakdown entry.
type CategoryScore struct {
	Score      float64 `json:"score"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
}

// CategoryNames returns breakdown keys in a stable order.
func (e StructuredEvaluation) CategoryNames() []string {
	names := make([]string, 0, len(e.CategoryBreakdown))
	for name := range e.CategoryBreakdown {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type wireCategoryScore struct {
	Score      float64  `json:"score"`
	Total      float64  `json:"total"`
	Percentage *float64 `json:"percentage"`
}

type wireEvaluation struct {
	RubricName string `json:"rubric_name"`
	Summary    *struct {
		TotalScore     float64  `json:"total_score"`
		TotalQuestions int      `json:"total_questions"`
		Percentage     *float64 `json:"percentage"`
	} `json:"summary"`
	CategoryBreakdown map[string]wireCategoryScore `json:"category_breakdown"`
}

// ParseEvaluation decodes an evaluation payload. Percentages supplied by the
// backend are kept as-is; a missing one is derived from score and total.
func ParseEvaluation(raw string) (StructuredEvaluation, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StructuredEvaluation{}, &ParseError{Artifact: "evaluation", Reason: "empty payload"}
	}
	if !strings.HasPrefix(trimmed, "{") {
		return StructuredEvaluation{}, &ParseError{Artifact: "evaluation", Reason: "payload is not a json object"}
	}

	var wire wireEvaluation
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return StructuredEvaluation{}, &ParseError{Artifact: "evaluation", Reason: "invalid json", Err: err}
	}
	if wire.Summary == nil && len(wire.CategoryBreakdown) == 0 {
		return StructuredEvaluation{}, &ParseError{Artifact: "evaluation", Reason: "missing summary and category breakdown"}
	}

	out := StructuredEvaluation{
		RubricName:        wire.RubricName,
		CategoryBreakdown: make(map[string]CategoryScore, len(wire.CategoryBreakdown)),
	}

	var scoreSum, totalSum float64
	for name, entry := range wire.CategoryBreakdown {
		percentage := ComputePercentage(entry.Score, entry.Total)
		if entry.Percentage != nil {
			percentage = *entry.Percentage
		}
		out.CategoryBreakdown[name] = CategoryScore{
			Score:      entry.Score,
			Total:      entry.Total,
			Percentage: percentage,
		}
		scoreSum += entry.Score
		totalSum += entry.Total
	}

	if wire.Summary != nil {
		out.Summary.TotalScore = wire.Summary.TotalScore
		out.Summary.TotalQuestions = wire.Summary.TotalQuestions
		if wire.Summary.Percentage != nil {
			out.Summary.Percentage = *wire.Summary.Percentage
		} else {
			out.Summary.Percentage = ComputePercentage(scoreSum, totalSum)
		}
	} else {
		out.Summary = EvaluationSummary{
			TotalScore: scoreSum,
			Percentage: ComputePercentage(scoreSum, totalSum),
		}
	}

	return out, nil
}

// ParseEvaluationResult is ParseEvaluation folded into a tagged result.
func ParseEvaluationResult(raw string) Parsed[StructuredEvaluation] {
	evaluation, err := ParseEvaluation(raw)
	if err != nil {
		return Failed[StructuredEvaluation](asParseError(err, "evaluation"))
	}
	return Ok(evaluation)
}

// percentageScale snaps the ratio to nine decimals before rounding, so a
// decimal half such as 28.5 stored as 28.499999999999996 still rounds up.
const percentageScale = 1e9

// ComputePercentage returns round-half-up(100*score/total); a zero total yields 0.
func ComputePercentage(score, total float64) float64 {
	if total == 0 {
		return 0
	}
	ratio := math.Round(100*score/total*percentageScale) / percentageScale
	return math.Floor(ratio + 0.5)
}

// NormalizeEvaluationPayload turns the evaluation response body into display
// text: a JSON string is unquoted, any other JSON value is indented by two
// spaces, and bytes that are not JSON are returned verbatim.
func NormalizeEvaluationPayload(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, trimmed, "", "  "); err != nil {
		return string(trimmed)
	}
	return out.String()
}
