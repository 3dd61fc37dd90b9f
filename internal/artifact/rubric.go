package artifact

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const rubricSchemaSource = `{
  "type": "object",
  "required": ["categories"],
  "properties": {
    "rubric_name": {"type": "string"},
    "doc_type": {"type": "string"},
    "categories": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["category", "questions"],
        "properties": {
          "category": {"type": "string"},
          "questions": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

var rubricSchema = jsonschema.MustCompileString("rubric.schema.json", rubricSchemaSource)

// StructuredRubric is the parsed form of a generated rubric.
type StructuredRubric struct {
	RubricName string           `json:"rubric_name"`
	DocType    string           `json:"doc_type"`
	Categories []RubricCategory `json:"categories"`
}

// RubricCategory groups the questions graded under one heading.
type RubricCategory struct {
	Category  string   `json:"category"`
	Questions []string `json:"questions"`
}

// QuestionCount returns the number of questions across all categories.
func (r StructuredRubric) QuestionCount() int {
	total := 0
	for _, c := range r.Categories {
		total += len(c.Questions)
	}
	return total
}

// ParseRubric decodes a rubric payload. Anything that is not a JSON object with
// a well-formed categories list is a ParseError.
func ParseRubric(raw string) (StructuredRubric, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StructuredRubric{}, &ParseError{Artifact: "rubric", Reason: "empty payload"}
	}

	var doc any
	decoder := json.NewDecoder(strings.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return StructuredRubric{}, &ParseError{Artifact: "rubric", Reason: "invalid json", Err: err}
	}
	if decoder.More() {
		return StructuredRubric{}, &ParseError{Artifact: "rubric", Reason: "trailing data after json value"}
	}

	if err := rubricSchema.Validate(doc); err != nil {
		return StructuredRubric{}, &ParseError{Artifact: "rubric", Reason: "unexpected rubric shape", Err: err}
	}

	var rubric StructuredRubric
	if err := json.Unmarshal([]byte(trimmed), &rubric); err != nil {
		return StructuredRubric{}, &ParseError{Artifact: "rubric", Reason: "invalid json", Err: err}
	}

	return rubric, nil
}

// ParseRubricResult is ParseRubric folded into a tagged result.
func ParseRubricResult(raw string) Parsed[StructuredRubric] {
	rubric, err := ParseRubric(raw)
	if err != nil {
		return Failed[StructuredRubric](asParseError(err, "rubric"))
	}
	return Ok(rubric)
}

// EncodeRubric serialises a structured rubric back to its wire form. Nil
// category and question lists are written as empty arrays so the output
// always parses.
func EncodeRubric(rubric StructuredRubric) (string, error) {
	rubric = rubric.withEmptyLists()

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(rubric); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func (r StructuredRubric) withEmptyLists() StructuredRubric {
	categories := make([]RubricCategory, 0, len(r.Categories))
	for _, c := range r.Categories {
		if c.Questions == nil {
			c.Questions = []string{}
		}
		categories = append(categories, c)
	}
	r.Categories = categories
	return r
}

func asParseError(err error, kind string) *ParseError {
	if parseErr, ok := err.(*ParseError); ok {
		return parseErr
	}
	return &ParseError{Artifact: kind, Reason: err.Error(), Err: err}
}
