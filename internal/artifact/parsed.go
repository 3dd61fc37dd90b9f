package artifact

import (
	"encoding/json"
	"fmt"
)

// ParseError reports a payload that could not be turned into its structured form.
type ParseError struct {
	Artifact string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Artifact, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseState tags a Parsed value.
type ParseState int

const (
	// NotParsed is the zero state: no raw text has been parsed yet.
	NotParsed ParseState = iota
	// ParsedOK carries a structured value.
	ParsedOK
	// ParseFailed carries the reason the raw text had no structured form.
	ParseFailed
)

func (s ParseState) String() string {
	switch s {
	case ParsedOK:
		return "ok"
	case ParseFailed:
		return "failed"
	default:
		return "none"
	}
}

// Parsed is the tagged outcome of parsing an artifact: exactly one of value
// or error is meaningful, selected by State.
type Parsed[T any] struct {
	state ParseState
	value T
	err   *ParseError
}

// Ok wraps a structured value.
func Ok[T any](value T) Parsed[T] {
	return Parsed[T]{state: ParsedOK, value: value}
}

// Failed wraps a parse failure.
func Failed[T any](err *ParseError) Parsed[T] {
	return Parsed[T]{state: ParseFailed, err: err}
}

// State returns the tag.
func (p Parsed[T]) State() ParseState {
	return p.state
}

// Value returns the structured value when State is ParsedOK.
func (p Parsed[T]) Value() (T, bool) {
	return p.value, p.state == ParsedOK
}

// Err returns the failure when State is ParseFailed.
func (p Parsed[T]) Err() *ParseError {
	if p.state != ParseFailed {
		return nil
	}
	return p.err
}

// MarshalJSON renders {"state": ..., "value"|"error": ...}.
func (p Parsed[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		State string `json:"state"`
		Value *T     `json:"value,omitempty"`
		Error string `json:"error,omitempty"`
	}{State: p.state.String()}

	switch p.state {
	case ParsedOK:
		value := p.value
		out.Value = &value
	case ParseFailed:
		if p.err != nil {
			out.Error = p.err.Error()
		}
	}

	return json.Marshal(out)
}
