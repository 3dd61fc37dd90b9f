package workflow

import (
	"errors"
	"fmt"
)

// ErrEmptyEvaluation indicates the evaluation service answered without content.
var ErrEmptyEvaluation = errors.New("no evaluation data received from server")

// ValidationError reports a denied gate or an invalid input. It never reaches
// the transport.
type ValidationError struct {
	Action  string
	Reason  string
	Missing []string
	Busy    bool
}

func (e *ValidationError) Error() string {
	if e.Action == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

func gateError(action string, d Decision) *ValidationError {
	return &ValidationError{
		Action:  action,
		Reason:  d.Reason,
		Missing: d.Missing,
		Busy:    d.Busy && len(d.Missing) == 0,
	}
}

func invalid(action, format string, args ...any) *ValidationError {
	return &ValidationError{Action: action, Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
