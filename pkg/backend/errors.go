package backend

import (
	"errors"
	"fmt"
)

// TransportError is the single failure channel of the client. Status is zero
// when the request never produced an HTTP response.
type TransportError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: API error: %d %s", e.Op, e.Status, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err carries a TransportError.
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
