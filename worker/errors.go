package worker

import "errors"

var (
	// ErrMissingSQL is returned for exec and each requests without SQL text.
	ErrMissingSQL = errors.New("worker: missing query string")
	// ErrUnknownAction is returned for a request whose action is not
	// recognized.
	ErrUnknownAction = errors.New("worker: invalid action")
)

// emitError marks a failure to deliver a response, as opposed to a failure
// of the request itself.
type emitError struct{ err error }

func (e *emitError) Error() string { return e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }
