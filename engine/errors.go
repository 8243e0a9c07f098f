package engine

import (
	"errors"
	"fmt"

	"github.com/viant/sqlite-worker/value"
)

var (
	// ErrDatabaseClosed is returned by operations on a closed Database.
	ErrDatabaseClosed = errors.New("engine: database closed")
	// ErrStatementClosed is returned by operations on a freed Statement.
	ErrStatementClosed = errors.New("engine: statement closed")
	// ErrNothingToPrepare is returned by Prepare when the text holds no statement.
	ErrNothingToPrepare = errors.New("engine: nothing to prepare")
	// ErrMixedParams is returned when one bind call carries both positional
	// and named parameters.
	ErrMixedParams = errors.New("engine: cannot mix positional and named parameters")
)

// Error is a non-zero status reported by the engine together with the
// engine's current error message.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Msg, e.Code)
}

// OpenError reports a failed native open of the backing store.
type OpenError struct {
	Path string
	Code int
	Msg  string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("engine: cannot open %s: %s (%d)", e.Path, e.Msg, e.Code)
}

// FunctionError wraps the failure of a user function callback. It is
// reported to the engine as the function's error result and surfaces to the
// caller as the *Error of the statement that invoked the function.
type FunctionError struct {
	Name string
	Err  error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("engine: function %s: %v", e.Name, e.Err)
}

func (e *FunctionError) Unwrap() error { return e.Err }

// IsUsage reports whether err is a caller mistake rather than an engine or
// allocation failure.
func IsUsage(err error) bool {
	var unsupported *value.UnsupportedTypeError
	switch {
	case errors.Is(err, ErrDatabaseClosed),
		errors.Is(err, ErrStatementClosed),
		errors.Is(err, ErrNothingToPrepare),
		errors.Is(err, ErrMixedParams),
		errors.As(err, &unsupported):
		return true
	}
	return false
}
