package graph

import (
	"errors"
	"fmt"
)

// ErrorKind classifies errors returned at the graph library boundary.
type ErrorKind string

const (
	// ErrNotFound means a node, assertion, edge or log entry is missing.
	ErrNotFound ErrorKind = "not_found"

	// ErrAlreadyExists means an ID or edge is already taken.
	ErrAlreadyExists ErrorKind = "already_exists"

	// ErrInvalidState means an operation was applied to the wrong node
	// kind or a required precondition does not hold.
	ErrInvalidState ErrorKind = "invalid_state"

	// ErrCycle means a dependency loop was detected.
	ErrCycle ErrorKind = "cycle"
)

// Error is the single error type returned by the graph engine. Callers
// dispatch on Kind; protocol layers adapt it to their own conventions.
type Error struct {
	Kind ErrorKind
	Msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NotFoundf builds an ErrNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// AlreadyExistsf builds an ErrAlreadyExists error.
func AlreadyExistsf(format string, args ...any) *Error {
	return &Error{Kind: ErrAlreadyExists, Msg: fmt.Sprintf(format, args...)}
}

// InvalidStatef builds an ErrInvalidState error.
func InvalidStatef(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidState, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a graph Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
