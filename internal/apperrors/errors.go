package apperrors

import (
	"errors"
	"fmt"
)

// Domain error sentinels. Callers classify with errors.Is; anything that
// does not match one of these is treated as an infrastructure failure.
var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrStateConflict marks mutations forbidden by the order's status.
	ErrStateConflict = errors.New("state conflict")
	// ErrInvariantViolation marks operations that would break a ledger invariant.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrValidation marks malformed input, rejected before any mutation.
	ErrValidation = errors.New("invalid argument")
)

type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "domain error"
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return e != nil && e.Kind == target }

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Err: fmt.Errorf(format, args...)}
}

func StateConflictf(format string, args ...any) *Error {
	return &Error{Kind: ErrStateConflict, Err: fmt.Errorf(format, args...)}
}

func InvariantViolationf(format string, args ...any) *Error {
	return &Error{Kind: ErrInvariantViolation, Err: fmt.Errorf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Err: fmt.Errorf(format, args...)}
}

// IsDomain reports whether err is one of the recoverable domain errors as
// opposed to an unexpected infrastructure failure.
func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStateConflict) ||
		errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, ErrValidation)
}
