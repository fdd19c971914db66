package domain

import (
	"errors"
	"fmt"
)

// ValidationError is malformed caller input. It is never retried.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}

func Validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

var (
	ErrNotFound               = errors.New("not found")
	ErrOutsideAvailability    = errors.New("requested time is outside the pastor's availability")
	ErrSlotTaken              = errors.New("slot is already booked")
	ErrInvalidTransition      = errors.New("status transition not allowed")
	ErrConcurrentModification = errors.New("appointment was modified concurrently")
	ErrIdempotencyConflict    = errors.New("idempotency key was already used for a different request")
	ErrForbidden              = errors.New("not allowed")
	ErrStoreUnavailable       = errors.New("store unavailable")
)

// TransitionError names the rejected transition. It matches
// ErrInvalidTransition under errors.Is.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move appointment from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
