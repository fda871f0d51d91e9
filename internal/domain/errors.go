package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error classes. Concrete errors below match one of these through errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrOverlap     = errors.New("time range overlaps an existing reservation")
	ErrUnavailable = errors.New("store unavailable")
)

var (
	ErrSpotNotFound        = classified(ErrNotFound, "spot not found")
	ErrReservationNotFound = classified(ErrNotFound, "reservation not found")
	ErrUserNotFound        = classified(ErrNotFound, "user not found")
	ErrSpotNumberTaken     = classified(ErrConflict, "spot number already exists")
	ErrUsernameTaken       = classified(ErrConflict, "username already exists")
	ErrSpotInactive        = errors.New("spot is inactive")
	ErrInvalidWindow       = &ValidationError{Field: "end_time", Message: "end_time must be after start_time"}
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
)

type classifiedError struct {
	class error
	msg   string
}

func classified(class error, msg string) error {
	return &classifiedError{class: class, msg: msg}
}

func (e *classifiedError) Error() string { return e.msg }

func (e *classifiedError) Unwrap() error { return e.class }

// ValidationError reports malformed caller input. It is never worth retrying.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// OverlapError is returned when an admission collides with an existing reservation.
// Conflict is nil when the collision was only detected by the store guard.
type OverlapError struct {
	Conflict *Reservation
}

func (e *OverlapError) Error() string {
	if e.Conflict == nil {
		return ErrOverlap.Error()
	}
	return fmt.Sprintf("%s %s [%s, %s)",
		ErrOverlap.Error(),
		e.Conflict.ID,
		e.Conflict.StartTime.UTC().Format(time.RFC3339),
		e.Conflict.EndTime.UTC().Format(time.RFC3339),
	)
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}

// UnavailableError wraps a store or transport failure that callers may retry with backoff.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrUnavailable.Error(), e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Kind is a stable label for an error class, shared by logs and transports.
type Kind string

const (
	KindNone         Kind = ""
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInactiveSpot Kind = "inactive_spot"
	KindOverlap      Kind = "overlap"
	KindUnavailable  Kind = "unavailable"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrSpotInactive):
		return KindInactiveSpot
	case errors.Is(err, ErrOverlap):
		return KindOverlap
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	}
	return KindInternal
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return KindOf(err) == KindUnavailable
}
