/*
errors.go - Centralized error types for the shift engine

PURPOSE:
  All error kinds in one place. Registration and lifecycle operations
  surface these synchronously; the API layer maps them to HTTP status
  codes. Domain packages wrap them with context using fmt.Errorf("%w").

ERROR KINDS:
  Unauthorized   worker has no active assignment for the shift kind
  AlreadyExists  a shift already exists for (worker, day)
  InvalidData    unknown or inactive shift kind, malformed input
  NotFound       operating on a nonexistent record
  Conflict       illegal state transition
  InvalidTime    end at or before start
  SystemError    storage failure

STORE ERRORS:
  ErrDuplicateIdempotencyKey and ErrAlreadySettled are produced by storage
  uniqueness constraints and are expected on retries and races. Callers
  treat them as "already done", not as failures.

SEE ALSO:
  - shifts/registrar.go, shifts/lifecycle.go: main producers
  - api/handlers.go: HTTP mapping
*/
package generic

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrUnauthorized  = errors.New("worker is not assigned to this shift kind")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidData   = errors.New("invalid data")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("illegal state transition")
	ErrInvalidTime   = errors.New("invalid time")
	ErrSystem        = errors.New("system error")

	// ErrDuplicateIdempotencyKey is returned when a ledger entry with the same
	// idempotency key already exists. Expected on retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrAlreadySettled is returned when a settlement claim for a shift exists.
	ErrAlreadySettled = errors.New("shift already settled")
)

// Kind is the error taxonomy exposed to callers.
type Kind string

const (
	KindUnauthorized  Kind = "Unauthorized"
	KindAlreadyExists Kind = "AlreadyExists"
	KindInvalidData   Kind = "InvalidData"
	KindNotFound      Kind = "NotFound"
	KindConflict      Kind = "Conflict"
	KindInvalidTime   Kind = "InvalidTime"
	KindSystemError   Kind = "SystemError"
)

// KindOf classifies err. Unknown errors are SystemError.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrDuplicateIdempotencyKey), errors.Is(err, ErrAlreadySettled):
		return KindAlreadyExists
	case errors.Is(err, ErrInvalidData):
		return KindInvalidData
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidTime):
		return KindInvalidTime
	default:
		return KindSystemError
	}
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError reports a state transition the state machine refuses.
type TransitionError struct {
	ShiftID ShiftID
	From    string
	To      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("shift %s: cannot transition from %s to %s", e.ShiftID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrConflict }

// InvalidTimeError reports an end time at or before the start time.
type InvalidTimeError struct {
	ShiftID ShiftID
	Start   time.Time
	End     time.Time
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("shift %s: end %s is not after start %s",
		e.ShiftID, e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
}

func (e *InvalidTimeError) Unwrap() error { return ErrInvalidTime }

// SystemError wraps a storage failure while keeping the cause reachable.
func SystemError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrSystem, err)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the caller's request.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindUnauthorized, KindAlreadyExists, KindInvalidData, KindConflict, KindInvalidTime:
		return true
	}
	return false
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
