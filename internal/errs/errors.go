// Package errs provides the unified error type used across all of askdb.
//
// Every subsystem (database drivers, the model client, the agent loop,
// sessions, the transcript archive) wraps its native errors into *errs.Error
// before returning them. Callers use the Is* predicates to decide whether an
// error halts a session, is fed back to the model, or degrades an answer.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindQueryFailed, "query failed", pgErr)
//
//	// In a caller, check the kind:
//	if errs.IsInvalidInput(err) {
//	    http.Error(w, err.Error(), http.StatusBadRequest)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no session, no object
	ErrKindConnectionFailed         // cannot reach or authenticate to the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL syntax or runtime execution error
	ErrKindInvalidInput             // bad configuration or arguments from the caller
	ErrKindPermissionDenied         // access denied by the backend
	ErrKindModelFailed              // the language model call failed after retry
	ErrKindBudgetExceeded           // the agent ran out of steps
	ErrKindBusy                     // a session is already answering a question
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindModelFailed:
		return "model_failed"
	case ErrKindBudgetExceeded:
		return "budget_exceeded"
	case ErrKindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all askdb subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a SQL execution failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input or configuration.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsModelFailed reports whether err came from the language model boundary.
func IsModelFailed(err error) bool {
	return KindOf(err) == ErrKindModelFailed
}

// IsBudgetExceeded reports whether the agent ran out of steps.
func IsBudgetExceeded(err error) bool {
	return KindOf(err) == ErrKindBudgetExceeded
}

// IsBusy reports whether a session rejected a concurrent question.
func IsBusy(err error) bool {
	return KindOf(err) == ErrKindBusy
}

// IsRecoverable reports whether err should be shown to the model as an
// observation instead of ending the question.
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case ErrKindQueryFailed, ErrKindPermissionDenied, ErrKindInvalidInput, ErrKindNotFound, ErrKindTimeout:
		return true
	}
	return false
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
