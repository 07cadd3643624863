package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies failures the way handlers and logs need to tell them apart.
type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindConflict   Kind = "CONFLICT"
	KindNotFound   Kind = "NOT_FOUND"
	KindState      Kind = "STATE_ERROR"
	KindCode       Kind = "CODE_ERROR"
	KindAnomaly    Kind = "INGEST_ANOMALY"
	KindPayment    Kind = "PAYMENT_ERROR"
	KindInternal   Kind = "INTERNAL"
)

// Error carries a kind, a client-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a typed error with a safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and safe message to an underlying cause.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Anomaly(format string, args ...any) *Error {
	return New(KindAnomaly, fmt.Sprintf(format, args...))
}

func Internal(err error) *Error {
	return Wrap(err, KindInternal, "internal error")
}

// KindOf extracts the kind from any error in the chain, defaulting to internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	var stateErr *StateError
	if errors.As(err, &stateErr) {
		return KindState
	}
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return KindCode
	}
	return KindInternal
}
