package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how callers should react to it.
// The kind is assigned at the raise site, never inferred from the message.
type Kind int

const (
	// KindInput marks malformed or missing caller arguments.
	// Surfaced immediately, never retried.
	KindInput Kind = iota
	// KindRecord marks a per-record validation failure.
	// Collected into the outcome, does not abort the batch.
	KindRecord
	// KindTransient marks an operational failure that may succeed on retry
	// (cache I/O, batch apply, connection loss).
	KindTransient
	// KindFatal marks a system-level failure (corrupted rule set, storage
	// corruption). Always re-raised, never downgraded to a warning.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindRecord:
		return "record"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Code is a stable machine-readable error code carried alongside the kind.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeValidationTimeout Code = "VALIDATION_TIMEOUT"
	CodeTimeout           Code = "TIMEOUT_ERROR"
	CodeStorage           Code = "STORAGE_ERROR"
	CodeConnection        Code = "CONNECTION_ERROR"
	CodeParse             Code = "PARSE_ERROR"
	CodeConfig            Code = "CONFIG_ERROR"
	CodePermission        Code = "PERMISSION_ERROR"
	CodeOperation         Code = "OPERATION_ERROR"
	CodeBook              Code = "BOOK_ERROR"
	CodeUnknown           Code = "UNKNOWN_ERROR"
)

// Error is the typed error used across the sync pipeline.
type Error struct {
	Kind  Kind
	Code  Code
	Field string
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s [%s] %s: %s", e.Kind, e.Code, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithField returns a copy of the error tagged with a field name.
func (e *Error) WithField(field string) *Error {
	clone := *e
	clone.Field = field
	return &clone
}

// Input creates an input error (bad arguments, never retried).
func Input(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindInput, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Record creates a per-record validation error.
func Record(code Code, field, format string, args ...any) *Error {
	return &Error{Kind: KindRecord, Code: code, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Transient creates a retryable operational error wrapping its cause.
func Transient(code Code, cause error, format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Code: code, Msg: fmt.Sprintf(format, args...), cause: cause}
}

// Fatal creates a non-recoverable system error wrapping its cause.
func Fatal(code Code, cause error, format string, args ...any) *Error {
	return &Error{Kind: KindFatal, Code: code, Msg: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf returns the kind of err, or KindTransient for untyped errors.
// Untyped errors come from external collaborators (drivers, storage SDKs)
// where a retry is the safe default.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// CodeOf returns the code of err, or CodeUnknown for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsFatal reports whether err must be re-raised without retry or downgrade.
func IsFatal(err error) bool {
	return err != nil && KindOf(err) == KindFatal
}

// IsRetryable reports whether err may succeed on a later attempt.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}
