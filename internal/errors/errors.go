// Package errors provides the error taxonomy and HTTP status code mapping for the cluster API.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of the component that produced it.
type Kind int

const (
	// KindInternal is anything that does not fit another kind.
	KindInternal Kind = iota
	// KindNotFound means the container, bucket or object is absent.
	KindNotFound
	// KindConflict means a bucket already exists or is not empty.
	KindConflict
	// KindUnavailable means the container engine or storage gateway could not be reached.
	KindUnavailable
	// KindInvalidInput means an identifier or parameter is empty or malformed.
	KindInvalidInput
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindUnavailable:
		return "Unavailable"
	case KindInvalidInput:
		return "InvalidInput"
	default:
		return "Internal"
	}
}

// Error is a classified failure. Message is safe to show to API callers;
// Cause is logged but never serialized.
type Error struct {
	Kind    Kind
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new classified error.
func New(kind Kind, code ErrorCode, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Convenience constructors for common errors

func NotFound(code ErrorCode, message string, cause error) *Error {
	return New(KindNotFound, code, message, cause)
}

func Conflict(code ErrorCode, message string, cause error) *Error {
	return New(KindConflict, code, message, cause)
}

func Unavailable(code ErrorCode, message string, cause error) *Error {
	return New(KindUnavailable, code, message, cause)
}

func InvalidInput(message string, cause error) *Error {
	return New(KindInvalidInput, ErrorCodeInvalidRequest, message, cause)
}

func Internal(message string, cause error) *Error {
	return New(KindInternal, ErrorCodeInternalError, message, cause)
}

// As extracts a classified error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the error code of err, or ErrorCodeInternalError for unclassified errors.
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ErrorCodeInternalError
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// IsCode reports whether err carries code.
func IsCode(err error, code ErrorCode) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
