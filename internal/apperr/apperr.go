// Package apperr defines the typed error taxonomy shared by providers,
// the source registry, and the loading pipeline. Errors carry a stable
// machine-readable code so callers can branch on failure class without
// string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a failure class.
type Code string

const (
	CodePathNotFound        Code = "PATH_NOT_FOUND"
	CodeAccessDenied        Code = "ACCESS_DENIED"
	CodeInvalidFormat       Code = "INVALID_FORMAT"
	CodeProviderNotFound    Code = "PROVIDER_NOT_FOUND"
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeCorruptData         Code = "CORRUPT_DATA"
	CodeParseError          Code = "PARSE_ERROR"
	CodeOperationTimeout    Code = "OPERATION_TIMEOUT"
	CodeDuplicateSource     Code = "DUPLICATE_SOURCE"
	CodeLastSource          Code = "LAST_SOURCE"
	CodeSourceNotFound      Code = "SOURCE_NOT_FOUND"
	CodeUnsupported         Code = "UNSUPPORTED_OPERATION"
	CodeUnknown             Code = "UNKNOWN"
)

// Error is a coded application error. It wraps an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error around an underlying cause.
func Wrap(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the code from an error chain. Non-coded errors map to
// CodeUnknown; a nil error has no code and returns the empty string.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Is reports whether the error chain contains the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
