// Package kgerrors defines stable error codes for all CKG failure modes.
package kgerrors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// CodeRequired indicates a missing mandatory field
	CodeRequired ErrorCode = "REQUIRED"
	// CodeInvalid indicates a malformed or unsupported value
	CodeInvalid ErrorCode = "INVALID"
	// CodeNotFound indicates a referenced entity is absent
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeDuplicate indicates a name collision where uniqueness is expected
	CodeDuplicate ErrorCode = "DUPLICATE"
	// CodeQueryError indicates an underlying engine failure
	CodeQueryError ErrorCode = "QUERY_ERROR"
	// CodeDBError indicates the store cannot be opened or connected to
	CodeDBError ErrorCode = "DB_ERROR"
)

// Error represents a CKG error with a stable code, message, and optional cause.
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Required constructs a REQUIRED error for a missing field.
func Required(field string) *Error {
	return New(CodeRequired, fmt.Sprintf("%s is required", field), nil)
}

// Invalid constructs an INVALID error.
func Invalid(message string) *Error {
	return New(CodeInvalid, message, nil)
}

// NotFound constructs a NOT_FOUND error for a missing entity.
func NotFound(entity string, key interface{}) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s %v not found", entity, key), nil)
}

// Duplicate constructs a DUPLICATE error.
func Duplicate(message string) *Error {
	return New(CodeDuplicate, message, nil)
}

// QueryError wraps an engine-level failure.
func QueryError(message string, cause error) *Error {
	return New(CodeQueryError, message, cause)
}

// DBError wraps a store open/connect failure.
func DBError(message string, cause error) *Error {
	return New(CodeDBError, message, cause)
}

// CodeOf extracts the error code from err, or empty string if err is not a CKG error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsInvalid reports whether err carries the INVALID code.
func IsInvalid(err error) bool { return CodeOf(err) == CodeInvalid }

// IsRequired reports whether err carries the REQUIRED code.
func IsRequired(err error) bool { return CodeOf(err) == CodeRequired }

// IsDuplicate reports whether err carries the DUPLICATE code.
func IsDuplicate(err error) bool { return CodeOf(err) == CodeDuplicate }

// IsQueryError reports whether err carries the QUERY_ERROR code.
func IsQueryError(err error) bool { return CodeOf(err) == CodeQueryError }

// IsDBError reports whether err carries the DB_ERROR code.
func IsDBError(err error) bool { return CodeOf(err) == CodeDBError }
