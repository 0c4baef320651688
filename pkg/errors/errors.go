// Package errors provides structured error types for the cgfuse application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across all fusion phases
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - PARSE_*: Source parsing failures
//   - POLICY_*: Platform allow-list violations
//   - EXPANSION_*: Use-statement expansion failures
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeParse, "cannot parse %s", path)
//	if errors.Is(err, errors.ErrCodeParse) {
//	    // Handle parse error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeMetadata, origErr, "cargo metadata for %s", manifest)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Source parsing errors
	ErrCodeParse        Code = "PARSE_FAILED"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Package metadata errors
	ErrCodeMetadata        Code = "METADATA_FAILED"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"

	// Tool configuration errors
	ErrCodeConfig Code = "INVALID_CONFIG"

	// Platform allow-list violations
	ErrCodePolicy Code = "POLICY_VIOLATION"

	// Use-statement expansion errors
	ErrCodeExpansion   Code = "EXPANSION_FAILED"
	ErrCodeMaxAttempts Code = "EXPANSION_MAX_ATTEMPTS"

	// Name resolution errors
	ErrCodeResolve Code = "RESOLVE_FAILED"

	// Interactive dialog errors
	ErrCodeDialogCanceled Code = "DIALOG_CANCELED"

	// Output forging errors
	ErrCodeForge Code = "FORGE_FAILED"
	ErrCodeCheck Code = "CHECK_FAILED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
