package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig   = "CONFIG"
	ErrLaunch   = "LAUNCH"    // the remote-execution channel could not be invoked
	ErrRemote   = "REMOTE"    // the remote command ran and exited non-zero
	ErrInput    = "INPUT"     // the caller passed an invalid request
	ErrNotFound = "NOT_FOUND" // a named entity (script, target, file) does not exist
	ErrScript   = "SCRIPT"
	ErrSuggest  = "SUGGEST"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrLaunch code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrLaunch,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// NewRemoteFailure builds the error for a remote command that ran and failed.
// The remote stderr becomes the cause so callers see what the host said.
func NewRemoteFailure(message, stderr string) *Error {
	e := &Error{
		Code:    ErrRemote,
		Message: message,
	}
	if s := strings.TrimSpace(stderr); s != "" {
		e.Cause = errors.New(s)
	}
	return e
}

// NewInvalidInput creates an error for a request the caller should not have sent.
func NewInvalidInput(message string) *Error {
	return &Error{
		Code:    ErrInput,
		Message: message,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Detail returns the message and cause on a single line, without decoration.
// Used where the error travels as plain text (JSON bodies, warnings).
func (e *Error) Detail() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pxErr *Error
	if errors.As(err, &pxErr) {
		return pxErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first structured Error in the chain, or "".
func CodeOf(err error) string {
	var pxErr *Error
	if errors.As(err, &pxErr) {
		return pxErr.Code
	}
	return ""
}

// IsLaunchFailure reports whether the remote command could not even be attempted.
func IsLaunchFailure(err error) bool {
	return IsCode(err, ErrLaunch)
}

// IsRemoteFailure reports whether the remote command ran and failed.
func IsRemoteFailure(err error) bool {
	return IsCode(err, ErrRemote)
}
