// Package api defines the JSON envelope shared by the HTTP API and the
// CLI's --json output, and maps error codes to HTTP statuses.
package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/rileyhilliard/pxd/internal/errors"
)

// Envelope wraps every response in a consistent structure for machine parsing.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error provides structured error information for machine parsing.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// CodeUnknown is used for errors that carry no code.
const CodeUnknown = "UNKNOWN"

// Success wraps data.
func Success(data interface{}) Envelope {
	return Envelope{Success: true, Data: data}
}

// Failure wraps err.
func Failure(err error) Envelope {
	return Envelope{Success: false, Error: ErrorFrom(err)}
}

// ErrorFrom converts a Go error to an Error. The message carries the cause
// so remote stderr reaches the caller.
func ErrorFrom(err error) *Error {
	if err == nil {
		return nil
	}

	var pxErr *errors.Error
	if stderrors.As(err, &pxErr) {
		return &Error{
			Code:       pxErr.Code,
			Message:    pxErr.Detail(),
			Suggestion: pxErr.Suggestion,
		}
	}

	return &Error{
		Code:    CodeUnknown,
		Message: err.Error(),
	}
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case errors.ErrInput:
		return http.StatusBadRequest
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrLaunch, errors.ErrRemote, errors.ErrSuggest:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteSuccess writes a successful envelope with data.
func WriteSuccess(w io.Writer, data interface{}) error {
	return write(w, Success(data))
}

// WriteError writes an error envelope.
func WriteError(w io.Writer, err error) error {
	return write(w, Failure(err))
}

func write(w io.Writer, env Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}
