package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSuccess(&buf, map[string]int{"running": 3}))

	var env Envelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.Equal(t, map[string]interface{}{"running": 3.0}, env.Data)
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	err := errors.NewRemoteFailure("Failed to start container 214", "CT 214 already running")
	require.NoError(t, WriteError(&buf, err))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, false, raw["success"])
	assert.NotContains(t, raw, "data")
	assert.Equal(t, map[string]interface{}{
		"code":    "REMOTE",
		"message": "Failed to start container 214: CT 214 already running",
	}, raw["error"])
}

func TestErrorFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *Error
	}{
		{name: "nil", err: nil, want: nil},
		{
			name: "structured",
			err:  errors.New(errors.ErrInput, "bad id", "Use a number."),
			want: &Error{Code: "INPUT", Message: "bad id", Suggestion: "Use a number."},
		},
		{
			name: "wrapped structured",
			err:  fmt.Errorf("outer: %w", errors.New(errors.ErrNotFound, "no script", "")),
			want: &Error{Code: "NOT_FOUND", Message: "no script"},
		},
		{
			name: "plain",
			err:  fmt.Errorf("boom"),
			want: &Error{Code: CodeUnknown, Message: "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorFrom(tt.err))
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		errors.ErrInput:    http.StatusBadRequest,
		errors.ErrNotFound: http.StatusNotFound,
		errors.ErrLaunch:   http.StatusBadGateway,
		errors.ErrRemote:   http.StatusBadGateway,
		errors.ErrSuggest:  http.StatusBadGateway,
		errors.ErrScript:   http.StatusInternalServerError,
		errors.ErrConfig:   http.StatusInternalServerError,
		CodeUnknown:        http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusFor(code), code)
	}
}
