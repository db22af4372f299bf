package errors

import (
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation", ValidationError("invalid input").Build(), http.StatusBadRequest},
		{"auth", AuthError("unauthorized").Build(), http.StatusUnauthorized},
		{"queue full", QueueError("queue is full").Build(), http.StatusServiceUnavailable},
		{"store", StoreError("unavailable").Build(), http.StatusServiceUnavailable},
		{"conflict", RepoNameConflict("calc").Build(), http.StatusConflict},
		{"unclassified", stdErrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.StatusCodeFor(tt.err))
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	err := ValidationError("missing field").WithContext("field", "brief").Build()
	adapter.WriteErrorResponse(rec, req, err)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing field", body.Error)
	assert.Equal(t, string(CategoryValidation), body.Code)
	assert.Equal(t, "brief", body.Details["field"])
	assert.False(t, body.Retryable)
}

func TestHTTPErrorAdapter_HidesUnclassifiedDetails(t *testing.T) {
	adapter := NewHTTPErrorAdapter(nil)
	resp := adapter.FormatErrorResponse(stdErrors.New("dial tcp 10.0.0.1: secret host"))
	assert.Equal(t, "internal error", resp.Error)
}
