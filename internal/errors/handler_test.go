package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewJSONHandler(io.Discard, nil)), false)
}

func TestErrorToProblemMapping(t *testing.T) {
	h := testHandler()
	r := httptest.NewRequest(http.MethodGet, "/api/data/kpi", nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{
			name:       "unavailable app error",
			err:        NewAppError(ErrTypeUnavailable, "no dataset is loaded yet", nil),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeUnavailable,
			wantCode:   "DATA_UNAVAILABLE",
		},
		{
			name:       "conflict app error",
			err:        NewConflictError("a dataset refresh is already running"),
			wantStatus: http.StatusConflict,
			wantType:   TypeRefreshRunning,
			wantCode:   "REFRESH_IN_PROGRESS",
		},
		{
			name:       "validation app error",
			err:        NewAppError(ErrTypeValidation, "row 7: Age out of range", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeValidation,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown dimension api error",
			err:        UnknownDimensionError("bogus"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeUnknownDimension,
			wantCode:   "UNKNOWN_DIMENSION",
		},
		{
			name:       "deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "plain error",
			err:        stderrors.New("something broke"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, problem.Extensions["error_code"])
			}
		})
	}
}

func TestHandleErrorRendersProblemJSON(t *testing.T) {
	h := testHandler()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/data/kpi", nil)

	h.HandleError(w, r, NewAppError(ErrTypeUnavailable, "no dataset is loaded yet", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, TypeUnavailable, body["type"])
	assert.Equal(t, float64(http.StatusServiceUnavailable), body["status"])
	assert.Equal(t, "DATA_UNAVAILABLE", body["error_code"])
	assert.Equal(t, "/api/data/kpi", body["instance"])
	assert.Contains(t, body, "trace_id")
}

func TestHandleErrorIgnoresNil(t *testing.T) {
	h := testHandler()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	h.HandleError(w, r, nil)
	assert.Empty(t, w.Body.String())
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := testHandler()

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/data/kpi", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
