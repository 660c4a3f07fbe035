package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/taskflow/internal/errors"
)

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		name     string
		code     apperrors.ErrorCode
		expected int
	}{
		{"not found", apperrors.ErrCodeNotFound, http.StatusNotFound},
		{"conflict", apperrors.ErrCodeConflict, http.StatusConflict},
		{"job already exists", apperrors.ErrCodeJobAlreadyExists, http.StatusConflict},
		{"validation", apperrors.ErrCodeValidation, http.StatusUnprocessableEntity},
		{"repository", apperrors.ErrCodeRepository, http.StatusInternalServerError},
		{"internal", apperrors.ErrCodeInternal, http.StatusInternalServerError},
		{"timeout", apperrors.ErrCodeTimeout, http.StatusGatewayTimeout},
		{"unknown code", apperrors.ErrorCode("mystery"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusForCode(tt.code))
		})
	}
}

func TestWriteAppError(t *testing.T) {
	t.Run("renders the envelope for app errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteAppError(w, apperrors.NotFound("job 42 not found"))

		require.Equal(t, http.StatusNotFound, w.Code)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))
		env := decodeEnvelope(t, w)
		assert.Equal(t, "not_found", env.Error.Code)
		assert.Equal(t, "job 42 not found", env.Error.Message)
		assert.Empty(t, env.Error.Details)
	})

	t.Run("includes the field in details", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteAppError(w, apperrors.ValidationField("queue", "queue is required"))

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, "validation_error", env.Error.Code)
		assert.Equal(t, "queue is required", env.Error.Message)
		assert.Equal(t, "queue", env.Error.Details["field"])
	})

	t.Run("finds an app error through wrapping", func(t *testing.T) {
		w := httptest.NewRecorder()

		appErr := apperrors.Wrap(errors.New("pq: duplicate key"), apperrors.ErrCodeJobAlreadyExists, "job with this id already exists")
		WriteAppError(w, fmt.Errorf("schedule job: %w", appErr))

		require.Equal(t, http.StatusConflict, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, "job_already_exists", env.Error.Code)
		assert.Equal(t, "job with this id already exists", env.Error.Message)
	})

	t.Run("never leaks a plain error message", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteAppError(w, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, "internal_error", env.Error.Code)
		assert.Equal(t, "internal server error", env.Error.Message)
		assert.NotContains(t, w.Body.String(), "10.0.0.5")
	})
}
