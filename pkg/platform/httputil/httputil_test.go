package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "clinops/pkg/domain-errors"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"status": "completed"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"completed"}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input maps to 400", dErrors.New(dErrors.CodeInvalidInput, "bad id"), http.StatusBadRequest, "invalid_input"},
		{"schema violation maps to 400", dErrors.New(dErrors.CodeSchemaViolation, "missing column"), http.StatusBadRequest, "schema_violation"},
		{"invariant violation maps to 400", dErrors.New(dErrors.CodeInvariantViolation, "negative count"), http.StatusBadRequest, "invariant_violation"},
		{"not found maps to 404", dErrors.New(dErrors.CodeNotFound, "run not found"), http.StatusNotFound, "not_found"},
		{"conflict maps to 409", dErrors.New(dErrors.CodeConflict, "already exists"), http.StatusConflict, "conflict"},
		{"unavailable maps to 503", dErrors.New(dErrors.CodeUnavailable, "redis down"), http.StatusServiceUnavailable, "unavailable"},
		{"internal maps to 500", dErrors.New(dErrors.CodeInternal, "db exploded"), http.StatusInternalServerError, "internal_error"},
		{"unclassified maps to 500", errors.New("plain"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
		})
	}

	t.Run("internal errors omit the description", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.New(dErrors.CodeInternal, "dsn=postgres://secret"))

		assert.NotContains(t, rec.Body.String(), "secret")
		assert.NotContains(t, rec.Body.String(), "error_description")
	})

	t.Run("client errors include the description", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.New(dErrors.CodeBadRequest, "unknown event kind"))

		assert.Contains(t, rec.Body.String(), "unknown event kind")
	})
}

func TestDecode(t *testing.T) {
	type payload struct {
		StudyID string `json:"study_id"`
	}

	t.Run("decodes valid JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"study_id":"STUDY-01"}`))
		got, err := Decode[payload](req)
		require.NoError(t, err)
		assert.Equal(t, "STUDY-01", got.StudyID)
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		_, err := Decode[payload](req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
