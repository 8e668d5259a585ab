package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesType(t *testing.T) {
	t.Run("AppError", func(t *testing.T) {
		wrapped := Wrap(NewNotFound("subject not found"), "load subject")
		assert.True(t, IsNotFound(wrapped))
		assert.Equal(t, "NOT_FOUND: load subject: subject not found", wrapped.Error())
	})

	t.Run("PlainError", func(t *testing.T) {
		cause := stderrors.New("boom")
		wrapped := Wrap(cause, "do thing")
		assert.Equal(t, ErrorTypeInternal, GetAppError(wrapped).Type)
		assert.ErrorIs(t, wrapped, cause)
	})

	t.Run("Nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "nothing"))
	})
}

func TestStorageCarriesCause(t *testing.T) {
	cause := stderrors.New("throughput exceeded")
	err := NewStorage("put", cause)

	assert.True(t, IsStorage(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus)
}

func TestErrorHandlerHandle(t *testing.T) {
	handler := NewErrorHandler(nil, false)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"Validation", NewValidation("name is required"), http.StatusBadRequest, "VALIDATION"},
		{"Conflict", NewConflict("duplicate"), http.StatusConflict, "CONFLICT"},
		{"Forbidden", NewForbidden(""), http.StatusForbidden, "FORBIDDEN"},
		{"Generation", NewGeneration("model failed", stderrors.New("x")), http.StatusBadGateway, "GENERATION"},
		{"Unknown", stderrors.New("raw"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/subjects", nil)

			handler.Handle(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.True(t, body.Error)
			assert.Equal(t, tt.wantType, body.Type)
		})
	}
}
