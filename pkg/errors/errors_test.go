package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeTokenInvalid, http.StatusBadRequest},
		{ErrCodeTokenExpired, http.StatusBadRequest},
		{ErrCodeAuthFailed, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, MapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, ErrCodeInternal, "failed")

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsCode(err, ErrCodeInternal))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestIsCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("register: %w", Conflict("user", "a@b.c"))
	assert.True(t, IsCode(err, ErrCodeConflict))
	assert.False(t, IsCode(err, ErrCodeNotFound))
	assert.False(t, IsCode(stderrors.New("plain"), ErrCodeInternal))
}

func TestRender(t *testing.T) {
	t.Run("structured error", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/register", nil)

		Render(w, r, Validation("passwords do not match", map[string]interface{}{"confirmedPassword": "mismatch"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, ErrCodeValidationFailed, body.Code)
		assert.Equal(t, "mismatch", body.Details["confirmedPassword"])
	})

	t.Run("internal cause is hidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/user", nil)

		Render(w, r, stderrors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}
