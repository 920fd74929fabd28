package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_StatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, NewValidationError("bad", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, NewAuthenticationError("no").StatusCode)
	assert.Equal(t, http.StatusForbidden, NewAuthorizationError("no").StatusCode)
	assert.Equal(t, http.StatusNotFound, NewNotFoundError("gone").StatusCode)
	assert.Equal(t, http.StatusBadGateway, NewTransientError("flaky", nil).StatusCode)
	assert.Equal(t, http.StatusConflict, NewPartialSignupError("user-1", nil).StatusCode)
	assert.Equal(t, http.StatusInternalServerError, NewInternalError("boom", nil).StatusCode)
}

func TestIsType_SeesWrappedErrors(t *testing.T) {
	inner := NewPartialSignupError("user-1", stderrors.New("db down"))
	wrapped := fmt.Errorf("signup failed: %w", inner)

	assert.True(t, IsPartialSignup(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypePartialSignup))
	assert.False(t, IsNotFound(wrapped))
	assert.False(t, IsPartialSignup(stderrors.New("plain")))
	assert.False(t, IsPartialSignup(nil))
}

func TestPartialSignupError_CarriesUserID(t *testing.T) {
	err := NewPartialSignupError("user-1", stderrors.New("db down"))
	assert.Equal(t, "user-1", err.Details["user_id"])
	assert.ErrorContains(t, err, "profile setup failed")
	assert.Error(t, stderrors.Unwrap(err))
}
