package identity

import (
	"testing"
	"time"

	apperrors "ats-be/pkg/errors"
	"ats-be/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-signing-key"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenVerifier_Verify(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, logger.NewNop())

	t.Run("Valid token yields a session", func(t *testing.T) {
		exp := time.Now().Add(time.Hour)
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub":   "user-1",
			"email": "ada@example.com",
			"exp":   exp.Unix(),
		})

		session, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", session.UserID)
		assert.Equal(t, "ada@example.com", session.Email)
		assert.Equal(t, token, session.AccessToken)
		assert.WithinDuration(t, exp, session.ExpiresAt, time.Second)
	})

	t.Run("Expired token rejected", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := verifier.Verify(token)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuthentication))
	})

	t.Run("Wrong secret rejected", func(t *testing.T) {
		token := signToken(t, "some-other-secret", jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := verifier.Verify(token)
		assert.Error(t, err)
	})

	t.Run("Missing sub rejected", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"email": "ada@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})

		_, err := verifier.Verify(token)
		assert.Error(t, err)
	})

	t.Run("Garbage rejected", func(t *testing.T) {
		_, err := verifier.Verify("not.a.token")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuthentication))
	})

	t.Run("Non-HMAC algorithm rejected", func(t *testing.T) {
		// alg=none style tokens must never validate
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		assert.Error(t, err)
	})
}

func TestTokenVerifier_NoSecretConfigured(t *testing.T) {
	verifier := NewTokenVerifier("", logger.NewNop())
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "user-1"})

	_, err := verifier.Verify(token)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuthentication))
}
