package identity

import (
	"fmt"
	"time"

	"ats-be/internal/domain"
	apperrors "ats-be/pkg/errors"
	"ats-be/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates provider-issued access tokens with signature
// verification and derives the per-request session from the claims.
type TokenVerifier struct {
	secret []byte
	logger *logger.Logger
}

func NewTokenVerifier(jwtSecret string, logger *logger.Logger) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(jwtSecret),
		logger: logger,
	}
}

// Verify parses and validates an access token, returning the session it
// represents. Every failure collapses to an authentication error; the caller
// never learns whether the token was malformed, forged, or expired.
func (v *TokenVerifier) Verify(tokenString string) (*domain.Session, error) {
	if len(v.secret) == 0 {
		v.logger.Error("JWT secret not configured")
		return nil, apperrors.NewAuthenticationError("token validation not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		v.logger.WithError(err).Debug("Token validation failed")
		return nil, apperrors.NewAuthenticationError("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.NewAuthenticationError("invalid token claims")
	}

	session := &domain.Session{
		AccessToken: tokenString,
	}
	if sub, ok := claims["sub"].(string); ok {
		session.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		session.Email = email
	}
	if exp, ok := claims["exp"].(float64); ok {
		session.ExpiresAt = time.Unix(int64(exp), 0)
	}

	if session.UserID == "" {
		return nil, apperrors.NewAuthenticationError("token carried no user identifier")
	}

	return session, nil
}
