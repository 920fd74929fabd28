package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ats-be/internal/domain"
	"ats-be/internal/guard"
	"ats-be/internal/repository"
	"ats-be/internal/service/identity"
	"ats-be/pkg/errors"
	"ats-be/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// SessionContextKey is the key for the verified session in context
	SessionContextKey ContextKey = "session"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// SessionFromContext extracts the verified session placed by Auth.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(SessionContextKey).(*domain.Session)
	return session, ok
}

// Auth verifies the bearer token and attaches the session to the request
// context. A missing or invalid token is answered the way the route guard
// decides for an anonymous principal: 401 plus the login redirect.
func Auth(verifier *identity.TokenVerifier, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, appErr := bearerToken(r)
			if appErr != nil {
				writeDecision(w, guard.DecisionRedirectToLogin, nil, appErr, logger)
				return
			}

			session, err := verifier.Verify(token)
			if err != nil {
				logger.WithError(err).Debug("Token verification failed")
				writeDecision(w, guard.DecisionRedirectToLogin, nil,
					errors.NewAuthenticationError("invalid or expired token"), logger)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles gates a route group on the resolved role. The policy itself
// lives in guard.Decide; this middleware only resolves the inputs and
// performs the side effect the decision names.
func RequireRoles(profiles repository.ProfileStore, logger *logger.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return requireRoles(profiles, logger, roles, false)
}

// RequireRolesWithNotice behaves like RequireRoles but answers denied
// principals with an explanatory notice payload instead of a bare redirect.
func RequireRolesWithNotice(profiles repository.ProfileStore, logger *logger.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return requireRoles(profiles, logger, roles, true)
}

func requireRoles(profiles repository.ProfileStore, logger *logger.Logger, roles []domain.Role, notice bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok {
				decision := guard.Decide(guard.Request{Authenticated: false, RequiredRoles: roles})
				writeDecision(w, decision, nil, errors.NewAuthenticationError("not authenticated"), logger)
				return
			}

			// Resolution failures leave the role nil: authenticated with
			// unknown role denies every role-gated route instead of
			// defaulting to the lowest privilege.
			var role *domain.Role
			profile, err := profiles.GetByID(r.Context(), session.UserID)
			if err != nil {
				logger.WithError(err).WithField("user_id", session.UserID).Error("Role resolution failed")
			} else if profile == nil {
				logger.WithField("user_id", session.UserID).Warn("Authenticated user has no profile row")
			} else {
				resolved := profile.EffectiveRole()
				role = &resolved
			}

			decision := guard.Decide(guard.Request{
				Authenticated: true,
				Role:          role,
				RequiredRoles: roles,
				PreferNotice:  notice,
			})

			if decision == guard.DecisionRender {
				next.ServeHTTP(w, r)
				return
			}

			logger.WithFields(map[string]interface{}{
				"user_id":  session.UserID,
				"decision": decision.String(),
				"path":     r.URL.Path,
			}).Debug("Role-gated route denied")
			writeDecision(w, decision, role, errors.NewAuthorizationError("you don't have permission to access this page"), logger)
		})
	}
}

// RequestID creates a middleware that adds a unique request ID to each request
func RequestID(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := generateRequestID()

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			r = r.WithContext(ctx)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r)
		})
	}
}

func generateRequestID() string {
	return fmt.Sprintf("%d-%d", time.Now().Unix(), time.Now().Nanosecond())
}

// decisionResponse is the JSON shape the navigation layer consumes: it
// performs the redirect named here, the server never issues 3xx for API
// calls.
type decisionResponse struct {
	Success  bool                   `json:"success"`
	Error    map[string]interface{} `json:"error"`
	Redirect string                 `json:"redirect,omitempty"`
	Notice   bool                   `json:"notice,omitempty"`
}

func writeDecision(w http.ResponseWriter, decision guard.Decision, role *domain.Role, appErr *errors.AppError, logger *logger.Logger) {
	resp := decisionResponse{
		Success: false,
		Error: map[string]interface{}{
			"type":    string(appErr.Type),
			"message": appErr.Message,
		},
	}

	switch decision {
	case guard.DecisionRedirectToLogin:
		resp.Redirect = guard.LoginPath
	case guard.DecisionRedirectToRoleHome:
		resp.Redirect = guard.RoleHome(role)
	case guard.DecisionRedirectToUnauthorizedNotice:
		resp.Redirect = guard.RoleHome(role)
		resp.Notice = true
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.WithError(err).Error("Failed to encode decision response")
	}
}

func bearerToken(r *http.Request) (string, *errors.AppError) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.NewAuthenticationError("authorization header is required")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errors.NewAuthenticationError("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", errors.NewAuthenticationError("token is required")
	}
	return token, nil
}
