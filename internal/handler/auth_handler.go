package handler

import (
	"encoding/json"
	"net/http"

	"ats-be/internal/container"
	"ats-be/internal/domain"
	"ats-be/internal/middleware"
	"ats-be/internal/service"
	"ats-be/internal/session"
	"ats-be/pkg/errors"
)

// AuthHandler handles authentication related requests
type AuthHandler struct {
	container *container.Container
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(container *container.Container) *AuthHandler {
	return &AuthHandler{container: container}
}

// SignInRequest is the sign-in request body
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the sign-up request body
type SignUpRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Role      string  `json:"role,omitempty"`
}

// SessionResponse wraps a session payload
type SessionResponse struct {
	Success bool            `json:"success"`
	Session *domain.Session `json:"session"`
	Role    *domain.Role    `json:"role,omitempty"`
	Message string          `json:"message,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

// SignIn handles POST /api/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewValidationError("invalid request body", nil), logger)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, errors.NewValidationError("email and password are required", nil), logger)
		return
	}

	provider := h.container.GetIdentity()
	if err := provider.SignInWithPassword(r.Context(), req.Email, req.Password); err != nil {
		// Bad credentials keep the caller on the login page; no session is
		// created and no redirect is offered
		writeError(w, asAppError(err), logger)
		return
	}

	sess, err := provider.GetCurrentSession(r.Context())
	if err != nil || sess == nil {
		writeError(w, errors.NewInternalError("sign-in produced no session", err), logger)
		return
	}

	logger.WithField("user_id", sess.UserID).Info("User signed in")
	writeJSON(w, http.StatusOK, SessionResponse{Success: true, Session: sess, Message: "signed in successfully"}, logger)
}

// SignUp handles POST /api/auth/signup. A profile-write failure after the
// identity exists answers 201 with a warning: the account is real, only the
// profile row is missing, and the caller must be able to tell those apart.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewValidationError("invalid request body", nil), logger)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, errors.NewValidationError("email and password are required", nil), logger)
		return
	}

	params := service.SignUpParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.Role != "" {
		role, ok := domain.ParseRole(req.Role)
		if !ok {
			writeError(w, errors.NewValidationError("unknown role", map[string]interface{}{"role": req.Role}), logger)
			return
		}
		params.Role = role
	}

	userID, err := session.ProvisionAccount(r.Context(), h.container.GetIdentity(), h.container.GetProfiles(), params, logger)
	if err != nil {
		if errors.IsPartialSignup(err) {
			writeJSON(w, http.StatusCreated, SessionResponse{
				Success: true,
				Message: "account created",
				Warning: "profile setup failed; your role may be missing until it is repaired",
			}, logger)
			return
		}
		writeError(w, asAppError(err), logger)
		return
	}

	logger.WithField("user_id", userID).Info("User signed up")
	writeJSON(w, http.StatusCreated, SessionResponse{Success: true, Message: "account created"}, logger)
}

// SignOut handles POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	if err := h.container.GetIdentity().SignOut(r.Context()); err != nil {
		// The local session is gone either way; report success so the client
		// never stays stuck looking authenticated
		logger.WithError(err).Warn("Provider sign-out failed")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "signed out"}, logger)
}

// GetSession handles GET /api/auth/session. It reports the verified session
// together with the resolved role, nil when no profile row exists.
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewAuthenticationError("not authenticated"), logger)
		return
	}

	resp := SessionResponse{Success: true, Session: sess}
	profile, err := h.container.GetProfiles().GetByID(r.Context(), sess.UserID)
	if err != nil {
		logger.WithError(err).WithField("user_id", sess.UserID).Error("Role resolution failed")
	} else if profile != nil {
		role := profile.EffectiveRole()
		resp.Role = &role
	}

	writeJSON(w, http.StatusOK, resp, logger)
}
