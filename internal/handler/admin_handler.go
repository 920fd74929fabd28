package handler

import (
	"encoding/json"
	"net/http"

	"ats-be/internal/container"
	"ats-be/internal/domain"
	"ats-be/internal/middleware"
	"ats-be/pkg/errors"
	"github.com/go-chi/chi/v5"
)

// AdminHandler handles user and role management, admin only
type AdminHandler struct {
	container *container.Container
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(container *container.Container) *AdminHandler {
	return &AdminHandler{container: container}
}

// UserListResponse wraps the user management listing
type UserListResponse struct {
	Success bool             `json:"success"`
	Users   []domain.Profile `json:"users"`
	Total   int              `json:"total"`
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	users, err := h.container.GetProfiles().List(r.Context())
	if err != nil {
		writeError(w, asAppError(err), logger)
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{Success: true, Users: users, Total: len(users)}, logger)
}

// SetRoleRequest is the role change request body
type SetRoleRequest struct {
	Role string `json:"role"`
}

// SetUserRole handles PUT /api/admin/users/{userID}/role
func (h *AdminHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, errors.NewValidationError("user id is required", nil), logger)
		return
	}

	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewValidationError("invalid request body", nil), logger)
		return
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		writeError(w, errors.NewValidationError("unknown role", map[string]interface{}{"role": req.Role}), logger)
		return
	}

	// Admins may not demote themselves; losing the last admin locks the
	// role management screen for everyone
	if sess, ok := middleware.SessionFromContext(r.Context()); ok && sess.UserID == userID && role != domain.RoleAdmin {
		writeError(w, errors.NewValidationError("cannot change your own admin role", nil), logger)
		return
	}

	store := h.container.GetProfiles()
	if err := store.SetRole(r.Context(), userID, role); err != nil {
		writeError(w, asAppError(err), logger)
		return
	}

	profile, err := store.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, asAppError(err), logger)
		return
	}

	logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"role":    string(role),
	}).Info("User role changed")
	writeJSON(w, http.StatusOK, ProfileResponse{Success: true, Profile: profile, Role: role}, logger)
}
