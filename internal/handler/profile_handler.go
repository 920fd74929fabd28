package handler

import (
	"encoding/json"
	"net/http"

	"ats-be/internal/container"
	"ats-be/internal/domain"
	"ats-be/internal/middleware"
	"ats-be/pkg/errors"
)

// ProfileHandler handles the caller's own profile
type ProfileHandler struct {
	container *container.Container
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(container *container.Container) *ProfileHandler {
	return &ProfileHandler{container: container}
}

// ProfileResponse wraps a profile payload
type ProfileResponse struct {
	Success bool            `json:"success"`
	Profile *domain.Profile `json:"profile"`
	Role    domain.Role     `json:"role"`
}

// Get handles GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewAuthenticationError("not authenticated"), logger)
		return
	}

	profile, err := h.container.GetProfiles().GetByID(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, asAppError(err), logger)
		return
	}
	if profile == nil {
		writeError(w, errors.NewNotFoundError("profile not found"), logger)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{Success: true, Profile: profile, Role: profile.EffectiveRole()}, logger)
}

// Update handles PUT /api/profile. The patch is written through and the row
// re-read, so the response reflects server truth rather than a client-side
// merge.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, errors.NewAuthenticationError("not authenticated"), logger)
		return
	}

	var patch domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, errors.NewValidationError("invalid request body", nil), logger)
		return
	}
	if patch.IsEmpty() {
		writeError(w, errors.NewValidationError("no updatable fields in request", nil), logger)
		return
	}

	store := h.container.GetProfiles()
	if err := store.Update(r.Context(), sess.UserID, patch); err != nil {
		writeError(w, asAppError(err), logger)
		return
	}

	profile, err := store.GetByID(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, asAppError(err), logger)
		return
	}
	if profile == nil {
		writeError(w, errors.NewNotFoundError("profile not found"), logger)
		return
	}

	logger.WithField("user_id", sess.UserID).Info("Profile updated")
	writeJSON(w, http.StatusOK, ProfileResponse{Success: true, Profile: profile, Role: profile.EffectiveRole()}, logger)
}
