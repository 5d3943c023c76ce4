package handlers

import (
	"net/http"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
)

// GetCurrentUserHandler returns the logged-in user and the features they hold.
func (h *Handler) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	user, err := h.Users.GetUser(r.Context(), actor.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	features, err := h.Service.Features(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userView(user), "features": features})
}

// ChangePasswordHandler lets users change their own password.
func (h *Handler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		h.writeError(w, r, apperr.Validation("password must be at least 8 characters"))
		return
	}

	user, err := h.Users.GetUser(r.Context(), actor.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !user.CheckPassword(req.OldPassword) {
		h.writeError(w, r, apperr.Unauthorized("incorrect old password"))
		return
	}

	newHash, err := models.HashPassword(req.NewPassword)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.CodeInternal, "hash password", err))
		return
	}
	if err := h.Users.UpdateUserPassword(r.Context(), actor.ID, newHash); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
