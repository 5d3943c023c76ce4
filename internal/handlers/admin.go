package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
)

const minPasswordLength = 8

// === User Management ===

func (h *Handler) GetUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.GetUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respUsers := make([]map[string]any, 0, len(users))
	for _, u := range users {
		view := userView(u)
		view["created_at"] = u.CreatedAt
		respUsers = append(respUsers, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": respUsers})
}

func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req struct {
		Username string   `json:"username"`
		Password string   `json:"password"`
		Role     string   `json:"role"`
		Features []string `json:"features,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if len(req.Password) < minPasswordLength {
		h.writeError(w, r, apperr.Validation("password must be at least 8 characters"))
		return
	}

	user, err := h.Users.CreateUser(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Log.Info("user created", zap.String("admin_id", actor.ID), zap.String("user_id", user.ID), zap.String("role", user.Role))

	// Initial grants go through the service so they are audited.
	for _, slug := range req.Features {
		if _, err := h.Service.GrantAccess(r.Context(), actor, user.ID, slug, "granted at account creation"); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": userView(user)})
}

func (h *Handler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id := r.PathValue("id")
	var req struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		h.writeError(w, r, apperr.Validation("username is required"))
		return
	}
	if id == actor.ID && req.Role != models.RoleAdmin {
		h.writeError(w, r, apperr.Validation("admins cannot demote themselves"))
		return
	}

	if err := h.Users.UpdateUser(r.Context(), id, req.Username, req.Role); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Log.Info("user updated", zap.String("admin_id", actor.ID), zap.String("user_id", id), zap.String("role", req.Role))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id := r.PathValue("id")
	if id == actor.ID {
		h.writeError(w, r, apperr.Validation("admins cannot delete themselves"))
		return
	}

	if err := h.Users.DeleteUser(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Log.Info("user deleted", zap.String("admin_id", actor.ID), zap.String("user_id", id))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// AdminResetPasswordHandler sets a new password without the old one.
func (h *Handler) AdminResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id := r.PathValue("id")
	var req struct {
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

	newHash, err := models.HashPassword(req.NewPassword)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.CodeInternal, "hash password", err))
		return
	}
	if err := h.Users.UpdateUserPassword(r.Context(), id, newHash); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Log.Info("password reset by admin", zap.String("admin_id", actor.ID), zap.String("user_id", id))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GetAuditLogs lists the newest audit rows, 50 by default.
func (h *Handler) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if limit == 0 {
		limit = 50
	}

	logs, err := h.Service.Audit(r.Context(), actor, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
