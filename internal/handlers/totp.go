package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
)

// Verify2FALoginHandler finishes a login that LoginHandler left pending.
func (h *Handler) Verify2FALoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	session, _ := h.Sessions.Get(r, sessionName)
	userID, ok := session.Values["pending_user_id"].(string)
	if !ok || userID == "" {
		h.writeError(w, r, apperr.Unauthorized("no pending login"))
		return
	}

	user, err := h.Users.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !user.CheckSecondFactor(req.Code) {
		writeJSON(w, http.StatusUnauthorized, map[string]errorBody{
			"error": {Code: apperr.CodeAuthorization, Message: "invalid verification code"},
		})
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.CodeInternal, "save session", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": userView(user)})
}

// Enable2FAHandler turns on 2FA for the caller once a code from the new
// secret verifies. The secret is provisioned by the client.
func (h *Handler) Enable2FAHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req struct {
		Secret string `json:"secret"`
		Code   string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Secret == "" || !models.VerifyTOTPCode(req.Secret, req.Code) {
		h.writeError(w, r, apperr.Validation("invalid verification code"))
		return
	}

	if err := h.Users.UpdateUser2FA(r.Context(), actor.ID, req.Secret, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Disable2FAHandler turns off the caller's own 2FA. Admins must keep theirs.
func (h *Handler) Disable2FAHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	if actor.IsAdmin() {
		h.writeError(w, r, apperr.Unauthorized("admins cannot disable their own 2FA"))
		return
	}
	if err := h.Users.Disable2FA(r.Context(), actor.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// AdminDisable2FAHandler is account recovery for any user.
func (h *Handler) AdminDisable2FAHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id := r.PathValue("id")
	if err := h.Users.Disable2FA(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Log.Info("2FA disabled by admin", zap.String("admin_id", actor.ID), zap.String("user_id", id))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
