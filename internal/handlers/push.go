package handlers

import (
	"net/http"

	"recruitment-tracker-go/internal/apperr"
)

// GetVAPIDKeyHandler returns the public VAPID key
func (h *Handler) GetVAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	if h.VAPID == nil || h.VAPID.PublicKey() == "" {
		h.writeError(w, r, apperr.New(apperr.CodeStorageUnavailable, "push is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.VAPID.PublicKey()})
}

// SubscribePushHandler saves a push subscription for the caller.
func (h *Handler) SubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req struct {
		Endpoint       string `json:"endpoint"`
		ExpirationTime *int64 `json:"expirationTime,omitempty"`
		Keys           struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		h.writeError(w, r, apperr.Validation("endpoint and keys are required"))
		return
	}

	if err := h.Push.SavePushSubscription(r.Context(), actor.ID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}
