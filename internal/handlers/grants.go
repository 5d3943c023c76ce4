package handlers

import (
	"net/http"

	"recruitment-tracker-go/internal/models"
)

func (h *Handler) FeaturesHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	features, err := h.Service.Features(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"features": features, "known": models.Features()})
}

// GrantsHandler lists grants, filtered by ?user_id=. Non-admins only see
// their own.
func (h *Handler) GrantsHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	grants, err := h.Service.Grants(r.Context(), actor, r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if grants == nil {
		grants = []models.AccessGrant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (h *Handler) GrantHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req struct {
		UserID      string `json:"user_id"`
		FeatureSlug string `json:"feature_slug"`
		Notes       string `json:"notes,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	g, err := h.Service.GrantAccess(r.Context(), actor, req.UserID, req.FeatureSlug, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grant": g})
}

func (h *Handler) RevokeHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	removed, err := h.Service.RevokeAccess(r.Context(), actor, r.PathValue("user"), r.PathValue("feature"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}
