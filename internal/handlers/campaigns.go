package handlers

import (
	"net/http"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/recruitment"
)

func (h *Handler) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req recruitment.NewCampaign
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Service.CreateCampaign(r.Context(), actor, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"campaign": c})
}

func (h *Handler) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	campaigns, err := h.Service.Campaigns(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": campaigns})
}

func (h *Handler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	c, err := h.Service.Campaign(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign": c})
}

func (h *Handler) DeleteCampaignHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	if err := h.Service.DeleteCampaign(r.Context(), actor, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) CreateCallListHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req recruitment.NewCallList
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.CampaignID != "" && req.CampaignID != r.PathValue("id") {
		h.writeError(w, r, apperr.Validation("campaign_id does not match the path"))
		return
	}
	req.CampaignID = r.PathValue("id")

	l, err := h.Service.CreateCallList(r.Context(), actor, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"call_list": l})
}

func (h *Handler) ListCallListsHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	lists, err := h.Service.CallLists(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if lists == nil {
		lists = []models.CallList{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"call_lists": lists})
}

func (h *Handler) DeleteCallListHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	if err := h.Service.DeleteCallList(r.Context(), actor, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
