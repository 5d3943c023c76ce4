package handlers

import (
	"net/http"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/recruitment"
)

func (h *Handler) RegisterEntityHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req models.NewEntity
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.Service.RegisterEntity(r.Context(), actor, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entity": e})
}

// ListEntitiesHandler takes kind (required), campaign_id, call_list_id,
// assigned_caller, status and limit.
func (h *Handler) ListEntitiesHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entities, err := h.Service.Entities(r.Context(), actor, models.EntityFilter{
		Kind:           models.EntityKind(q.Get("kind")),
		CampaignID:     q.Get("campaign_id"),
		CallListID:     q.Get("call_list_id"),
		AssignedCaller: q.Get("assigned_caller"),
		Status:         models.Status(q.Get("status")),
		Limit:          limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entities == nil {
		entities = []models.Entity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities, "count": len(entities)})
}

func (h *Handler) GetEntityHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	e, err := h.Service.Entity(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entity": e})
}

func (h *Handler) DeleteEntityHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	if err := h.Service.DeleteEntity(r.Context(), actor, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) TallyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	kind := models.EntityKind(r.PathValue("kind"))
	counts, err := h.Service.Tally(r.Context(), actor, kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "counts": counts, "total": total})
}

func (h *Handler) TransitionHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var cmd recruitment.TransitionCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.writeError(w, r, err)
		return
	}
	cmd.EntityID = r.PathValue("id")

	res, err := h.Service.Transition(r.Context(), actor, cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	page, err := queryPage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	history, err := h.Service.History(r.Context(), actor, r.PathValue("id"), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if history == nil {
		history = []models.StatusTransition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *Handler) VerifyHistoryHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	if err := h.Service.VerifyHistory(r.Context(), actor, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (h *Handler) RecordContactHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var cmd recruitment.ContactCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.writeError(w, r, err)
		return
	}
	if cmd.TargetID != "" && cmd.TargetID != r.PathValue("id") {
		h.writeError(w, r, apperr.Validation("target_id does not match the path"))
		return
	}
	cmd.TargetID = r.PathValue("id")

	res, err := h.Service.RecordContact(r.Context(), actor, cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListContactsHandler takes target_id, contacted_by, after and limit.
func (h *Handler) ListContactsHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	page, err := queryPage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	contacts, err := h.Service.Contacts(r.Context(), actor, models.ContactFilter{
		TargetID:    q.Get("target_id"),
		ContactedBy: q.Get("contacted_by"),
		After:       page.After,
		Limit:       page.Limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []models.ContactRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (h *Handler) PublishHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	state, err := h.Service.Publish(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"privacy": state})
}

// SeedPrimaryTargetHandler turns an opposed speaker vote into a primary target.
func (h *Handler) SeedPrimaryTargetHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	e, err := h.Service.SeedPrimaryTarget(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entity": e})
}

func (h *Handler) AssignTargetHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var change models.AssignmentChange
	if err := decodeJSON(r, &change); err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.Service.AssignTarget(r.Context(), actor, r.PathValue("id"), change)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entity": e})
}
