package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/store"
)

// visible applies CanView to an event. A deleted entity is judged by its
// kind alone.
func (h *Handler) visible(ctx context.Context, actor models.Actor, evt models.StatusEvent) bool {
	_, err := h.Service.Entity(ctx, actor, evt.EntityID)
	if err == nil {
		return true
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return false
	}
	ok, err := h.Service.CanView(ctx, actor, models.Entity{ID: evt.EntityID, Kind: evt.Kind})
	return err == nil && ok
}

// SSEHandler streams status events the caller may see.
func (h *Handler) SSEHandler(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		h.writeError(w, r, apperr.New(apperr.CodeStorageUnavailable, "event stream is not configured"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, apperr.New(apperr.CodeInternal, "streaming unsupported"))
		return
	}
	actor, _ := ActorFrom(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	pubsub := h.Events.Subscribe(r.Context())
	defer pubsub.Close()
	ch := pubsub.Channel()

	fmt.Fprintf(w, "data: %s\n\n", "connected")
	flusher.Flush()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			evt, err := store.DecodeEvent(msg.Payload)
			if err != nil {
				h.Log.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			if !h.visible(r.Context(), actor, evt) {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, msg.Payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// RecentEventsHandler returns the newest events the caller may see, 50 by
// default.
func (h *Handler) RecentEventsHandler(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		h.writeError(w, r, apperr.New(apperr.CodeStorageUnavailable, "event stream is not configured"))
		return
	}
	actor, _ := ActorFrom(r.Context())
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if limit == 0 {
		limit = 50
	}

	events, err := h.Events.RecentEvents(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.CodeStorageUnavailable, "read recent events", err))
		return
	}
	visible := make([]models.StatusEvent, 0, len(events))
	for _, evt := range events {
		if h.visible(r.Context(), actor, evt) {
			visible = append(visible, evt)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": visible})
}
