package models

import "time"

// Event types published after a commit.
const (
	EventTransition = "transition"
	EventContact    = "contact"
	EventPublished  = "published"
	EventAssigned   = "assigned"
	EventDeleted    = "deleted"
)

// StatusEvent is what the event bus carries. It never includes notes, so
// subscribers still go through CanView before seeing a gated entity id.
type StatusEvent struct {
	Type       string     `json:"type"`
	EntityID   string     `json:"entity_id"`
	Kind       EntityKind `json:"kind"`
	From       Status     `json:"from,omitempty"`
	To         Status     `json:"to,omitempty"`
	Actor      string     `json:"actor"`
	OccurredAt time.Time  `json:"occurred_at"`
}
