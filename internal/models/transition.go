package models

import (
	"fmt"
	"time"
)

// StatusTransition is one immutable ledger record. Seq is the insertion
// sequence and breaks ties between equal timestamps.
type StatusTransition struct {
	Seq        int64     `json:"seq"`
	EntityID   string    `json:"entity_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Page is a seq cursor over an ordered history. After is exclusive.
type Page struct {
	After int64
	Limit int
}

// VerifyChain checks that history replays to current: each record starts where
// the previous one ended and the last one ends at current.
func VerifyChain(current Status, history []StatusTransition) error {
	for i := 1; i < len(history); i++ {
		if history[i].From != history[i-1].To {
			return fmt.Errorf("transition seq=%d starts at %q but previous ended at %q",
				history[i].Seq, history[i].From, history[i-1].To)
		}
		if history[i].Seq <= history[i-1].Seq {
			return fmt.Errorf("transition seq=%d out of order", history[i].Seq)
		}
	}
	if n := len(history); n > 0 && history[n-1].To != current {
		return fmt.Errorf("history ends at %q but entity is %q", history[n-1].To, current)
	}
	return nil
}
