package recruitment

import (
	"context"
	"strconv"
	"time"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/store"
)

// TransitionRequest asks the ledger to move an entity to a new status.
// ExpectedVersion, when non-zero, must match the entity's current version.
type TransitionRequest struct {
	EntityID        string        `json:"entity_id"`
	To              models.Status `json:"to"`
	Actor           string        `json:"actor"`
	Note            string        `json:"note,omitempty"`
	ExpectedVersion int64         `json:"expected_version,omitempty"`
}

// StatusLedger validates status changes against the entity kind and keeps
// the append-only transition history. It checks enum membership only;
// terminal statuses can be left and the move is recorded.
type StatusLedger struct {
	store store.Store
}

func newStatusLedger(s store.Store) *StatusLedger {
	return &StatusLedger{store: s}
}

// apply writes the new status and appends the transition. e must be locked
// by tx and is updated in place. A transition to the current status is
// recorded too.
func (l *StatusLedger) apply(ctx context.Context, tx store.Tx, e *models.Entity, req TransitionRequest, at time.Time) (models.StatusTransition, error) {
	if !e.Kind.Allows(req.To) {
		return models.StatusTransition{}, invalidStatus(e.Kind, req.To)
	}
	if req.Actor == "" {
		return models.StatusTransition{}, apperr.Validation("actor is required")
	}
	if req.ExpectedVersion != 0 && req.ExpectedVersion != e.Version {
		return models.StatusTransition{}, apperr.WithMetadata(apperr.CodeConflict, "entity version mismatch", map[string]string{
			"id":       e.ID,
			"expected": strconv.FormatInt(req.ExpectedVersion, 10),
			"actual":   strconv.FormatInt(e.Version, 10),
		})
	}
	// Never stamp a transition earlier than the last committed change.
	if at.Before(e.UpdatedAt) {
		at = e.UpdatedAt
	}

	version, err := tx.UpdateEntityStatus(ctx, e.ID, req.To, e.Version, at)
	if err != nil {
		return models.StatusTransition{}, err
	}
	rec, err := tx.InsertTransition(ctx, models.StatusTransition{
		EntityID:   e.ID,
		From:       e.Status,
		To:         req.To,
		Actor:      req.Actor,
		Note:       req.Note,
		OccurredAt: at,
	})
	if err != nil {
		return models.StatusTransition{}, err
	}

	e.Status = req.To
	e.Version = version
	e.UpdatedAt = at
	return rec, nil
}

// History returns transitions oldest first, starting after page.After.
func (l *StatusLedger) History(ctx context.Context, entityID string, page models.Page) ([]models.StatusTransition, error) {
	if _, err := l.store.GetEntity(ctx, entityID); err != nil {
		return nil, err
	}
	return l.store.ListTransitions(ctx, entityID, page)
}

// Verify replays the full history inside one transaction and checks that it
// chains to the current status.
func (l *StatusLedger) Verify(ctx context.Context, entityID string) error {
	return l.store.WithTx(ctx, func(tx store.Tx) error {
		e, err := tx.GetEntity(ctx, entityID)
		if err != nil {
			return err
		}
		history, err := tx.ListTransitions(ctx, entityID, models.Page{})
		if err != nil {
			return err
		}
		if err := models.VerifyChain(e.Status, history); err != nil {
			return apperr.Wrap(apperr.CodeInternal, "history does not replay to current status", err)
		}
		return nil
	})
}

// setConfidence writes a speaker vote's confidence level. e must be locked by
// tx and is updated in place.
func (l *StatusLedger) setConfidence(ctx context.Context, tx store.Tx, e *models.Entity, level int, at time.Time) error {
	if !e.Kind.TracksConfidence() {
		return confidenceNotTracked(e.Kind)
	}
	if err := checkConfidence(e.Kind, level); err != nil {
		return err
	}
	if at.Before(e.UpdatedAt) {
		at = e.UpdatedAt
	}
	if err := tx.UpdateConfidence(ctx, e.ID, level, at); err != nil {
		return err
	}
	e.ConfidenceLevel = level
	e.Version++
	e.UpdatedAt = at
	return nil
}

// checkConfidence accepts 1..10 on kinds that track confidence and only zero
// elsewhere.
func checkConfidence(kind models.EntityKind, level int) error {
	if !kind.TracksConfidence() {
		if level != 0 {
			return confidenceNotTracked(kind)
		}
		return nil
	}
	if !models.ValidConfidence(level) {
		return apperr.Validation("confidence level must be between 1 and 10")
	}
	return nil
}

func confidenceNotTracked(kind models.EntityKind) error {
	return apperr.WithMetadata(apperr.CodeValidation, "confidence level is only tracked on speaker votes", map[string]string{"kind": string(kind)})
}

func invalidStatus(kind models.EntityKind, s models.Status) error {
	return apperr.WithMetadata(apperr.CodeValidation, "invalid status for kind", map[string]string{
		"kind":   string(kind),
		"status": string(s),
	})
}
