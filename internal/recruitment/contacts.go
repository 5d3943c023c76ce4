package recruitment

import (
	"context"
	"time"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/store"
)

// ContactLog appends outreach records. It never changes status itself; a
// before/after pair records a transition the caller already applied.
type ContactLog struct {
	store store.Store
}

func newContactLog(s store.Store) *ContactLog {
	return &ContactLog{store: s}
}

func validateContact(e models.Entity, in models.ContactInput) error {
	if in.ContactedBy == "" {
		return apperr.Validation("contacted_by is required")
	}
	if !in.Method.Valid() {
		return apperr.WithMetadata(apperr.CodeValidation, "invalid contact method", map[string]string{"method": string(in.Method)})
	}
	if !in.Outcome.Valid() {
		return apperr.WithMetadata(apperr.CodeValidation, "invalid contact outcome", map[string]string{"outcome": string(in.Outcome)})
	}
	if (in.StatusBefore == nil) != (in.StatusAfter == nil) {
		return apperr.Validation("status_before and status_after must be given together")
	}
	if in.StatusBefore == nil {
		return nil
	}
	if !e.Kind.Allows(*in.StatusBefore) {
		return invalidStatus(e.Kind, *in.StatusBefore)
	}
	if !e.Kind.Allows(*in.StatusAfter) {
		return invalidStatus(e.Kind, *in.StatusAfter)
	}
	if *in.StatusAfter != e.Status {
		return apperr.WithMetadata(apperr.CodeValidation, "status_after does not match the entity's current status", map[string]string{
			"status_after": string(*in.StatusAfter),
			"current":      string(e.Status),
		})
	}
	return nil
}

// append writes the record and stamps last_contact_at. e must be locked by
// tx and is updated in place.
func (c *ContactLog) append(ctx context.Context, tx store.Tx, e *models.Entity, in models.ContactInput, at time.Time) (models.ContactRecord, error) {
	if err := validateContact(*e, in); err != nil {
		return models.ContactRecord{}, err
	}
	if at.Before(e.UpdatedAt) {
		at = e.UpdatedAt
	}

	rec, err := tx.InsertContact(ctx, models.ContactRecord{
		TargetID:     e.ID,
		ContactedBy:  in.ContactedBy,
		Method:       in.Method,
		Outcome:      in.Outcome,
		Notes:        in.Notes,
		StatusBefore: in.StatusBefore,
		StatusAfter:  in.StatusAfter,
		ContactedAt:  at,
	})
	if err != nil {
		return models.ContactRecord{}, err
	}
	if err := tx.TouchLastContact(ctx, e.ID, at); err != nil {
		return models.ContactRecord{}, err
	}

	e.LastContactAt = &at
	e.UpdatedAt = at
	return rec, nil
}

// List returns contacts in seq order.
func (c *ContactLog) List(ctx context.Context, f models.ContactFilter) ([]models.ContactRecord, error) {
	if f.TargetID != "" {
		if _, err := c.store.GetEntity(ctx, f.TargetID); err != nil {
			return nil, err
		}
	}
	return c.store.ListContacts(ctx, f)
}
