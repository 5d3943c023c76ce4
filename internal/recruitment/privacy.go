package recruitment

import (
	"context"
	"time"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/store"
)

// PrivacyGate decides who may see an entity and owns the one-way reveal of
// privacy-gated records.
type PrivacyGate struct {
	access *AccessRegistry
}

func newPrivacyGate(access *AccessRegistry) *PrivacyGate {
	return &PrivacyGate{access: access}
}

// ownsEntity is the self-service rule: a candidate account sees its own
// candidate record.
func ownsEntity(actor models.Actor, e models.Entity) bool {
	return actor.IsCandidate() && actor.ID != "" &&
		e.Kind == models.KindCandidate && e.SubjectUserID == actor.ID
}

// CanView is true for a published gated entity, for the entity's subject, and
// for anyone holding the kind's feature grant.
func (g *PrivacyGate) CanView(ctx context.Context, actor models.Actor, e models.Entity) (bool, error) {
	if visibleWithoutGrant(actor, e) {
		return true, nil
	}
	return g.access.HasAccess(ctx, actor, e.Kind.FeatureSlug())
}

func visibleWithoutGrant(actor models.Actor, e models.Entity) bool {
	return (e.Kind.PrivacyGated() && e.Privacy.IsPublic) || ownsEntity(actor, e)
}

// publish flips e to public and reports whether anything changed. e must be
// locked by tx.
func (g *PrivacyGate) publish(ctx context.Context, tx store.Tx, e *models.Entity, actorID string, at time.Time) (models.PrivacyState, bool, error) {
	if !e.Kind.PrivacyGated() {
		return models.PrivacyState{}, false, apperr.WithMetadata(apperr.CodeValidation,
			"only privacy-gated entities can be published", map[string]string{"kind": string(e.Kind)})
	}
	if e.Privacy.IsPublic {
		return e.Privacy, false, nil
	}
	if at.Before(e.UpdatedAt) {
		at = e.UpdatedAt
	}

	changed, err := tx.PublishEntity(ctx, e.ID, actorID, at)
	if err != nil {
		return models.PrivacyState{}, false, err
	}
	if !changed {
		// The row lock makes this unreachable unless storage lost it.
		return models.PrivacyState{}, false, apperr.WithMetadata(apperr.CodeConflict,
			"entity was modified concurrently", map[string]string{"resource": "entity", "id": e.ID})
	}
	if err := insertAudit(ctx, tx, actorID, models.ActionPublish, string(e.Kind), e.ID, at, nil); err != nil {
		return models.PrivacyState{}, false, err
	}

	e.Privacy = models.PrivacyState{IsPublic: true, MadePublicAt: &at, MadePublicBy: actorID}
	e.Version++
	e.UpdatedAt = at
	return e.Privacy, true, nil
}
