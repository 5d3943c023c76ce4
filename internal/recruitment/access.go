package recruitment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/store"
)

// GrantCache memoizes non-admin access decisions. Misses and cache errors
// fall through to the store. LookupGrant returns a generation that
// StoreGrant must be given back; InvalidateGrant moves to a new generation so
// a decision read before it can never be served after it.
type GrantCache interface {
	LookupGrant(ctx context.Context, userID, featureSlug string) (allowed, found bool, gen int64, err error)
	StoreGrant(ctx context.Context, userID, featureSlug string, gen int64, allowed bool) error
	InvalidateGrant(ctx context.Context, userID, featureSlug string) error
}

// AccessRegistry owns per-user, per-feature grants. Absence of a grant is
// deny; the admin role is allowed everything.
type AccessRegistry struct {
	store store.Store
	cache GrantCache
	log   *zap.Logger
	now   func() time.Time
}

func newAccessRegistry(s store.Store, cache GrantCache, log *zap.Logger) *AccessRegistry {
	return &AccessRegistry{store: s, cache: cache, log: log, now: now}
}

func validateGrant(userID, featureSlug string) error {
	if userID == "" {
		return apperr.Validation("user id is required")
	}
	if !models.KnownFeature(featureSlug) {
		return apperr.WithMetadata(apperr.CodeValidation, "unknown feature", map[string]string{"feature": featureSlug})
	}
	return nil
}

// Grant is an idempotent upsert. A repeated grant returns the original row.
func (r *AccessRegistry) Grant(ctx context.Context, userID, featureSlug, grantedBy, notes string) (models.AccessGrant, error) {
	var g models.AccessGrant
	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		g, err = r.grant(ctx, tx, userID, featureSlug, grantedBy, notes, r.now())
		return err
	})
	if err != nil {
		return models.AccessGrant{}, err
	}
	r.invalidate(ctx, userID, featureSlug)
	return g, nil
}

func (r *AccessRegistry) grant(ctx context.Context, tx store.Tx, userID, featureSlug, grantedBy, notes string, at time.Time) (models.AccessGrant, error) {
	if err := validateGrant(userID, featureSlug); err != nil {
		return models.AccessGrant{}, err
	}
	g, inserted, err := tx.InsertGrant(ctx, models.AccessGrant{
		UserID:      userID,
		FeatureSlug: featureSlug,
		GrantedBy:   grantedBy,
		GrantedAt:   at,
		Notes:       notes,
	})
	if err != nil {
		return models.AccessGrant{}, err
	}
	if inserted {
		err = insertAudit(ctx, tx, grantedBy, models.ActionGrantAccess, "user", userID, at,
			map[string]any{"feature": featureSlug})
	}
	return g, err
}

// Revoke is lenient: it reports false, not an error, when there was nothing
// to revoke.
func (r *AccessRegistry) Revoke(ctx context.Context, userID, featureSlug, revokedBy string) (bool, error) {
	var removed bool
	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		removed, err = r.revoke(ctx, tx, userID, featureSlug, revokedBy, r.now())
		return err
	})
	if err != nil {
		return false, err
	}
	r.invalidate(ctx, userID, featureSlug)
	return removed, nil
}

func (r *AccessRegistry) revoke(ctx context.Context, tx store.Tx, userID, featureSlug, revokedBy string, at time.Time) (bool, error) {
	if err := validateGrant(userID, featureSlug); err != nil {
		return false, err
	}
	removed, err := tx.DeleteGrant(ctx, userID, featureSlug)
	if err != nil || !removed {
		return removed, err
	}
	return true, insertAudit(ctx, tx, revokedBy, models.ActionRevokeAccess, "user", userID, at,
		map[string]any{"feature": featureSlug})
}

// HasAccess answers from the cache when it can. Admins always pass.
func (r *AccessRegistry) HasAccess(ctx context.Context, actor models.Actor, featureSlug string) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	if actor.ID == "" {
		return false, nil
	}
	cacheable := r.cache != nil
	var gen int64
	if cacheable {
		allowed, found, g, err := r.cache.LookupGrant(ctx, actor.ID, featureSlug)
		switch {
		case err != nil:
			r.log.Warn("grant cache lookup failed", zap.String("user_id", actor.ID), zap.Error(err))
			cacheable = false
		case found:
			return allowed, nil
		}
		gen = g
	}

	allowed, err := r.hasAccess(ctx, r.store, actor, featureSlug)
	if err != nil {
		return false, err
	}
	if cacheable {
		if err := r.cache.StoreGrant(ctx, actor.ID, featureSlug, gen, allowed); err != nil {
			r.log.Warn("grant cache store failed", zap.String("user_id", actor.ID), zap.Error(err))
		}
	}
	return allowed, nil
}

// hasAccess reads through rd, which inside a write is the open transaction.
func (r *AccessRegistry) hasAccess(ctx context.Context, rd store.Reader, actor models.Actor, featureSlug string) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	if actor.ID == "" {
		return false, nil
	}
	_, err := rd.GetGrant(ctx, actor.ID, featureSlug)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Features lists the slugs actor may use.
func (r *AccessRegistry) Features(ctx context.Context, actor models.Actor) ([]string, error) {
	if actor.IsAdmin() {
		return models.Features(), nil
	}
	grants, err := r.store.ListGrants(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	features := make([]string, 0, len(grants))
	for _, g := range grants {
		features = append(features, g.FeatureSlug)
	}
	return features, nil
}

// Grants lists the grants of userID, or all grants when userID is empty.
func (r *AccessRegistry) Grants(ctx context.Context, userID string) ([]models.AccessGrant, error) {
	return r.store.ListGrants(ctx, userID)
}

func (r *AccessRegistry) invalidate(ctx context.Context, userID, featureSlug string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.InvalidateGrant(ctx, userID, featureSlug); err != nil {
		r.log.Warn("grant cache invalidation failed",
			zap.String("user_id", userID), zap.String("feature", featureSlug), zap.Error(err))
	}
}

func insertAudit(ctx context.Context, tx store.Tx, actorID, action, targetType, targetID string, at time.Time, meta map[string]any) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "encode audit metadata", err)
	}
	return tx.InsertAudit(ctx, models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   string(data),
		CreatedAt:  at,
	})
}

// now is the service clock. Storage keeps milliseconds, so anything finer
// would make in-memory values disagree with what was persisted.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
