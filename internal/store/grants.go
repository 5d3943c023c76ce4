package store

import (
	"context"
	"database/sql"
	"errors"

	"recruitment-tracker-go/internal/models"
)

// Access grant methods

const grantColumns = `id, user_id, feature_slug, granted_by, granted_at, notes`

func scanGrant(row scanner) (models.AccessGrant, error) {
	var g models.AccessGrant
	var grantedAt int64
	if err := row.Scan(&g.ID, &g.UserID, &g.FeatureSlug, &g.GrantedBy, &grantedAt, &g.Notes); err != nil {
		return models.AccessGrant{}, err
	}
	g.GrantedAt = fromMillis(grantedAt)
	return g, nil
}

func (c conn) GetGrant(ctx context.Context, userID, featureSlug string) (models.AccessGrant, error) {
	g, err := scanGrant(c.queryRow(ctx,
		`SELECT `+grantColumns+` FROM access_grants WHERE user_id = ? AND feature_slug = ?`,
		userID, featureSlug,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.AccessGrant{}, notFound("grant", userID+"/"+featureSlug)
	}
	if err != nil {
		return models.AccessGrant{}, classify("get grant", err)
	}
	return g, nil
}

// ListGrants returns the grants of userID, or every grant when userID is empty.
func (c conn) ListGrants(ctx context.Context, userID string) ([]models.AccessGrant, error) {
	q := `SELECT ` + grantColumns + ` FROM access_grants`
	var args []any
	if userID != "" {
		q += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	q += ` ORDER BY feature_slug, user_id`

	rows, err := c.query(ctx, "list grants", q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []models.AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, classify("scan grant", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list grants", err)
	}
	return grants, nil
}

func (c conn) InsertGrant(ctx context.Context, g models.AccessGrant) (models.AccessGrant, bool, error) {
	res, err := c.exec(ctx, "insert grant",
		`INSERT INTO access_grants (user_id, feature_slug, granted_by, granted_at, notes)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, feature_slug) DO NOTHING`,
		g.UserID, g.FeatureSlug, g.GrantedBy, toMillis(g.GrantedAt), g.Notes,
	)
	if err != nil {
		return models.AccessGrant{}, false, err
	}
	n, _ := res.RowsAffected()

	stored, err := c.GetGrant(ctx, g.UserID, g.FeatureSlug)
	if err != nil {
		return models.AccessGrant{}, false, err
	}
	return stored, n == 1, nil
}

func (c conn) DeleteGrant(ctx context.Context, userID, featureSlug string) (bool, error) {
	res, err := c.exec(ctx, "delete grant",
		`DELETE FROM access_grants WHERE user_id = ? AND feature_slug = ?`,
		userID, featureSlug,
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Audit methods

func (c conn) InsertAudit(ctx context.Context, a models.AuditLog) error {
	if a.Metadata == "" {
		a.Metadata = "{}"
	}
	_, err := c.exec(ctx, "insert audit",
		`INSERT INTO audit_log (actor_id, action, target_type, target_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ActorID, a.Action, a.TargetType, a.TargetID, a.Metadata, toMillis(a.CreatedAt),
	)
	return err
}

// ListAudit returns the newest entries first.
func (c conn) ListAudit(ctx context.Context, limit int) ([]models.AuditLog, error) {
	rows, err := c.query(ctx, "list audit",
		`SELECT id, actor_id, action, target_type, target_id, metadata, created_at
		 FROM audit_log ORDER BY id DESC`+limitClause(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var a models.AuditLog
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.ActorID, &a.Action, &a.TargetType, &a.TargetID, &a.Metadata, &createdAt); err != nil {
			return nil, classify("scan audit", err)
		}
		a.CreatedAt = fromMillis(createdAt)
		logs = append(logs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list audit", err)
	}
	return logs, nil
}
