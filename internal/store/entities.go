package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"recruitment-tracker-go/internal/models"
)

const entityColumns = `id, kind, name, district_code, status, subject_user_id, campaign_id,
	call_list_id, assigned_caller, priority, notes, is_public, made_public_at, made_public_by,
	last_contact_at, version, created_by, created_at, updated_at, confidence_level, source_entity_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (models.Entity, error) {
	var (
		e                                             models.Entity
		subject, campaign, callList, caller, publicBy sql.NullString
		source                                        sql.NullString
		publicAt, lastContact                         sql.NullInt64
		createdAt, updatedAt                          int64
	)
	err := row.Scan(&e.ID, &e.Kind, &e.Name, &e.DistrictCode, &e.Status, &subject, &campaign,
		&callList, &caller, &e.Priority, &e.Notes, &e.Privacy.IsPublic, &publicAt, &publicBy,
		&lastContact, &e.Version, &e.CreatedBy, &createdAt, &updatedAt, &e.ConfidenceLevel, &source)
	if err != nil {
		return models.Entity{}, err
	}

	e.SubjectUserID = subject.String
	e.CampaignID = campaign.String
	e.CallListID = callList.String
	e.AssignedCaller = caller.String
	e.SourceEntityID = source.String
	e.Privacy.MadePublicAt = fromNullMillis(publicAt)
	e.Privacy.MadePublicBy = publicBy.String
	e.LastContactAt = fromNullMillis(lastContact)
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return e, nil
}

// Entity methods

func (c conn) GetEntity(ctx context.Context, id string) (models.Entity, error) {
	return c.getEntity(ctx, id, "")
}

func (c conn) getEntity(ctx context.Context, id, suffix string) (models.Entity, error) {
	row := c.queryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`+suffix, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entity{}, notFound("entity", id)
	}
	if err != nil {
		return models.Entity{}, classify("get entity", err)
	}
	return e, nil
}

// LockEntity loads an entity and, on Postgres, holds its row lock until the
// transaction ends. SQLite transactions are opened IMMEDIATE and already
// exclude other writers.
func (t *sqlTx) LockEntity(ctx context.Context, id string) (models.Entity, error) {
	return t.getEntity(ctx, id, t.d.lockSuffix)
}

func (c conn) ListEntities(ctx context.Context, f models.EntityFilter) ([]models.Entity, error) {
	var where []string
	var args []any
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.CampaignID != "" {
		where = append(where, "campaign_id = ?")
		args = append(args, f.CampaignID)
	}
	if f.CallListID != "" {
		where = append(where, "call_list_id = ?")
		args = append(args, f.CallListID)
	}
	switch f.AssignedCaller {
	case "":
	case models.CallerUnassigned:
		where = append(where, "(assigned_caller IS NULL OR assigned_caller = '')")
	default:
		where = append(where, "assigned_caller = ?")
		args = append(args, f.AssignedCaller)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.SubjectUserID != "" {
		where = append(where, "subject_user_id = ?")
		args = append(args, f.SubjectUserID)
	}
	if f.PublicOnly {
		where = append(where, "is_public = ?")
		args = append(args, true)
	}

	q := `SELECT ` + entityColumns + ` FROM entities`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY priority, district_code, name, id" + limitClause(f.Limit)

	rows, err := c.query(ctx, "list entities", q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, classify("scan entity", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list entities", err)
	}
	return entities, nil
}

func (c conn) CountByStatus(ctx context.Context, kind models.EntityKind, publicOnly bool) (map[models.Status]int, error) {
	q := `SELECT status, COUNT(*) FROM entities WHERE kind = ?`
	args := []any{kind}
	if publicOnly {
		q += ` AND is_public = ?`
		args = append(args, true)
	}
	q += ` GROUP BY status`

	rows, err := c.query(ctx, "count by status", q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status models.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, classify("scan status count", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, classify("count by status", err)
	}
	return counts, nil
}

func (c conn) InsertEntity(ctx context.Context, e models.Entity) error {
	_, err := c.exec(ctx, "insert entity",
		`INSERT INTO entities (`+entityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Name, e.DistrictCode, e.Status, nullString(e.SubjectUserID),
		nullString(e.CampaignID), nullString(e.CallListID), nullString(e.AssignedCaller),
		e.Priority, e.Notes, e.Privacy.IsPublic, nullMillis(e.Privacy.MadePublicAt),
		nullString(e.Privacy.MadePublicBy), nullMillis(e.LastContactAt), e.Version,
		e.CreatedBy, toMillis(e.CreatedAt), toMillis(e.UpdatedAt), e.ConfidenceLevel,
		nullString(e.SourceEntityID),
	)
	return err
}

func (c conn) UpdateEntityStatus(ctx context.Context, id string, status models.Status, expectedVersion int64, at time.Time) (int64, error) {
	res, err := c.exec(ctx, "update entity status",
		`UPDATE entities SET status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		status, toMillis(at), id, expectedVersion,
	)
	if err != nil {
		return 0, err
	}
	if err := expectOneRow(res, "entity", id); err != nil {
		return 0, err
	}
	return expectedVersion + 1, nil
}

func (c conn) DeleteEntity(ctx context.Context, id string) (bool, error) {
	res, err := c.exec(ctx, "delete entity", `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c conn) TouchLastContact(ctx context.Context, id string, at time.Time) error {
	_, err := c.exec(ctx, "touch last contact",
		`UPDATE entities SET last_contact_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(at), toMillis(at), id,
	)
	return err
}

// PublishEntity flips is_public once. It reports false when the row was
// already public and leaves made_public_at untouched.
func (c conn) PublishEntity(ctx context.Context, id, by string, at time.Time) (bool, error) {
	res, err := c.exec(ctx, "publish entity",
		`UPDATE entities
		 SET is_public = ?, made_public_at = ?, made_public_by = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND is_public = ?`,
		true, toMillis(at), by, toMillis(at), id, false,
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (c conn) UpdateAssignment(ctx context.Context, id, callListID, caller string, at time.Time) error {
	res, err := c.exec(ctx, "update assignment",
		`UPDATE entities SET call_list_id = ?, assigned_caller = ?, version = version + 1, updated_at = ?
		 WHERE id = ?`,
		nullString(callListID), nullString(caller), toMillis(at), id,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notFound("entity", id)
	}
	return nil
}

// UpdateConfidence sets a speaker vote's confidence level and bumps version.
func (c conn) UpdateConfidence(ctx context.Context, id string, level int, at time.Time) error {
	res, err := c.exec(ctx, "update confidence",
		`UPDATE entities SET confidence_level = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		level, toMillis(at), id,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notFound("entity", id)
	}
	return nil
}
