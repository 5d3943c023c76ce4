package store

import (
	"context"
	"database/sql"
	"strings"

	"recruitment-tracker-go/internal/models"
)

// Status transition methods. The tables are append-only; there is no update
// or delete path besides the entity cascade.

func (c conn) InsertTransition(ctx context.Context, t models.StatusTransition) (models.StatusTransition, error) {
	err := c.queryRow(ctx,
		`INSERT INTO status_transitions (entity_id, from_status, to_status, actor, note, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING seq`,
		t.EntityID, t.From, t.To, t.Actor, t.Note, toMillis(t.OccurredAt),
	).Scan(&t.Seq)
	if err != nil {
		return models.StatusTransition{}, classify("insert transition", err)
	}
	return t, nil
}

func (c conn) ListTransitions(ctx context.Context, entityID string, page models.Page) ([]models.StatusTransition, error) {
	rows, err := c.query(ctx, "list transitions",
		`SELECT seq, entity_id, from_status, to_status, actor, note, occurred_at
		 FROM status_transitions
		 WHERE entity_id = ? AND seq > ?
		 ORDER BY seq`+limitClause(page.Limit),
		entityID, page.After,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.StatusTransition
	for rows.Next() {
		var t models.StatusTransition
		var occurredAt int64
		if err := rows.Scan(&t.Seq, &t.EntityID, &t.From, &t.To, &t.Actor, &t.Note, &occurredAt); err != nil {
			return nil, classify("scan transition", err)
		}
		t.OccurredAt = fromMillis(occurredAt)
		history = append(history, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list transitions", err)
	}
	return history, nil
}

// Contact methods

func nullStatus(s *models.Status) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

func fromNullStatus(v sql.NullString) *models.Status {
	if !v.Valid {
		return nil
	}
	s := models.Status(v.String)
	return &s
}

func (c conn) InsertContact(ctx context.Context, r models.ContactRecord) (models.ContactRecord, error) {
	err := c.queryRow(ctx,
		`INSERT INTO contacts (target_id, contacted_by, method, outcome, notes, status_before, status_after, contacted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING seq`,
		r.TargetID, r.ContactedBy, r.Method, r.Outcome, r.Notes,
		nullStatus(r.StatusBefore), nullStatus(r.StatusAfter), toMillis(r.ContactedAt),
	).Scan(&r.Seq)
	if err != nil {
		return models.ContactRecord{}, classify("insert contact", err)
	}
	return r, nil
}

func (c conn) ListContacts(ctx context.Context, f models.ContactFilter) ([]models.ContactRecord, error) {
	where := []string{"seq > ?"}
	args := []any{f.After}
	if f.TargetID != "" {
		where = append(where, "target_id = ?")
		args = append(args, f.TargetID)
	}
	if f.ContactedBy != "" {
		where = append(where, "contacted_by = ?")
		args = append(args, f.ContactedBy)
	}

	// seq is the cursor, so it is also the order. Within one target it agrees
	// with contacted_at; across targets only seq is restartable.
	rows, err := c.query(ctx, "list contacts",
		`SELECT seq, target_id, contacted_by, method, outcome, notes, status_before, status_after, contacted_at
		 FROM contacts
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY seq`+limitClause(f.Limit),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ContactRecord
	for rows.Next() {
		var r models.ContactRecord
		var before, after sql.NullString
		var contactedAt int64
		if err := rows.Scan(&r.Seq, &r.TargetID, &r.ContactedBy, &r.Method, &r.Outcome, &r.Notes,
			&before, &after, &contactedAt); err != nil {
			return nil, classify("scan contact", err)
		}
		r.StatusBefore = fromNullStatus(before)
		r.StatusAfter = fromNullStatus(after)
		r.ContactedAt = fromMillis(contactedAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list contacts", err)
	}
	return records, nil
}
