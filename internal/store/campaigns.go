package store

import (
	"context"
	"database/sql"
	"errors"

	"recruitment-tracker-go/internal/models"
)

// Campaign methods

const campaignColumns = `id, name, description, target_year, feature_slug, created_by, created_at`

func scanCampaign(row scanner) (models.Campaign, error) {
	var c models.Campaign
	var createdAt int64
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.TargetYear, &c.FeatureSlug, &c.CreatedBy, &createdAt); err != nil {
		return models.Campaign{}, err
	}
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

func (c conn) GetCampaign(ctx context.Context, id string) (models.Campaign, error) {
	campaign, err := scanCampaign(c.queryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Campaign{}, notFound("campaign", id)
	}
	if err != nil {
		return models.Campaign{}, classify("get campaign", err)
	}
	return campaign, nil
}

func (c conn) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := c.query(ctx, "list campaigns",
		`SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, classify("scan campaign", err)
		}
		campaigns = append(campaigns, campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list campaigns", err)
	}
	return campaigns, nil
}

func (c conn) InsertCampaign(ctx context.Context, campaign models.Campaign) error {
	_, err := c.exec(ctx, "insert campaign",
		`INSERT INTO campaigns (`+campaignColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		campaign.ID, campaign.Name, campaign.Description, campaign.TargetYear,
		campaign.FeatureSlug, campaign.CreatedBy, toMillis(campaign.CreatedAt),
	)
	return err
}

// DeleteCampaign removes the campaign; its targets and call lists go with it.
func (c conn) DeleteCampaign(ctx context.Context, id string) (bool, error) {
	res, err := c.exec(ctx, "delete campaign", `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Call list methods

const callListColumns = `id, campaign_id, name, assigned_to, created_by, created_at`

func scanCallList(row scanner) (models.CallList, error) {
	var l models.CallList
	var assignedTo sql.NullString
	var createdAt int64
	if err := row.Scan(&l.ID, &l.CampaignID, &l.Name, &assignedTo, &l.CreatedBy, &createdAt); err != nil {
		return models.CallList{}, err
	}
	l.AssignedTo = assignedTo.String
	l.CreatedAt = fromMillis(createdAt)
	return l, nil
}

func (c conn) GetCallList(ctx context.Context, id string) (models.CallList, error) {
	l, err := scanCallList(c.queryRow(ctx, `SELECT `+callListColumns+` FROM call_lists WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.CallList{}, notFound("call list", id)
	}
	if err != nil {
		return models.CallList{}, classify("get call list", err)
	}
	return l, nil
}

func (c conn) ListCallLists(ctx context.Context, campaignID string) ([]models.CallList, error) {
	rows, err := c.query(ctx, "list call lists",
		`SELECT `+callListColumns+` FROM call_lists WHERE campaign_id = ? ORDER BY name, id`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []models.CallList
	for rows.Next() {
		l, err := scanCallList(rows)
		if err != nil {
			return nil, classify("scan call list", err)
		}
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list call lists", err)
	}
	return lists, nil
}

func (c conn) InsertCallList(ctx context.Context, l models.CallList) error {
	_, err := c.exec(ctx, "insert call list",
		`INSERT INTO call_lists (`+callListColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.CampaignID, l.Name, nullString(l.AssignedTo), l.CreatedBy, toMillis(l.CreatedAt),
	)
	return err
}

// DeleteCallList removes the list. Targets keep existing with call_list_id
// set to NULL by the foreign key.
func (c conn) DeleteCallList(ctx context.Context, id string) (bool, error) {
	res, err := c.exec(ctx, "delete call list", `DELETE FROM call_lists WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
