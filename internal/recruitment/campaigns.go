package recruitment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/store"
)

// NewCampaign is the payload for CreateCampaign. FeatureSlug defaults to
// secret_primaries.
type NewCampaign struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TargetYear  int    `json:"target_year,omitempty"`
	FeatureSlug string `json:"feature_slug,omitempty"`
}

// NewCallList is the payload for CreateCallList.
type NewCallList struct {
	ID         string `json:"id,omitempty"`
	CampaignID string `json:"campaign_id"`
	Name       string `json:"name"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

// CampaignRegistry owns campaigns, call lists and the assignment fields of
// targets.
type CampaignRegistry struct {
	store store.Store
}

func newCampaignRegistry(s store.Store) *CampaignRegistry {
	return &CampaignRegistry{store: s}
}

func (r *CampaignRegistry) createCampaign(ctx context.Context, tx store.Tx, actorID string, nc NewCampaign, at time.Time) (models.Campaign, error) {
	nc.Name = strings.TrimSpace(nc.Name)
	if nc.Name == "" {
		return models.Campaign{}, apperr.Validation("campaign name is required")
	}
	if nc.FeatureSlug == "" {
		nc.FeatureSlug = models.FeatureSecretPrimaries
	}
	if !models.KnownFeature(nc.FeatureSlug) {
		return models.Campaign{}, apperr.WithMetadata(apperr.CodeValidation, "unknown feature", map[string]string{"feature": nc.FeatureSlug})
	}
	if nc.ID == "" {
		nc.ID = uuid.NewString()
	}

	c := models.Campaign{
		ID:          nc.ID,
		Name:        nc.Name,
		Description: nc.Description,
		TargetYear:  nc.TargetYear,
		FeatureSlug: nc.FeatureSlug,
		CreatedBy:   actorID,
		CreatedAt:   at,
	}
	if err := tx.InsertCampaign(ctx, c); err != nil {
		return models.Campaign{}, err
	}
	return c, insertAudit(ctx, tx, actorID, models.ActionCreateCampaign, "campaign", c.ID, at,
		map[string]any{"name": c.Name, "feature": c.FeatureSlug})
}

func (r *CampaignRegistry) Campaign(ctx context.Context, id string) (models.Campaign, error) {
	return r.store.GetCampaign(ctx, id)
}

func (r *CampaignRegistry) Campaigns(ctx context.Context) ([]models.Campaign, error) {
	return r.store.ListCampaigns(ctx)
}

func (r *CampaignRegistry) deleteCampaign(ctx context.Context, tx store.Tx, actorID, id string, at time.Time) error {
	removed, err := tx.DeleteCampaign(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("campaign", id)
	}
	return insertAudit(ctx, tx, actorID, models.ActionDeleteCampaign, "campaign", id, at, nil)
}

func (r *CampaignRegistry) createCallList(ctx context.Context, tx store.Tx, actorID string, nl NewCallList, at time.Time) (models.CallList, error) {
	nl.Name = strings.TrimSpace(nl.Name)
	if nl.Name == "" {
		return models.CallList{}, apperr.Validation("call list name is required")
	}
	if _, err := tx.GetCampaign(ctx, nl.CampaignID); err != nil {
		return models.CallList{}, err
	}
	if nl.ID == "" {
		nl.ID = uuid.NewString()
	}

	l := models.CallList{
		ID:         nl.ID,
		CampaignID: nl.CampaignID,
		Name:       nl.Name,
		AssignedTo: nl.AssignedTo,
		CreatedBy:  actorID,
		CreatedAt:  at,
	}
	if err := tx.InsertCallList(ctx, l); err != nil {
		return models.CallList{}, err
	}
	return l, insertAudit(ctx, tx, actorID, models.ActionCreateCallList, "call_list", l.ID, at,
		map[string]any{"campaign_id": l.CampaignID, "assigned_to": l.AssignedTo})
}

func (r *CampaignRegistry) CallLists(ctx context.Context, campaignID string) ([]models.CallList, error) {
	if _, err := r.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return r.store.ListCallLists(ctx, campaignID)
}

func (r *CampaignRegistry) deleteCallList(ctx context.Context, tx store.Tx, actorID, id string, at time.Time) error {
	removed, err := tx.DeleteCallList(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("call list", id)
	}
	return insertAudit(ctx, tx, actorID, models.ActionDeleteCallList, "call_list", id, at, nil)
}

// assign edits the call list and direct caller of e independently and
// reports whether the direct caller changed to a new non-empty value.
func (r *CampaignRegistry) assign(ctx context.Context, tx store.Tx, e *models.Entity, actorID string, change models.AssignmentChange, at time.Time) (bool, error) {
	if change.CallListID != nil && change.ClearCallList {
		return false, apperr.Validation("cannot set and clear call_list_id together")
	}
	if change.AssignedCaller != nil && change.ClearCaller {
		return false, apperr.Validation("cannot set and clear assigned_caller together")
	}

	callListID, caller := e.CallListID, e.AssignedCaller
	switch {
	case change.ClearCallList:
		callListID = ""
	case change.CallListID != nil:
		if *change.CallListID == "" {
			return false, apperr.Validation("call_list_id must not be empty; use clear_call_list")
		}
		l, err := tx.GetCallList(ctx, *change.CallListID)
		if err != nil {
			return false, err
		}
		if l.CampaignID != e.CampaignID {
			return false, apperr.WithMetadata(apperr.CodeValidation, "call list belongs to another campaign", map[string]string{
				"call_list_id": l.ID,
				"campaign_id":  l.CampaignID,
			})
		}
		callListID = l.ID
	}
	switch {
	case change.ClearCaller:
		caller = ""
	case change.AssignedCaller != nil:
		if strings.TrimSpace(*change.AssignedCaller) == "" {
			return false, apperr.Validation("assigned_caller must not be empty; use clear_caller")
		}
		caller = *change.AssignedCaller
	}

	if at.Before(e.UpdatedAt) {
		at = e.UpdatedAt
	}
	if err := tx.UpdateAssignment(ctx, e.ID, callListID, caller, at); err != nil {
		return false, err
	}
	if err := insertAudit(ctx, tx, actorID, models.ActionAssignTarget, string(e.Kind), e.ID, at,
		map[string]any{"call_list_id": callListID, "assigned_caller": caller}); err != nil {
		return false, err
	}

	newCaller := caller != "" && caller != e.AssignedCaller
	e.CallListID = callListID
	e.AssignedCaller = caller
	e.Version++
	e.UpdatedAt = at
	return newCaller, nil
}

// Targets lists entities by campaign, call list, caller or status.
func (r *CampaignRegistry) Targets(ctx context.Context, f models.EntityFilter) ([]models.Entity, error) {
	return r.store.ListEntities(ctx, f)
}
