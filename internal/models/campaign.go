package models

import "time"

// Campaign groups tracked targets, e.g. one secret-primary push.
type Campaign struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TargetYear  int       `json:"target_year,omitempty"`
	FeatureSlug string    `json:"feature_slug"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// CallList belongs to a campaign and is optionally worked by one caller.
type CallList struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	Name       string    `json:"name"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// AssignmentChange edits a target's call list and direct caller. Nil fields
// are left as they are; the Clear flags null them out.
type AssignmentChange struct {
	CallListID     *string `json:"call_list_id,omitempty"`
	AssignedCaller *string `json:"assigned_caller,omitempty"`
	ClearCallList  bool    `json:"clear_call_list,omitempty"`
	ClearCaller    bool    `json:"clear_caller,omitempty"`
}
