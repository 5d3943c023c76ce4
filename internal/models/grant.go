package models

import "time"

// AccessGrant lets one user use one gated feature. Unique per (UserID, FeatureSlug).
type AccessGrant struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	FeatureSlug string    `json:"feature_slug"`
	GrantedBy   string    `json:"granted_by"`
	GrantedAt   time.Time `json:"granted_at"`
	Notes       string    `json:"notes,omitempty"`
}
