package models

import "time"

// Entity is a tracked candidate, challenger or speaker-vote target.
type Entity struct {
	ID             string     `json:"id"`
	Kind           EntityKind `json:"kind"`
	Name           string     `json:"name"`
	DistrictCode   string     `json:"district_code"`
	Status         Status     `json:"status"`
	SubjectUserID  string     `json:"subject_user_id,omitempty"`
	CampaignID     string     `json:"campaign_id,omitempty"`
	CallListID     string     `json:"call_list_id,omitempty"`
	AssignedCaller string     `json:"assigned_caller,omitempty"`
	Priority       int        `json:"priority"`
	Notes          string     `json:"notes,omitempty"`
	// ConfidenceLevel is only set on speaker votes; zero elsewhere.
	ConfidenceLevel int `json:"confidence_level,omitempty"`
	// SourceEntityID links a challenger seeded from an opposed speaker vote
	// back to that vote.
	SourceEntityID string       `json:"source_entity_id,omitempty"`
	Privacy        PrivacyState `json:"privacy"`
	LastContactAt  *time.Time   `json:"last_contact_at,omitempty"`
	Version        int64        `json:"version"`
	CreatedBy      string       `json:"created_by"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// PrivacyState is the reveal switch on privacy-gated entities. Once IsPublic is
// true it never goes back.
type PrivacyState struct {
	IsPublic     bool       `json:"is_public"`
	MadePublicAt *time.Time `json:"made_public_at,omitempty"`
	MadePublicBy string     `json:"made_public_by,omitempty"`
}

// NewEntity is the intake payload for RegisterEntity. Status defaults to the
// kind's initial status and Priority to 5.
type NewEntity struct {
	ID            string     `json:"id,omitempty"`
	Kind          EntityKind `json:"kind"`
	Name          string     `json:"name"`
	DistrictCode  string     `json:"district_code"`
	Status        Status     `json:"status,omitempty"`
	SubjectUserID string     `json:"subject_user_id,omitempty"`
	CampaignID    string     `json:"campaign_id,omitempty"`
	Priority      int        `json:"priority,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	// ConfidenceLevel defaults to DefaultConfidence for speaker votes.
	ConfidenceLevel int `json:"confidence_level,omitempty"`
}

// CallerUnassigned filters targets that have no direct caller.
const CallerUnassigned = "unassigned"

// EntityFilter selects entities for listing. Zero fields match everything.
type EntityFilter struct {
	Kind           EntityKind
	CampaignID     string
	CallListID     string
	AssignedCaller string // CallerUnassigned matches targets without one
	Status         Status
	SubjectUserID  string
	PublicOnly     bool
	Limit          int
}
