package models

import "time"

// AuditLog records an administrative action taken inside the core.
type AuditLog struct {
	ID         int64     `json:"id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id,omitempty"`
	Metadata   string    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Audit actions.
const (
	ActionGrantAccess    = "grant_access"
	ActionRevokeAccess   = "revoke_access"
	ActionPublish        = "publish"
	ActionRegisterEntity = "register_entity"
	ActionDeleteEntity   = "delete_entity"
	ActionCreateCampaign = "create_campaign"
	ActionDeleteCampaign = "delete_campaign"
	ActionCreateCallList = "create_call_list"
	ActionDeleteCallList = "delete_call_list"
	ActionAssignTarget   = "assign_target"
	ActionSeedTarget     = "seed_primary_target"
)
