package store

import (
	"context"
	"time"

	"recruitment-tracker-go/internal/models"
)

// Reader is the read side shared by the store and by open transactions.
type Reader interface {
	GetEntity(ctx context.Context, id string) (models.Entity, error)
	ListEntities(ctx context.Context, f models.EntityFilter) ([]models.Entity, error)
	CountByStatus(ctx context.Context, kind models.EntityKind, publicOnly bool) (map[models.Status]int, error)
	ListTransitions(ctx context.Context, entityID string, page models.Page) ([]models.StatusTransition, error)
	ListContacts(ctx context.Context, f models.ContactFilter) ([]models.ContactRecord, error)

	GetGrant(ctx context.Context, userID, featureSlug string) (models.AccessGrant, error)
	ListGrants(ctx context.Context, userID string) ([]models.AccessGrant, error)

	GetCampaign(ctx context.Context, id string) (models.Campaign, error)
	ListCampaigns(ctx context.Context) ([]models.Campaign, error)
	GetCallList(ctx context.Context, id string) (models.CallList, error)
	ListCallLists(ctx context.Context, campaignID string) ([]models.CallList, error)

	ListAudit(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// Tx is one transactional unit. Everything written through a Tx commits or
// rolls back together.
type Tx interface {
	Reader

	// LockEntity loads the entity and holds its row until the transaction ends.
	LockEntity(ctx context.Context, id string) (models.Entity, error)
	InsertEntity(ctx context.Context, e models.Entity) error
	// UpdateEntityStatus writes status only if the row is still at expectedVersion
	// and returns the new version.
	UpdateEntityStatus(ctx context.Context, id string, status models.Status, expectedVersion int64, at time.Time) (int64, error)
	DeleteEntity(ctx context.Context, id string) (bool, error)
	TouchLastContact(ctx context.Context, id string, at time.Time) error
	PublishEntity(ctx context.Context, id, by string, at time.Time) (bool, error)
	UpdateAssignment(ctx context.Context, id, callListID, caller string, at time.Time) error
	UpdateConfidence(ctx context.Context, id string, level int, at time.Time) error

	InsertTransition(ctx context.Context, t models.StatusTransition) (models.StatusTransition, error)
	InsertContact(ctx context.Context, c models.ContactRecord) (models.ContactRecord, error)

	// InsertGrant is idempotent: it reports whether a new row was written and
	// returns the stored grant either way.
	InsertGrant(ctx context.Context, g models.AccessGrant) (models.AccessGrant, bool, error)
	DeleteGrant(ctx context.Context, userID, featureSlug string) (bool, error)

	InsertCampaign(ctx context.Context, c models.Campaign) error
	DeleteCampaign(ctx context.Context, id string) (bool, error)
	InsertCallList(ctx context.Context, l models.CallList) error
	DeleteCallList(ctx context.Context, id string) (bool, error)

	InsertAudit(ctx context.Context, a models.AuditLog) error
}

// Store is the persistence boundary of the recruitment core. All mutations go
// through WithTx.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// UserStore handles login accounts for the HTTP layer.
type UserStore interface {
	CreateUser(ctx context.Context, username, password, role string) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id, username, role string) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	DeleteUser(ctx context.Context, id string) error
	UpdateUser2FA(ctx context.Context, userID, totpSecret string, enabled bool) error
	Disable2FA(ctx context.Context, userID string) error
}

// PushStore keeps Web Push subscriptions.
type PushStore interface {
	SavePushSubscription(ctx context.Context, userID, endpoint, p256dh, auth string) error
	GetPushSubscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}
