package recruitment_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/recruitment"
	"recruitment-tracker-go/internal/store"
	"recruitment-tracker-go/internal/store/storetest"
)

// memCache mirrors the Redis grant cache: entries are keyed by generation and
// invalidation bumps it.
type memCache struct {
	mu      sync.Mutex
	gens    map[string]int64
	entries map[string]bool
}

func newMemCache() *memCache {
	return &memCache{gens: map[string]int64{}, entries: map[string]bool{}}
}

func (c *memCache) LookupGrant(_ context.Context, userID, featureSlug string) (bool, bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gens[userID+":"+featureSlug]
	allowed, ok := c.entries[fmt.Sprintf("%s:%s:%d", userID, featureSlug, gen)]
	return allowed, ok, gen, nil
}

func (c *memCache) StoreGrant(_ context.Context, userID, featureSlug string, gen int64, allowed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fmt.Sprintf("%s:%s:%d", userID, featureSlug, gen)] = allowed
	return nil
}

func (c *memCache) InvalidateGrant(_ context.Context, userID, featureSlug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[userID+":"+featureSlug]++
	return nil
}

// slowGrantStore runs afterRead once, right after the first grant read
// outside a transaction returns.
type slowGrantStore struct {
	store.Store
	once      sync.Once
	afterRead func()
}

func (s *slowGrantStore) GetGrant(ctx context.Context, userID, featureSlug string) (models.AccessGrant, error) {
	g, err := s.Store.GetGrant(ctx, userID, featureSlug)
	if s.afterRead != nil {
		s.once.Do(s.afterRead)
	}
	return g, err
}

func TestGrantCacheHitAvoidsStore(t *testing.T) {
	f := newFixture(t, recruitment.WithGrantCache(newMemCache()))
	ctx := context.Background()
	f.grant(t, staffA.ID, models.FeatureCandidates)

	ok, err := f.svc.HasAccess(ctx, staffA, models.FeatureCandidates)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.RevokeAccess(ctx, admin, staffA.ID, models.FeatureCandidates)
	require.NoError(t, err)
	ok, err = f.svc.HasAccess(ctx, staffA, models.FeatureCandidates)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeDuringCacheFillIsNotMasked(t *testing.T) {
	ctx := context.Background()
	base := &slowGrantStore{Store: storetest.New(t)}
	svc := recruitment.NewService(base, zap.NewNop(), recruitment.WithGrantCache(newMemCache()))

	_, err := svc.GrantAccess(ctx, admin, staffA.ID, models.FeatureCandidates, "")
	require.NoError(t, err)

	// The revoke commits and invalidates after the allow was read but before
	// it is written to the cache.
	base.afterRead = func() {
		removed, err := svc.RevokeAccess(ctx, admin, staffA.ID, models.FeatureCandidates)
		require.NoError(t, err)
		require.True(t, removed)
	}

	ok, err := svc.HasAccess(ctx, staffA, models.FeatureCandidates)
	require.NoError(t, err)
	assert.True(t, ok, "the in-flight read saw the grant")

	ok, err = svc.HasAccess(ctx, staffA, models.FeatureCandidates)
	require.NoError(t, err)
	assert.False(t, ok)
}
