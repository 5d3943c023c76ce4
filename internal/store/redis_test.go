package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/store"
)

func newRedisStore(t *testing.T) *store.RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	// DB 15 keeps test keys away from a dev instance.
	opts := &redis.Options{Addr: addr, DB: 15}
	flush := redis.NewClient(opts)
	require.NoError(t, flush.FlushDB(context.Background()).Err())
	require.NoError(t, flush.Close())

	rs := store.NewRedisStore(opts, time.Minute, 3)
	t.Cleanup(func() { _ = rs.Close() })
	return rs
}

func TestRedisGrantCache(t *testing.T) {
	rs := newRedisStore(t)
	ctx := context.Background()

	_, found, gen, err := rs.LookupGrant(ctx, "u1", models.FeatureSecretPrimaries)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, rs.StoreGrant(ctx, "u1", models.FeatureSecretPrimaries, gen, true))
	allowed, found, _, err := rs.LookupGrant(ctx, "u1", models.FeatureSecretPrimaries)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, allowed)

	require.NoError(t, rs.InvalidateGrant(ctx, "u1", models.FeatureSecretPrimaries))
	_, found, next, err := rs.LookupGrant(ctx, "u1", models.FeatureSecretPrimaries)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Greater(t, next, gen)
}

func TestRedisStaleGenerationIsNeverRead(t *testing.T) {
	rs := newRedisStore(t)
	ctx := context.Background()

	_, _, gen, err := rs.LookupGrant(ctx, "u1", models.FeatureCandidates)
	require.NoError(t, err)
	// A revoke lands between the store read and the cache write.
	require.NoError(t, rs.InvalidateGrant(ctx, "u1", models.FeatureCandidates))
	require.NoError(t, rs.StoreGrant(ctx, "u1", models.FeatureCandidates, gen, true))

	_, found, _, err := rs.LookupGrant(ctx, "u1", models.FeatureCandidates)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisEventTimelineIsTrimmed(t *testing.T) {
	rs := newRedisStore(t)
	ctx := context.Background()

	pubsub := rs.Subscribe(ctx)
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	for _, to := range []models.Status{models.StatusPotential, models.StatusConsidering, models.StatusConfirmed, models.StatusDeclined} {
		require.NoError(t, rs.PublishEvent(ctx, models.StatusEvent{
			Type: models.EventTransition, EntityID: "e1", Kind: models.KindChallenger, To: to, Actor: "a",
		}))
	}

	events, err := rs.RecentEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.StatusDeclined, events[0].To)

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)
	evt, err := store.DecodeEvent(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPotential, evt.To)
}
