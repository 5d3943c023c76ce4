package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"recruitment-tracker-go/internal/models"
)

const (
	eventChannel  = "status_events"
	eventTimeline = "status_events:timeline"
	eventTTL      = 7 * 24 * time.Hour
)

// RedisStore holds the grant cache and the status event bus. Nothing in it is
// authoritative: the SQL store is the source of truth.
type RedisStore struct {
	client      *redis.Client
	grantTTL    time.Duration
	historySize int64
}

func NewRedisStore(opts *redis.Options, grantTTL time.Duration, historySize int64) *RedisStore {
	if historySize <= 0 {
		historySize = 200
	}
	rdb := redis.NewClient(opts)
	return &RedisStore{client: rdb, grantTTL: grantTTL, historySize: historySize}
}

// Grant entries are keyed by a per-user, per-feature generation. Invalidation
// bumps the generation, so an allow computed before a revoke is written under
// a key nobody reads any more.
func grantGenKey(userID, featureSlug string) string {
	return fmt.Sprintf("grant_gen:%s:%s", userID, featureSlug)
}

func grantKey(userID, featureSlug string, gen int64) string {
	return fmt.Sprintf("grant:%s:%s:%d", userID, featureSlug, gen)
}

// LookupGrant returns the cached access decision, whether one was cached, and
// the generation to hand back to StoreGrant.
func (s *RedisStore) LookupGrant(ctx context.Context, userID, featureSlug string) (bool, bool, int64, error) {
	gen, err := s.client.Get(ctx, grantGenKey(userID, featureSlug)).Int64()
	if err != nil && err != redis.Nil {
		return false, false, 0, err
	}
	val, err := s.client.Get(ctx, grantKey(userID, featureSlug, gen)).Result()
	if err == redis.Nil {
		return false, false, gen, nil
	}
	if err != nil {
		return false, false, 0, err
	}
	return val == "1", true, gen, nil
}

func (s *RedisStore) StoreGrant(ctx context.Context, userID, featureSlug string, gen int64, allowed bool) error {
	if s.grantTTL <= 0 {
		return nil
	}
	val := "0"
	if allowed {
		val = "1"
	}
	return s.client.Set(ctx, grantKey(userID, featureSlug, gen), val, s.grantTTL).Err()
}

func (s *RedisStore) InvalidateGrant(ctx context.Context, userID, featureSlug string) error {
	return s.client.Incr(ctx, grantGenKey(userID, featureSlug)).Err()
}

// PublishEvent stores the event on the recent timeline and fans it out to
// SSE subscribers.
func (s *RedisStore) PublishEvent(ctx context.Context, evt models.StatusEvent) error {
	id, err := s.client.Incr(ctx, "status_events:next_id").Result()
	if err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("status_event:%d", id)

	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, eventTTL)
	pipe.ZAdd(ctx, eventTimeline, redis.Z{
		Score:  float64(id),
		Member: key,
	})
	// Keep only the newest historySize members.
	pipe.ZRemRangeByRank(ctx, eventTimeline, 0, -s.historySize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return s.client.Publish(ctx, eventChannel, data).Err()
}

// RecentEvents returns up to limit events, newest first.
func (s *RedisStore) RecentEvents(ctx context.Context, limit int) ([]models.StatusEvent, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	keys, err := s.client.ZRevRange(ctx, eventTimeline, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	var events []models.StatusEvent
	for _, key := range keys {
		val, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			// Expired, drop it from the timeline.
			s.client.ZRem(ctx, eventTimeline, key)
			continue
		} else if err != nil {
			continue
		}

		var evt models.StatusEvent
		if err := json.Unmarshal([]byte(val), &evt); err == nil {
			events = append(events, evt)
		}
	}
	return events, nil
}

func (s *RedisStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, eventChannel)
}

// DecodeEvent parses a pub/sub payload.
func DecodeEvent(payload string) (models.StatusEvent, error) {
	var evt models.StatusEvent
	err := json.Unmarshal([]byte(payload), &evt)
	return evt, err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
