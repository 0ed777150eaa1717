// Package cache keeps projection timelines in Redis sorted sets so the
// read side survives process restarts without a full replay.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chirper/internal/domain"
	"chirper/internal/logger"
	"chirper/internal/metrics"
	"chirper/internal/readstore"
)

// timelineKeyPrefix namespaces the per-user sorted sets.
const timelineKeyPrefix = "timeline:user:"

// RedisTimelines implements readstore.TimelineStore on sorted sets.
// Members are post ids; scores are publish times in microseconds, which
// float64 carries exactly (nanoseconds would lose low bits).
type RedisTimelines struct {
	client *redis.Client
	cap    int
}

func NewRedisTimelines(client *redis.Client, cap int) *RedisTimelines {
	return &RedisTimelines{client: client, cap: cap}
}

func timelineKey(owner domain.UserID) string {
	return timelineKeyPrefix + owner.String()
}

// Push adds the post and trims the set to the cap in one pipeline.
// ZREMRANGEBYRANK drops from rank 0 (oldest) up to -(cap+1), keeping
// the cap newest scores.
func (t *RedisTimelines) Push(ctx context.Context, owner domain.UserID, entry readstore.TimelineEntry) error {
	key := timelineKey(owner)

	pipe := t.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(entry.PublishedAt.UnixMicro()),
		Member: entry.PostID.String(),
	})
	trimmed := pipe.ZRemRangeByRank(ctx, key, 0, int64(-t.cap-1))

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Log.Error("timeline push failed",
			zap.String("owner", owner.String()),
			zap.String("post", entry.PostID.String()),
			zap.Error(err))
		return fmt.Errorf("push timeline: %w", err)
	}
	if n := trimmed.Val(); n > 0 {
		metrics.Get().TimelineTrimsTotal.Add(float64(n))
	}
	return nil
}

func (t *RedisTimelines) Remove(ctx context.Context, owner domain.UserID, postID domain.PostID) error {
	if err := t.client.ZRem(ctx, timelineKey(owner), postID.String()).Err(); err != nil {
		return fmt.Errorf("remove from timeline: %w", err)
	}
	return nil
}

func (t *RedisTimelines) RemoveMany(ctx context.Context, owner domain.UserID, postIDs []domain.PostID) error {
	if len(postIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(postIDs))
	for i, id := range postIDs {
		members[i] = id.String()
	}
	if err := t.client.ZRem(ctx, timelineKey(owner), members...).Err(); err != nil {
		return fmt.Errorf("remove author from timeline: %w", err)
	}
	return nil
}

// List returns the newest cap post ids, highest score first.
func (t *RedisTimelines) List(ctx context.Context, owner domain.UserID) ([]domain.PostID, error) {
	members, err := t.client.ZRevRange(ctx, timelineKey(owner), 0, int64(t.cap-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	out := make([]domain.PostID, len(members))
	for i, m := range members {
		out[i] = domain.PostID(m)
	}
	return out, nil
}

// Reset deletes every timeline key ahead of a replay.
func (t *RedisTimelines) Reset(ctx context.Context) error {
	iter := t.client.Scan(ctx, 0, timelineKeyPrefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 200 {
			if err := t.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("reset timelines: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan timelines: %w", err)
	}
	if len(keys) > 0 {
		if err := t.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("reset timelines: %w", err)
		}
	}
	logger.Log.Debug("timelines reset")
	return nil
}
