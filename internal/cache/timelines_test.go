package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"chirper/internal/domain"
	"chirper/internal/readstore"
)

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	// DB 1 keeps test keys away from dev data.
	opts.DB = 1

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestRedisTimelinesPushTrimList(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tl := NewRedisTimelines(client, 3)
	for i, id := range []domain.PostID{"p1", "p2", "p3", "p4"} {
		err := tl.Push(ctx, "owner", readstore.TimelineEntry{
			PostID:      id,
			PublishedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Push(%s): %v", id, err)
		}
	}

	ids, err := tl.List(ctx, "owner")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 3 || ids[0] != "p4" || ids[1] != "p3" || ids[2] != "p2" {
		t.Fatalf("List = %v, want p4,p3,p2 (cap 3, oldest trimmed)", ids)
	}
	t.Log("✓ pipeline push keeps the newest cap entries")
}

func TestRedisTimelinesRemove(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tl := NewRedisTimelines(client, 10)
	for i, id := range []domain.PostID{"p1", "p2", "p3"} {
		if err := tl.Push(ctx, "owner", readstore.TimelineEntry{PostID: id, PublishedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	if err := tl.Remove(ctx, "owner", "p2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := tl.RemoveMany(ctx, "owner", []domain.PostID{"p1", "missing"}); err != nil {
		t.Fatalf("RemoveMany: %v", err)
	}

	ids, _ := tl.List(ctx, "owner")
	if len(ids) != 1 || ids[0] != "p3" {
		t.Errorf("List = %v, want p3 only", ids)
	}
}

func TestRedisTimelinesReset(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	tl := NewRedisTimelines(client, 10)
	for _, owner := range []domain.UserID{"a", "b", "c"} {
		if err := tl.Push(ctx, owner, readstore.TimelineEntry{PostID: "p1", PublishedAt: time.Now()}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	if err := tl.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for _, owner := range []domain.UserID{"a", "b", "c"} {
		ids, err := tl.List(ctx, owner)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("timeline %s after reset = %v, want empty", owner, ids)
		}
	}
}
