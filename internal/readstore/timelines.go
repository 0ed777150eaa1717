package readstore

import (
	"context"
	"sync"

	"chirper/internal/domain"
	"chirper/internal/metrics"
)

// MemoryTimelines keeps timelines as in-process slices ordered by
// publish time, newest first. Fan-out pushes arrive in publish order
// and land at the front; backfill pushes may be older than entries
// already present and are inserted at their publish position. Eviction
// at the cap therefore always drops the oldest published entry, the
// same rule the Redis sorted-set backend applies.
type MemoryTimelines struct {
	mu        sync.Mutex
	cap       int
	timelines map[domain.UserID][]TimelineEntry
}

func NewMemoryTimelines(cap int) *MemoryTimelines {
	return &MemoryTimelines{
		cap:       cap,
		timelines: make(map[domain.UserID][]TimelineEntry),
	}
}

func (t *MemoryTimelines) Push(ctx context.Context, owner domain.UserID, entry TimelineEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.timelines[owner]
	// Move rather than duplicate.
	for i, existing := range entries {
		if existing.PostID == entry.PostID {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	at := len(entries)
	for i, existing := range entries {
		if existing.PublishedAt.Before(entry.PublishedAt) {
			at = i
			break
		}
	}
	entries = append(entries[:at:at], append([]TimelineEntry{entry}, entries[at:]...)...)
	if len(entries) > t.cap {
		entries = entries[:t.cap]
		metrics.Get().TimelineTrimsTotal.Inc()
	}
	t.timelines[owner] = entries
	return nil
}

func (t *MemoryTimelines) Remove(ctx context.Context, owner domain.UserID, postID domain.PostID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.timelines[owner]
	for i, existing := range entries {
		if existing.PostID == postID {
			t.timelines[owner] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	return nil
}

func (t *MemoryTimelines) RemoveMany(ctx context.Context, owner domain.UserID, postIDs []domain.PostID) error {
	if len(postIDs) == 0 {
		return nil
	}
	drop := make(map[domain.PostID]struct{}, len(postIDs))
	for _, id := range postIDs {
		drop[id] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.timelines[owner]
	kept := entries[:0:0]
	for _, existing := range entries {
		if _, gone := drop[existing.PostID]; !gone {
			kept = append(kept, existing)
		}
	}
	t.timelines[owner] = kept
	return nil
}

func (t *MemoryTimelines) List(ctx context.Context, owner domain.UserID) ([]domain.PostID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.timelines[owner]
	out := make([]domain.PostID, len(entries))
	for i, e := range entries {
		out[i] = e.PostID
	}
	return out, nil
}

func (t *MemoryTimelines) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timelines = make(map[domain.UserID][]TimelineEntry)
	return nil
}
