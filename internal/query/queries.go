// Package query is the read side: every method answers from the read
// store alone and never touches the event log.
package query

import (
	"context"
	"sort"

	"chirper/internal/domain"
	"chirper/internal/readstore"
)

// Queries serves the read surface over a projected store.
type Queries struct {
	store       *readstore.Store
	maxTimeline int
}

func New(store *readstore.Store, maxTimeline int) *Queries {
	return &Queries{store: store, maxTimeline: maxTimeline}
}

// ListUsers returns every profile in username order.
func (q *Queries) ListUsers(ctx context.Context) ([]readstore.Profile, error) {
	return q.store.ListProfiles(ctx)
}

// GetFeed assembles the viewer's home feed: the materialized timeline
// merged with the celebrity-indexed posts of everyone the viewer
// follows, deduplicated, newest first. Index membership was decided
// when each post was published, so the merge does not re-check the
// author's current follower count. Retracted posts no longer resolve
// and drop out naturally.
func (q *Queries) GetFeed(ctx context.Context, viewerID domain.UserID) ([]readstore.Post, error) {
	if _, ok, err := q.store.Profile(ctx, viewerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrUserNotFound
	}

	timeline, err := q.store.Timeline(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.PostID]struct{}, len(timeline))
	ids := make([]domain.PostID, 0, len(timeline))
	for _, id := range timeline {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	followees, err := q.store.Outgoing(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	for _, followee := range followees {
		celebPosts, err := q.store.CelebrityPostsBy(ctx, followee)
		if err != nil {
			return nil, err
		}
		for _, id := range celebPosts {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	posts := make([]readstore.Post, 0, len(ids))
	for _, id := range ids {
		post, ok, err := q.store.Post(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			posts = append(posts, post)
		}
	}

	// Newest first; equal timestamps fall back to post id so the order
	// is total and stable across replays.
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].PublishedAt.Equal(posts[j].PublishedAt) {
			return posts[i].PublishedAt.After(posts[j].PublishedAt)
		}
		return posts[i].PostID > posts[j].PostID
	})

	if len(posts) > q.maxTimeline {
		posts = posts[:q.maxTimeline]
	}
	return posts, nil
}

// PostsByAuthor returns the author's live posts, newest first.
func (q *Queries) PostsByAuthor(ctx context.Context, authorID domain.UserID) ([]readstore.Post, error) {
	if _, ok, err := q.store.Profile(ctx, authorID); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrUserNotFound
	}
	return q.store.PostsByAuthor(ctx, authorID)
}

// IsFollowing reports whether an active edge a -> b exists.
func (q *Queries) IsFollowing(ctx context.Context, a, b domain.UserID) (bool, error) {
	_, ok, err := q.store.Relationship(ctx, a, b)
	return ok, err
}

// GetPost resolves one live post.
func (q *Queries) GetPost(ctx context.Context, id domain.PostID) (readstore.Post, error) {
	p, ok, err := q.store.Post(ctx, id)
	if err != nil {
		return readstore.Post{}, err
	}
	if !ok {
		return readstore.Post{}, domain.ErrPostNotFound
	}
	return p, nil
}

// GetProfile resolves one user.
func (q *Queries) GetProfile(ctx context.Context, id domain.UserID) (readstore.Profile, error) {
	p, ok, err := q.store.Profile(ctx, id)
	if err != nil {
		return readstore.Profile{}, err
	}
	if !ok {
		return readstore.Profile{}, domain.ErrUserNotFound
	}
	return p, nil
}
