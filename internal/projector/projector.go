// Package projector folds domain events into the read store. The
// Projector holds the transition rule for each event kind; the Pipeline
// serializes application so the read store only ever advances in global
// append order.
package projector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chirper/internal/domain"
	"chirper/internal/logger"
	"chirper/internal/readstore"
)

// DefaultFanoutWorkers bounds the goroutines pushing one post into
// follower timelines.
const DefaultFanoutWorkers = 8

// Observer receives a callback per applied event. The projector calls
// it after the read store mutations for that event committed.
type Observer interface {
	EventApplied(kind domain.EventKind, fanout int, d time.Duration)
	ApplyFailed(kind domain.EventKind, err error)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) EventApplied(domain.EventKind, int, time.Duration) {}
func (NopObserver) ApplyFailed(domain.EventKind, error)               {}

// Projector turns events into read-store state. Apply is deterministic:
// replaying the full log into an empty store reproduces the same state.
// Apply is not safe for concurrent use; the Pipeline guarantees one
// event at a time.
type Projector struct {
	store    *readstore.Store
	workers  int
	observer Observer
}

// New builds a Projector over the store. fanoutWorkers caps the
// parallelism of a single fan-out; values below 1 fall back to the
// default.
func New(store *readstore.Store, fanoutWorkers int, observer Observer) *Projector {
	if fanoutWorkers < 1 {
		fanoutWorkers = DefaultFanoutWorkers
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Projector{store: store, workers: fanoutWorkers, observer: observer}
}

// Apply folds one event into the read store. Errors mean the store may
// be inconsistent with the log; the pipeline treats them as fatal and
// the remedy is a replay.
func (p *Projector) Apply(ctx context.Context, e domain.Event) error {
	start := time.Now()
	fanout := 0
	var err error

	switch ev := e.(type) {
	case domain.UserRegistered:
		err = p.applyUserRegistered(ctx, ev)
	case domain.PostPublished:
		fanout, err = p.applyPostPublished(ctx, ev)
	case domain.PostRetracted:
		err = p.applyPostRetracted(ctx, ev)
	case domain.FollowStarted:
		fanout, err = p.applyFollowStarted(ctx, ev)
	case domain.FollowEnded:
		err = p.applyFollowEnded(ctx, ev)
	default:
		err = fmt.Errorf("project: unknown event kind %d", e.Kind())
	}

	if err != nil {
		p.observer.ApplyFailed(e.Kind(), err)
		logger.Log.Error("projection failed",
			zap.String("kind", e.Kind().String()),
			zap.String("event_id", e.Head().EventID),
			zap.Error(err))
		return err
	}
	p.observer.EventApplied(e.Kind(), fanout, time.Since(start))
	return nil
}

func (p *Projector) applyUserRegistered(ctx context.Context, e domain.UserRegistered) error {
	return p.store.PutProfile(ctx, readstore.Profile{
		UserID:   e.UserID(),
		Username: e.Username,
	})
}

// applyPostPublished inserts the post row, then either indexes it (the
// author is a celebrity at this moment) or fans it out to every
// current follower. The celebrity check happens at projection time and
// is never revisited for this post.
func (p *Projector) applyPostPublished(ctx context.Context, e domain.PostPublished) (int, error) {
	author, ok, err := p.store.Profile(ctx, e.AuthorID)
	if err != nil {
		return 0, err
	}
	if !ok {
		// A post by an unregistered author cannot be appended through
		// the command path, so the log itself is damaged.
		return 0, fmt.Errorf("project post %s: author %s not in read store (corrupt log)", e.PostID(), e.AuthorID)
	}

	if err := p.store.PutPost(ctx, readstore.Post{
		PostID:         e.PostID(),
		AuthorID:       e.AuthorID,
		AuthorUsername: author.Username,
		Body:           e.Body,
		PublishedAt:    e.PublishedAt,
	}); err != nil {
		return 0, err
	}

	celeb, err := p.store.IsCelebrity(ctx, e.AuthorID)
	if err != nil {
		return 0, err
	}
	if celeb {
		return 0, p.store.MarkCelebrityPost(ctx, e.AuthorID, e.PostID())
	}

	followers, err := p.store.Incoming(ctx, e.AuthorID)
	if err != nil {
		return 0, err
	}
	entry := readstore.TimelineEntry{PostID: e.PostID(), PublishedAt: e.PublishedAt}
	if err := p.fanOut(ctx, followers, entry); err != nil {
		return 0, err
	}
	return len(followers), nil
}

// fanOut pushes one entry into many timelines with a bounded worker
// pool. It returns only after every push finished, so the next event
// never observes a half-applied fan-out.
func (p *Projector) fanOut(ctx context.Context, followers []domain.UserID, entry readstore.TimelineEntry) error {
	if len(followers) == 0 {
		return nil
	}
	workers := p.workers
	if workers > len(followers) {
		workers = len(followers)
	}

	jobs := make(chan domain.UserID)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var firstErr error
			for owner := range jobs {
				if firstErr != nil {
					continue
				}
				if err := p.store.PushTimeline(ctx, owner, entry); err != nil {
					firstErr = fmt.Errorf("fan out to %s: %w", owner, err)
				}
			}
			errs <- firstErr
		}()
	}
	for _, f := range followers {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// applyPostRetracted undoes whichever distribution the publish chose:
// the celebrity index entry, or the timeline entries. Unknown posts are
// a no-op so replays of already-compacted state stay idempotent.
func (p *Projector) applyPostRetracted(ctx context.Context, e domain.PostRetracted) error {
	post, ok, err := p.store.Post(ctx, e.PostID())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := p.store.ForgetCelebrityPost(ctx, e.PostID()); err != nil {
		return err
	}

	followers, err := p.store.Incoming(ctx, post.AuthorID)
	if err != nil {
		return err
	}
	for _, f := range followers {
		if err := p.store.RemoveFromTimeline(ctx, f, e.PostID()); err != nil {
			return fmt.Errorf("retract from timeline of %s: %w", f, err)
		}
	}

	return p.store.DeletePost(ctx, e.PostID())
}

// applyFollowStarted records the edge and backfills the follower's
// timeline with the followee's live posts. Celebrity followees are not
// backfilled into the timeline: their posts are merged at query time
// through the celebrity index, which this step tops up instead.
func (p *Projector) applyFollowStarted(ctx context.Context, e domain.FollowStarted) (int, error) {
	if err := p.store.AddEdge(ctx, e.FollowerID, e.FolloweeID, e.RelationshipID()); err != nil {
		return 0, err
	}

	celeb, err := p.store.IsCelebrity(ctx, e.FolloweeID)
	if err != nil {
		return 0, err
	}
	posts, err := p.store.PostsByAuthor(ctx, e.FolloweeID)
	if err != nil {
		return 0, err
	}

	if celeb {
		for _, post := range posts {
			if err := p.store.MarkCelebrityPost(ctx, e.FolloweeID, post.PostID); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}

	// A followee who dropped below the threshold may still have posts
	// in the celebrity index until cleanup runs. Those reach the feed
	// through the index merge already; backfilling them would only
	// burn timeline cap slots.
	indexed, err := p.store.CelebrityPostsBy(ctx, e.FolloweeID)
	if err != nil {
		return 0, err
	}
	skip := make(map[domain.PostID]struct{}, len(indexed))
	for _, id := range indexed {
		skip[id] = struct{}{}
	}

	// posts is newest first; push oldest to newest so the timeline ends
	// newest first and truncation drops the oldest entries.
	pushed := 0
	for i := len(posts) - 1; i >= 0; i-- {
		post := posts[i]
		if _, ok := skip[post.PostID]; ok {
			continue
		}
		err := p.store.PushTimeline(ctx, e.FollowerID, readstore.TimelineEntry{
			PostID:      post.PostID,
			PublishedAt: post.PublishedAt,
		})
		if err != nil {
			return 0, fmt.Errorf("backfill %s for %s: %w", post.PostID, e.FollowerID, err)
		}
		pushed++
	}
	return pushed, nil
}

// applyFollowEnded removes the edge, then scrubs the ex-followee's
// posts from the follower's timeline unless the followee is currently
// a celebrity (their posts never entered timelines; the feed merge
// drops them once the edge is gone).
func (p *Projector) applyFollowEnded(ctx context.Context, e domain.FollowEnded) error {
	if err := p.store.RemoveEdge(ctx, e.FollowerID, e.FolloweeID); err != nil {
		return err
	}

	celeb, err := p.store.IsCelebrity(ctx, e.FolloweeID)
	if err != nil {
		return err
	}
	if celeb {
		return nil
	}
	return p.store.RemoveAuthorFromTimeline(ctx, e.FollowerID, e.FolloweeID)
}
