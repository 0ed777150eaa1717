// Package command implements the write side: each command validates
// input, checks cross-aggregate preconditions against the read store,
// lets the aggregate decide, appends the resulting events, and blocks
// until they are projected so the caller can immediately read their
// own write.
package command

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chirper/internal/domain"
	"chirper/internal/eventlog"
	"chirper/internal/logger"
	"chirper/internal/metrics"
	"chirper/internal/projector"
	"chirper/internal/queue"
	"chirper/internal/readstore"
)

// ErrDeadline means the command's deadline expired before its events
// were appended. Nothing was written; the command may be retried.
var ErrDeadline = errors.New("command deadline exceeded before append")

// Bus carries the shared write-side collaborators. Publisher is
// optional: when set, every committed event is relayed to the event
// stream on a best-effort basis.
type Bus struct {
	log       eventlog.Log
	store     *readstore.Store
	pipeline  *projector.Pipeline
	publisher queue.Publisher
}

func NewBus(log eventlog.Log, store *readstore.Store, pipeline *projector.Pipeline) *Bus {
	return &Bus{log: log, store: store, pipeline: pipeline}
}

// SetPublisher wires the optional event relay.
func (b *Bus) SetPublisher(p queue.Publisher) { b.publisher = p }

// RegisterUser creates an account under a fresh user id.
func (b *Bus) RegisterUser(ctx context.Context, rawUsername string) (domain.UserID, error) {
	username, err := domain.ParseUsername(rawUsername)
	if err != nil {
		return "", b.fail("register_user", err)
	}
	taken, err := b.store.UsernameTaken(ctx, username)
	if err != nil {
		return "", b.fail("register_user", err)
	}
	if taken {
		return "", b.fail("register_user", domain.ErrUsernameTaken)
	}

	user, err := domain.NewUser(rawUsername)
	if err != nil {
		return "", b.fail("register_user", err)
	}
	if err := b.commit(ctx, user.ID().String(), user.Drain()); err != nil {
		return "", b.fail("register_user", err)
	}
	metrics.RecordCommand("register_user", nil)
	return user.ID(), nil
}

// PublishPost appends PostPublished for an existing author.
func (b *Bus) PublishPost(ctx context.Context, authorID domain.UserID, rawBody string) (domain.PostID, error) {
	if _, ok, err := b.store.Profile(ctx, authorID); err != nil {
		return "", b.fail("publish_post", err)
	} else if !ok {
		return "", b.fail("publish_post", domain.ErrUserNotFound)
	}

	post, err := domain.NewPost(authorID, rawBody)
	if err != nil {
		return "", b.fail("publish_post", err)
	}
	if err := b.commit(ctx, post.ID().String(), post.Drain()); err != nil {
		return "", b.fail("publish_post", err)
	}
	metrics.RecordCommand("publish_post", nil)
	return post.ID(), nil
}

// RetractPost removes a live post. Only the author may retract; a post
// already retracted no longer resolves in the read store and surfaces
// ErrPostNotFound.
func (b *Bus) RetractPost(ctx context.Context, postID domain.PostID, callerID domain.UserID) error {
	row, ok, err := b.store.Post(ctx, postID)
	if err != nil {
		return b.fail("retract_post", err)
	}
	if !ok {
		return b.fail("retract_post", domain.ErrPostNotFound)
	}
	if row.AuthorID != callerID {
		return b.fail("retract_post", domain.ErrNotAuthor)
	}

	stream, err := b.log.Read(ctx, postID.String())
	if err != nil {
		return b.fail("retract_post", err)
	}
	post, err := domain.RehydratePost(stream)
	if err != nil {
		return b.fail("retract_post", err)
	}
	if err := post.Retract(); err != nil {
		return b.fail("retract_post", err)
	}
	if err := b.commit(ctx, postID.String(), post.Drain()); err != nil {
		return b.fail("retract_post", err)
	}
	metrics.RecordCommand("retract_post", nil)
	return nil
}

// StartFollow opens a relationship between two existing users.
func (b *Bus) StartFollow(ctx context.Context, followerID, followeeID domain.UserID) (domain.RelationshipID, error) {
	if followerID == followeeID {
		return "", b.fail("start_follow", domain.ErrSelfFollow)
	}
	for _, id := range []domain.UserID{followerID, followeeID} {
		if _, ok, err := b.store.Profile(ctx, id); err != nil {
			return "", b.fail("start_follow", err)
		} else if !ok {
			return "", b.fail("start_follow", domain.ErrUserNotFound)
		}
	}
	if _, exists, err := b.store.Relationship(ctx, followerID, followeeID); err != nil {
		return "", b.fail("start_follow", err)
	} else if exists {
		return "", b.fail("start_follow", domain.ErrAlreadyFollowing)
	}

	rel, err := domain.NewFollow(followerID, followeeID)
	if err != nil {
		return "", b.fail("start_follow", err)
	}
	if err := b.commit(ctx, rel.ID().String(), rel.Drain()); err != nil {
		return "", b.fail("start_follow", err)
	}
	metrics.RecordCommand("start_follow", nil)
	return rel.ID(), nil
}

// EndFollow closes the active relationship between the pair.
func (b *Bus) EndFollow(ctx context.Context, followerID, followeeID domain.UserID) error {
	for _, id := range []domain.UserID{followerID, followeeID} {
		if _, ok, err := b.store.Profile(ctx, id); err != nil {
			return b.fail("end_follow", err)
		} else if !ok {
			return b.fail("end_follow", domain.ErrUserNotFound)
		}
	}
	relID, exists, err := b.store.Relationship(ctx, followerID, followeeID)
	if err != nil {
		return b.fail("end_follow", err)
	}
	if !exists {
		return b.fail("end_follow", domain.ErrNotFollowing)
	}

	stream, err := b.log.Read(ctx, relID.String())
	if err != nil {
		return b.fail("end_follow", err)
	}
	rel, err := domain.RehydrateFollow(stream)
	if err != nil {
		return b.fail("end_follow", err)
	}
	if err := rel.End(); err != nil {
		return b.fail("end_follow", err)
	}
	if err := b.commit(ctx, relID.String(), rel.Drain()); err != nil {
		return b.fail("end_follow", err)
	}
	metrics.RecordCommand("end_follow", nil)
	return nil
}

// commit appends the batch, has it projected, and relays it. The
// deadline only guards the append: once events are in the log they are
// authoritative, so the projection wait ignores cancellation.
func (b *Bus) commit(ctx context.Context, aggregateID string, events []domain.Event) error {
	if err := ctx.Err(); err != nil {
		return deadline(err)
	}
	if err := b.log.Append(ctx, aggregateID, events); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return deadline(err)
		}
		return err
	}

	ticket, err := b.pipeline.Submit(events)
	if err != nil {
		return err
	}
	if err := b.pipeline.Wait(context.WithoutCancel(ctx), ticket); err != nil {
		return err
	}

	if b.publisher != nil {
		for _, e := range events {
			if _, err := b.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
				logger.Log.Warn("event relay publish failed",
					zap.String("event_id", e.Head().EventID),
					zap.String("kind", e.Kind().String()),
					zap.Error(err))
			}
		}
	}
	return nil
}

func deadline(cause error) error {
	return fmt.Errorf("%w: %s", ErrDeadline, cause)
}

func (b *Bus) fail(command string, err error) error {
	metrics.RecordCommand(command, err)
	return err
}
