// Package eventlog stores the authoritative append-only stream of
// domain events, partitioned by aggregate id. Two implementations ship:
// an in-memory log for tests and single-process setups, and a SQL log
// (PostgreSQL or SQLite) for durability. Replaying ReadAll into a fresh
// read store reproduces the full application state.
package eventlog

import (
	"context"
	"errors"

	"chirper/internal/domain"
)

// ErrVersionConflict signals an optimistic concurrency failure: the
// stream advanced past the version the writer rehydrated at. Callers
// may retry after reloading the aggregate.
var ErrVersionConflict = errors.New("version conflict: stream advanced past expected version")

// Log is the append-only event store.
//
// Append is atomic per batch and fails with ErrVersionConflict unless
// the batch continues the stream densely at lastStoredVersion+1.
// ReadAll yields every event across all streams in one deterministic
// global order: occurredAt ascending, append order breaking ties.
type Log interface {
	Append(ctx context.Context, aggregateID string, events []domain.Event) error
	Read(ctx context.Context, aggregateID string) ([]domain.Event, error)
	ReadAll(ctx context.Context) ([]domain.Event, error)
	Exists(ctx context.Context, aggregateID string) (bool, error)
	Close() error
}
