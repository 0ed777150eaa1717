package eventlog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chirper/internal/domain"
)

// MemoryLog keeps every event in process memory. Appends to one stream
// serialize on the log mutex; the global slice preserves append order
// so ReadAll can break occurredAt ties deterministically.
type MemoryLog struct {
	mu      sync.RWMutex
	streams map[string][]domain.Event
	all     []domain.Event
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{streams: make(map[string][]domain.Event)}
}

func (l *MemoryLog) Append(ctx context.Context, aggregateID string, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stream := l.streams[aggregateID]
	last := uint64(0)
	if n := len(stream); n > 0 {
		last = stream[n-1].Head().Version
	}
	for i, e := range events {
		head := e.Head()
		if head.AggregateID != aggregateID {
			return fmt.Errorf("append to %s: event %s belongs to stream %s", aggregateID, head.EventID, head.AggregateID)
		}
		if head.Version != last+uint64(i)+1 {
			return fmt.Errorf("append to %s at version %d: %w", aggregateID, head.Version, ErrVersionConflict)
		}
	}

	l.streams[aggregateID] = append(stream, events...)
	l.all = append(l.all, events...)
	return nil
}

func (l *MemoryLog) Read(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	stream := l.streams[aggregateID]
	out := make([]domain.Event, len(stream))
	copy(out, stream)
	return out, nil
}

func (l *MemoryLog) ReadAll(ctx context.Context) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	out := make([]domain.Event, len(l.all))
	copy(out, l.all)
	l.mu.RUnlock()

	// Stable keeps append order for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Head().OccurredAt.Before(out[j].Head().OccurredAt)
	})
	return out, nil
}

func (l *MemoryLog) Exists(ctx context.Context, aggregateID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.streams[aggregateID]) > 0, nil
}

func (l *MemoryLog) Close() error { return nil }
