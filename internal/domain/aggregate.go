package domain

import (
	"errors"

	"github.com/google/uuid"
)

// ErrEmptyStream is returned when rehydration is attempted on an empty
// stream or on a stream whose first event belongs to another aggregate
// kind.
var ErrEmptyStream = errors.New("empty or foreign event stream")

// aggregate holds the lifecycle shared by every aggregate root: the
// stream id, the version of the last event folded in, and the buffer
// of decided-but-unappended events.
type aggregate struct {
	id          string
	version     uint64
	uncommitted []Event
}

// nextHeader stamps the header for a new decision: fresh event id, the
// next dense version, and the emission time.
func (a *aggregate) nextHeader() Header {
	return Header{
		EventID:     uuid.NewString(),
		AggregateID: a.id,
		Version:     a.version + 1,
		OccurredAt:  TimeFunc(),
	}
}

// fold advances the version to the event's. Concrete aggregates call it
// from their apply functions so rehydration and emission share one
// path.
func (a *aggregate) fold(e Event) {
	a.version = e.Head().Version
}

// emit buffers a decided event for Drain.
func (a *aggregate) emit(e Event) {
	a.uncommitted = append(a.uncommitted, e)
}

// Version is the version of the last event applied or emitted; zero for
// a fresh aggregate.
func (a *aggregate) Version() uint64 { return a.version }

// Drain returns the uncommitted events in decision order and clears the
// buffer. The caller appends them to the log.
func (a *aggregate) Drain() []Event {
	out := a.uncommitted
	a.uncommitted = nil
	return out
}
