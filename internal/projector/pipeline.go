package projector

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"chirper/internal/domain"
	"chirper/internal/eventlog"
	"chirper/internal/logger"
	"chirper/internal/readstore"
)

// ErrProjectionFailed is latched once an Apply fails. Every Wait after
// that fails with it; the store can no longer be trusted and must be
// rebuilt by replay.
var ErrProjectionFailed = errors.New("projection failed; read store requires replay")

// ErrPipelineStopped is returned by Submit and Wait after Stop.
var ErrPipelineStopped = errors.New("projection pipeline stopped")

// Ticket identifies a submitted batch's position in the global order.
// Wait(ticket) returns once the projector has applied through it.
type Ticket uint64

type batch struct {
	events []domain.Event
	ticket Ticket
}

// Pipeline serializes projection. One goroutine drains submitted
// batches in submission order and applies their events one at a time,
// so every event is a single linearization point for the read store.
// Commands submit right after a successful append, while still holding
// no locks; Wait gives them read-your-writes.
type Pipeline struct {
	projector *Projector

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []batch
	issued   Ticket // last ticket handed out
	applied  Ticket // last ticket fully applied
	fatalErr error
	stopped  bool

	wake chan struct{}
	done chan struct{}
}

// NewPipeline builds a pipeline over the projector. Call Start before
// submitting.
func NewPipeline(p *Projector) *Pipeline {
	pl := &Pipeline{
		projector: p,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	pl.cond = sync.NewCond(&pl.mu)
	return pl
}

// Start launches the applier goroutine.
func (pl *Pipeline) Start() {
	go pl.run()
	logger.Log.Info("projection pipeline started")
}

// Stop drains nothing: queued batches past the current one are
// abandoned and their waiters released with ErrPipelineStopped. The
// log already holds their events; a restart replays them.
func (pl *Pipeline) Stop() {
	pl.mu.Lock()
	if pl.stopped {
		pl.mu.Unlock()
		return
	}
	pl.stopped = true
	pl.cond.Broadcast()
	pl.mu.Unlock()

	select {
	case pl.wake <- struct{}{}:
	default:
	}
	<-pl.done
	logger.Log.Info("projection pipeline stopped")
}

// Submit enqueues an appended batch and returns its ticket. The batch
// must already be durable in the log.
func (pl *Pipeline) Submit(events []domain.Event) (Ticket, error) {
	pl.mu.Lock()
	if pl.stopped {
		pl.mu.Unlock()
		return 0, ErrPipelineStopped
	}
	if pl.fatalErr != nil {
		pl.mu.Unlock()
		return 0, ErrProjectionFailed
	}
	pl.issued++
	t := pl.issued
	pl.queue = append(pl.queue, batch{events: events, ticket: t})
	pl.mu.Unlock()

	select {
	case pl.wake <- struct{}{}:
	default:
	}
	return t, nil
}

// Wait blocks until the projector applied through the ticket, the
// pipeline failed or stopped, or the context ended. Events behind a
// ticket are authoritative once appended, so a context error here
// means "not yet visible", never "undone".
func (pl *Pipeline) Wait(ctx context.Context, t Ticket) error {
	// cond has no context support; a watcher goroutine converts
	// cancellation into a broadcast.
	stop := context.AfterFunc(ctx, func() {
		pl.mu.Lock()
		pl.cond.Broadcast()
		pl.mu.Unlock()
	})
	defer stop()

	pl.mu.Lock()
	defer pl.mu.Unlock()
	for {
		if pl.fatalErr != nil {
			return ErrProjectionFailed
		}
		if pl.applied >= t {
			return nil
		}
		if pl.stopped {
			return ErrPipelineStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		pl.cond.Wait()
	}
}

// Err reports the latched projection error, if any.
func (pl *Pipeline) Err() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.fatalErr != nil {
		return ErrProjectionFailed
	}
	return nil
}

func (pl *Pipeline) run() {
	defer close(pl.done)
	ctx := context.Background()

	for {
		pl.mu.Lock()
		for len(pl.queue) == 0 && !pl.stopped {
			pl.mu.Unlock()
			<-pl.wake
			pl.mu.Lock()
		}
		if pl.stopped {
			pl.mu.Unlock()
			return
		}
		next := pl.queue[0]
		pl.queue = pl.queue[1:]
		failed := pl.fatalErr != nil
		pl.mu.Unlock()

		if !failed {
			for _, e := range next.events {
				if err := pl.projector.Apply(ctx, e); err != nil {
					pl.mu.Lock()
					pl.fatalErr = err
					pl.cond.Broadcast()
					pl.mu.Unlock()
					logger.Log.Error("pipeline latched projection failure",
						zap.Uint64("ticket", uint64(next.ticket)),
						zap.Error(err))
					break
				}
			}
		}

		pl.mu.Lock()
		pl.applied = next.ticket
		pl.cond.Broadcast()
		pl.mu.Unlock()
	}
}

// Replay rebuilds the read store from the full log: reset, then apply
// every event in global order. Startup recovery and the admin tooling
// run it before the pipeline accepts live traffic.
func Replay(ctx context.Context, log eventlog.Log, store *readstore.Store, workers int, observer Observer) (readstore.Stats, error) {
	events, err := log.ReadAll(ctx)
	if err != nil {
		return readstore.Stats{}, err
	}
	if err := store.Reset(ctx); err != nil {
		return readstore.Stats{}, err
	}

	p := New(store, workers, observer)
	for _, e := range events {
		if err := p.Apply(ctx, e); err != nil {
			return readstore.Stats{}, err
		}
	}

	stats, err := store.Snapshot(ctx)
	if err != nil {
		return readstore.Stats{}, err
	}
	logger.Log.Info("replay complete",
		zap.Int("events", len(events)),
		zap.Int("profiles", stats.Profiles),
		zap.Int("posts", stats.Posts),
		zap.Int("edges", stats.Edges))
	return stats, nil
}
