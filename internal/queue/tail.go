package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chirper/internal/logger"
)

// tailBlock bounds each XREAD so the loop can notice context
// cancellation.
const tailBlock = 5 * time.Second

// Tailer follows the relay stream.
type Tailer struct {
	client *redis.Client
}

func NewTailer(client *redis.Client) *Tailer {
	return &Tailer{client: client}
}

// Tail invokes fn for every envelope published after the call starts,
// until the context ends or fn returns an error. Malformed entries are
// logged and skipped.
func (t *Tailer) Tail(ctx context.Context, fn func(Envelope) error) error {
	lastID := "$"
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := t.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{StreamEvents, lastID},
			Count:   64,
			Block:   tailBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue // block timeout, poll again
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("xread %s: %w", StreamEvents, err)
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				lastID = msg.ID
				env, err := ParseEnvelope(msg.Values)
				if err != nil {
					logger.Log.Warn("skipping malformed relay entry",
						zap.String("msg_id", msg.ID), zap.Error(err))
					continue
				}
				if err := fn(env); err != nil {
					return err
				}
			}
		}
	}
}
