package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chirper/internal/domain"
	"chirper/internal/logger"
)

// Publisher pushes committed events onto the relay stream.
type Publisher interface {
	// Publish appends one event and returns the stream message id.
	Publish(ctx context.Context, e domain.Event) (string, error)
}

// RedisPublisher implements Publisher with XADD on a capped stream.
type RedisPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewPublisher builds the relay publisher. maxLen caps the stream with
// approximate trimming (XADD MAXLEN ~).
func NewPublisher(client *redis.Client, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, e domain.Event) (string, error) {
	env, err := NewEnvelope(e)
	if err != nil {
		return "", err
	}
	values, err := env.ToMap()
	if err != nil {
		return "", err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamEvents,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", StreamEvents, err)
	}

	logger.Log.Debug("event relayed",
		zap.String("kind", env.Kind),
		zap.String("event_id", env.EventID),
		zap.String("msg_id", id))
	return id, nil
}
