// Package queue relays committed domain events to a capped Redis
// Stream so external consumers (search indexers, notification senders,
// the chirpctl tail command) can follow the write path without
// touching the event log. The relay is best effort: the log is the
// authority and a missed relay entry is recoverable by replay.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"chirper/internal/domain"
)

// StreamEvents is the relay stream key.
const StreamEvents = "chirper:events"

// Envelope is the wire form of one relayed event. Payload carries the
// kind-specific fields as nested JSON.
type Envelope struct {
	EventID     string          `json:"event_id"`
	Kind        string          `json:"kind"`
	AggregateID string          `json:"aggregate_id"`
	Version     uint64          `json:"version"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a domain event for the stream.
func NewEnvelope(e domain.Event) (Envelope, error) {
	payload, err := domain.EncodePayload(e)
	if err != nil {
		return Envelope{}, err
	}
	head := e.Head()
	return Envelope{
		EventID:     head.EventID,
		Kind:        e.Kind().String(),
		AggregateID: head.AggregateID,
		Version:     head.Version,
		OccurredAt:  head.OccurredAt,
		Payload:     payload,
	}, nil
}

// ToMap flattens the envelope for XADD. The whole envelope travels in
// one "data" field; "kind" is duplicated as its own field so consumers
// can filter without unmarshalling.
func (e Envelope) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return map[string]interface{}{
		"kind": e.Kind,
		"data": string(data),
	}, nil
}

// ParseEnvelope rebuilds an envelope from stream message values.
func ParseEnvelope(values map[string]interface{}) (Envelope, error) {
	data, ok := values["data"].(string)
	if !ok {
		return Envelope{}, fmt.Errorf("stream message has no data field")
	}
	var env Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}
