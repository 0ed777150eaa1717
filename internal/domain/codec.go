package domain

import (
	"encoding/json"
	"fmt"
)

// EncodePayload serializes an event's kind-specific fields as JSON. The
// header is carried separately by whoever stores the event.
func EncodePayload(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Kind(), err)
	}
	return payload, nil
}

// DecodeEvent rebuilds a typed event from its kind, header, and JSON
// payload.
func DecodeEvent(kind EventKind, head Header, payload []byte) (Event, error) {
	switch kind {
	case KindUserRegistered:
		var e UserRegistered
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		e.Header = head
		return e, nil
	case KindPostPublished:
		var e PostPublished
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		e.Header = head
		return e, nil
	case KindPostRetracted:
		return PostRetracted{Header: head}, nil
	case KindFollowStarted:
		var e FollowStarted
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		e.Header = head
		return e, nil
	case KindFollowEnded:
		var e FollowEnded
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		e.Header = head
		return e, nil
	default:
		return nil, fmt.Errorf("decode event: unknown kind %d", kind)
	}
}
