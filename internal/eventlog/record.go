package eventlog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"chirper/internal/domain"
)

// Binary record layout, big-endian, stable across releases:
//
//	eventId      16 bytes (raw uuid)
//	aggregateId  16 bytes (raw uuid)
//	version      uint64
//	kind         uint8
//	occurredAt   int64 unix nanoseconds
//	body         kind-specific; strings are uvarint length + UTF-8
//
// Streamed records (segments) are framed with a uvarint record length.

const (
	recordHeadLen = 16 + 16 + 8 + 1 + 8

	// maxRecordSize bounds a framed read; the largest legal body is a
	// PostPublished with a 280-rune UTF-8 body.
	maxRecordSize = 1 << 16
)

var errTruncatedRecord = errors.New("truncated event record")

// EncodeRecord serializes one event to the persisted record layout.
func EncodeRecord(e domain.Event) ([]byte, error) {
	head := e.Head()
	eventID, err := uuid.Parse(head.EventID)
	if err != nil {
		return nil, fmt.Errorf("encode record: event id: %w", err)
	}
	aggregateID, err := uuid.Parse(head.AggregateID)
	if err != nil {
		return nil, fmt.Errorf("encode record: aggregate id: %w", err)
	}

	buf := make([]byte, 0, recordHeadLen+64)
	buf = append(buf, eventID[:]...)
	buf = append(buf, aggregateID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, head.Version)
	buf = append(buf, byte(e.Kind()))
	buf = binary.BigEndian.AppendUint64(buf, uint64(head.OccurredAt.UnixNano()))

	switch ev := e.(type) {
	case domain.UserRegistered:
		buf = appendString(buf, ev.Username.String())
	case domain.PostPublished:
		author, err := uuid.Parse(ev.AuthorID.String())
		if err != nil {
			return nil, fmt.Errorf("encode record: author id: %w", err)
		}
		buf = append(buf, author[:]...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(ev.PublishedAt.UnixNano()))
		buf = appendString(buf, ev.Body.String())
	case domain.PostRetracted:
		// Empty body; the aggregate id names the post.
	case domain.FollowStarted:
		buf, err = appendUserPair(buf, ev.FollowerID, ev.FolloweeID)
		if err != nil {
			return nil, err
		}
	case domain.FollowEnded:
		buf, err = appendUserPair(buf, ev.FollowerID, ev.FolloweeID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("encode record: unknown kind %d", e.Kind())
	}
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendUserPair(buf []byte, a, b domain.UserID) ([]byte, error) {
	ua, err := uuid.Parse(a.String())
	if err != nil {
		return nil, fmt.Errorf("encode record: follower id: %w", err)
	}
	ub, err := uuid.Parse(b.String())
	if err != nil {
		return nil, fmt.Errorf("encode record: followee id: %w", err)
	}
	buf = append(buf, ua[:]...)
	return append(buf, ub[:]...), nil
}

// DecodeRecord parses one unframed record. Unknown kinds, truncated
// input, and trailing bytes are rejected.
func DecodeRecord(b []byte) (domain.Event, error) {
	r := recordReader{b: b}

	eventID, err := r.takeUUID()
	if err != nil {
		return nil, err
	}
	aggregateID, err := r.takeUUID()
	if err != nil {
		return nil, err
	}
	version, err := r.takeUint64()
	if err != nil {
		return nil, err
	}
	kindByte, err := r.takeByte()
	if err != nil {
		return nil, err
	}
	occurredNs, err := r.takeUint64()
	if err != nil {
		return nil, err
	}

	head := domain.Header{
		EventID:     eventID,
		AggregateID: aggregateID,
		Version:     version,
		OccurredAt:  time.Unix(0, int64(occurredNs)).UTC(),
	}

	var event domain.Event
	switch domain.EventKind(kindByte) {
	case domain.KindUserRegistered:
		username, err := r.takeString()
		if err != nil {
			return nil, err
		}
		event = domain.UserRegistered{Header: head, Username: domain.Username(username)}
	case domain.KindPostPublished:
		author, err := r.takeUUID()
		if err != nil {
			return nil, err
		}
		publishedNs, err := r.takeUint64()
		if err != nil {
			return nil, err
		}
		body, err := r.takeString()
		if err != nil {
			return nil, err
		}
		event = domain.PostPublished{
			Header:      head,
			AuthorID:    domain.UserID(author),
			Body:        domain.Body(body),
			PublishedAt: time.Unix(0, int64(publishedNs)).UTC(),
		}
	case domain.KindPostRetracted:
		event = domain.PostRetracted{Header: head}
	case domain.KindFollowStarted:
		follower, followee, err := r.takeUUIDPair()
		if err != nil {
			return nil, err
		}
		event = domain.FollowStarted{Header: head, FollowerID: follower, FolloweeID: followee}
	case domain.KindFollowEnded:
		follower, followee, err := r.takeUUIDPair()
		if err != nil {
			return nil, err
		}
		event = domain.FollowEnded{Header: head, FollowerID: follower, FolloweeID: followee}
	default:
		return nil, fmt.Errorf("decode record: unknown kind %d", kindByte)
	}

	if r.off != len(r.b) {
		return nil, fmt.Errorf("decode record: %d trailing bytes", len(r.b)-r.off)
	}
	return event, nil
}

// WriteRecord frames and writes one record.
func WriteRecord(w io.Writer, e domain.Event) error {
	rec, err := EncodeRecord(e)
	if err != nil {
		return err
	}
	var frame [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(frame[:], uint64(len(rec)))
	if _, err := w.Write(frame[:n]); err != nil {
		return fmt.Errorf("write record frame: %w", err)
	}
	if _, err := w.Write(rec); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// ReadRecord reads one framed record. It returns io.EOF at a clean
// segment end.
func ReadRecord(r *bufio.Reader) (domain.Event, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read record frame: %w", err)
	}
	if size == 0 || size > maxRecordSize {
		return nil, fmt.Errorf("read record: implausible size %d", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read record body: %w", err)
	}
	return DecodeRecord(buf)
}

type recordReader struct {
	b   []byte
	off int
}

func (r *recordReader) take(n int) ([]byte, error) {
	if r.off+n > len(r.b) {
		return nil, errTruncatedRecord
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *recordReader) takeUUID() (string, error) {
	raw, err := r.take(16)
	if err != nil {
		return "", err
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode record: %w", err)
	}
	return id.String(), nil
}

func (r *recordReader) takeUUIDPair() (domain.UserID, domain.UserID, error) {
	a, err := r.takeUUID()
	if err != nil {
		return "", "", err
	}
	b, err := r.takeUUID()
	if err != nil {
		return "", "", err
	}
	return domain.UserID(a), domain.UserID(b), nil
}

func (r *recordReader) takeUint64() (uint64, error) {
	raw, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (r *recordReader) takeByte() (byte, error) {
	raw, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return raw[0], nil
}

func (r *recordReader) takeString() (string, error) {
	size, n := binary.Uvarint(r.b[r.off:])
	if n <= 0 {
		return "", errTruncatedRecord
	}
	r.off += n
	// Check against the remaining bytes before narrowing to int: a
	// crafted length near MaxUint64 would otherwise go negative and
	// slice with inverted bounds.
	if size > uint64(len(r.b)-r.off) {
		return "", errTruncatedRecord
	}
	raw, err := r.take(int(size))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
