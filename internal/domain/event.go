package domain

import "time"

// EventKind discriminates the closed set of domain events. The numeric
// values are part of the persisted record layout and must not change.
type EventKind uint8

const (
	KindUserRegistered EventKind = 1
	KindPostPublished  EventKind = 2
	KindPostRetracted  EventKind = 3
	KindFollowStarted  EventKind = 4
	KindFollowEnded    EventKind = 5
)

func (k EventKind) String() string {
	switch k {
	case KindUserRegistered:
		return "user_registered"
	case KindPostPublished:
		return "post_published"
	case KindPostRetracted:
		return "post_retracted"
	case KindFollowStarted:
		return "follow_started"
	case KindFollowEnded:
		return "follow_ended"
	default:
		return "unknown"
	}
}

// Header carries the identity every event records: a unique event id,
// the owning aggregate's stream id, the dense 1-based version within
// that stream, and the wall-clock emission time.
type Header struct {
	EventID     string    `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	Version     uint64    `json:"version"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Head lets any event expose its header through the Event interface.
func (h Header) Head() Header { return h }

// Event is a recorded fact. Concrete events embed Header; the set is
// closed and the kind values are stable.
type Event interface {
	Kind() EventKind
	Head() Header
}

// UserRegistered opens a user stream. The aggregate id is the user id.
type UserRegistered struct {
	Header   `json:"-"`
	Username Username `json:"username"`
}

func (UserRegistered) Kind() EventKind { return KindUserRegistered }

func (e UserRegistered) UserID() UserID { return UserID(e.AggregateID) }

// PostPublished opens a post stream. The aggregate id is the post id.
// PublishedAt equals OccurredAt and is kept on the payload because the
// read side sorts feeds by it.
type PostPublished struct {
	Header      `json:"-"`
	AuthorID    UserID    `json:"author_id"`
	Body        Body      `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

func (PostPublished) Kind() EventKind { return KindPostPublished }

func (e PostPublished) PostID() PostID { return PostID(e.AggregateID) }

// PostRetracted permanently removes a post from the read side. The
// payload is empty; the aggregate id names the post.
type PostRetracted struct {
	Header `json:"-"`
}

func (PostRetracted) Kind() EventKind { return KindPostRetracted }

func (e PostRetracted) PostID() PostID { return PostID(e.AggregateID) }

// FollowStarted opens a relationship stream. The aggregate id is the
// relationship id.
type FollowStarted struct {
	Header     `json:"-"`
	FollowerID UserID `json:"follower_id"`
	FolloweeID UserID `json:"followee_id"`
}

func (FollowStarted) Kind() EventKind { return KindFollowStarted }

func (e FollowStarted) RelationshipID() RelationshipID { return RelationshipID(e.AggregateID) }

// FollowEnded closes a relationship. It repeats the pair so the read
// side can update the graph without loading the stream.
type FollowEnded struct {
	Header     `json:"-"`
	FollowerID UserID `json:"follower_id"`
	FolloweeID UserID `json:"followee_id"`
}

func (FollowEnded) Kind() EventKind { return KindFollowEnded }

func (e FollowEnded) RelationshipID() RelationshipID { return RelationshipID(e.AggregateID) }
