package domain

import "errors"

var (
	ErrSelfFollow       = errors.New("cannot follow yourself")
	ErrAlreadyFollowing = errors.New("already following this user")
	ErrNotFollowing     = errors.New("not following this user")
	ErrNotActive        = errors.New("follow relationship already ended")
)

// FollowRelationship is one directed follower->followee edge with its
// own stream. Ending it is permanent; a refollow opens a new
// relationship under a new id.
type FollowRelationship struct {
	aggregate
	follower UserID
	followee UserID
	active   bool
}

// NewFollow emits FollowStarted under a fresh relationship id. The
// at-most-one-active-edge rule is enforced by the command layer.
func NewFollow(follower, followee UserID) (*FollowRelationship, error) {
	if follower == followee {
		return nil, ErrSelfFollow
	}
	r := &FollowRelationship{}
	r.id = NewRelationshipID().String()
	ev := FollowStarted{Header: r.nextHeader(), FollowerID: follower, FolloweeID: followee}
	r.apply(ev)
	r.emit(ev)
	return r, nil
}

// RehydrateFollow folds a relationship stream back into current state.
func RehydrateFollow(events []Event) (*FollowRelationship, error) {
	if len(events) == 0 {
		return nil, ErrEmptyStream
	}
	if _, ok := events[0].(FollowStarted); !ok {
		return nil, ErrEmptyStream
	}
	r := &FollowRelationship{}
	r.id = events[0].Head().AggregateID
	for _, e := range events {
		r.apply(e)
	}
	return r, nil
}

func (r *FollowRelationship) apply(e Event) {
	switch ev := e.(type) {
	case FollowStarted:
		r.follower = ev.FollowerID
		r.followee = ev.FolloweeID
		r.active = true
	case FollowEnded:
		r.active = false
	}
	r.fold(e)
}

// End emits FollowEnded, repeating the pair for the read side.
func (r *FollowRelationship) End() error {
	if !r.active {
		return ErrNotActive
	}
	ev := FollowEnded{Header: r.nextHeader(), FollowerID: r.follower, FolloweeID: r.followee}
	r.apply(ev)
	r.emit(ev)
	return nil
}

func (r *FollowRelationship) ID() RelationshipID { return RelationshipID(r.id) }
func (r *FollowRelationship) Follower() UserID   { return r.follower }
func (r *FollowRelationship) Followee() UserID   { return r.followee }
func (r *FollowRelationship) Active() bool       { return r.active }
