package domain

import "errors"

var (
	ErrInvalidUsername = errors.New("username must be 3-20 characters of letters, digits, or underscore")
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
)

// Username is a validated handle: 3-20 characters, [A-Za-z0-9_].
type Username string

func ParseUsername(raw string) (Username, error) {
	if len(raw) < 3 || len(raw) > 20 {
		return "", ErrInvalidUsername
	}
	for _, c := range raw {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return "", ErrInvalidUsername
		}
	}
	return Username(raw), nil
}

func (u Username) String() string { return string(u) }

// User is the registration aggregate. Its stream holds a single
// UserRegistered event; username uniqueness is a cross-aggregate rule
// enforced by the command layer against the read store.
type User struct {
	aggregate
	username Username
}

// NewUser validates the handle and emits UserRegistered under a fresh
// user id.
func NewUser(rawUsername string) (*User, error) {
	username, err := ParseUsername(rawUsername)
	if err != nil {
		return nil, err
	}
	u := &User{}
	u.id = NewUserID().String()
	ev := UserRegistered{Header: u.nextHeader(), Username: username}
	u.apply(ev)
	u.emit(ev)
	return u, nil
}

// RehydrateUser folds a user stream back into current state.
func RehydrateUser(events []Event) (*User, error) {
	if len(events) == 0 {
		return nil, ErrEmptyStream
	}
	if _, ok := events[0].(UserRegistered); !ok {
		return nil, ErrEmptyStream
	}
	u := &User{}
	u.id = events[0].Head().AggregateID
	for _, e := range events {
		u.apply(e)
	}
	return u, nil
}

func (u *User) apply(e Event) {
	if ev, ok := e.(UserRegistered); ok {
		u.username = ev.Username
	}
	u.fold(e)
}

func (u *User) ID() UserID         { return UserID(u.id) }
func (u *User) Username() Username { return u.username }
