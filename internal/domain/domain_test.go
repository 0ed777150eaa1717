package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// steppingClock makes OccurredAt strictly increasing and deterministic.
func steppingClock(t *testing.T) func() time.Time {
	t.Helper()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}

func withClock(t *testing.T) {
	t.Helper()
	old := TimeFunc
	TimeFunc = steppingClock(t)
	t.Cleanup(func() { TimeFunc = old })
}

func TestParseUsername(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"valid simple", "alice", nil},
		{"valid with underscore and digits", "bob_42", nil},
		{"valid min length", "abc", nil},
		{"valid max length", strings.Repeat("a", 20), nil},
		{"too short", "ab", ErrInvalidUsername},
		{"too long", strings.Repeat("a", 21), ErrInvalidUsername},
		{"empty", "", ErrInvalidUsername},
		{"space", "ali ce", ErrInvalidUsername},
		{"hyphen", "ali-ce", ErrInvalidUsername},
		{"non ascii", "ålice", ErrInvalidUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUsername(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseUsername(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr == nil && got.String() != tt.raw {
				t.Errorf("ParseUsername(%q) = %q, want input unchanged", tt.raw, got)
			}
		})
	}
}

func TestParseBody(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{"valid", "hello world", "hello world", nil},
		{"trims whitespace", "  hi there\n", "hi there", nil},
		{"exactly 280 runes", strings.Repeat("x", 280), strings.Repeat("x", 280), nil},
		{"281 runes", strings.Repeat("x", 281), "", ErrInvalidBody},
		{"280 multibyte runes", strings.Repeat("é", 280), strings.Repeat("é", 280), nil},
		{"281 multibyte runes", strings.Repeat("é", 281), "", ErrInvalidBody},
		{"empty", "", "", ErrInvalidBody},
		{"whitespace only", "   \t\n", "", ErrInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBody(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseBody error = %v, want %v", err, tt.wantErr)
			}
			if got.String() != tt.want {
				t.Errorf("ParseBody = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewUser(t *testing.T) {
	withClock(t)

	u, err := NewUser("alice")
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if u.Username().String() != "alice" {
		t.Errorf("username = %q, want alice", u.Username())
	}
	if u.Version() != 1 {
		t.Errorf("version = %d, want 1", u.Version())
	}

	events := u.Drain()
	if len(events) != 1 {
		t.Fatalf("drained %d events, want 1", len(events))
	}
	ev, ok := events[0].(UserRegistered)
	if !ok {
		t.Fatalf("event = %T, want UserRegistered", events[0])
	}
	if ev.Version != 1 || ev.AggregateID != u.ID().String() {
		t.Errorf("header = %+v, want version 1 on stream %s", ev.Header, u.ID())
	}
	if ev.EventID == "" || ev.OccurredAt.IsZero() {
		t.Error("event id and occurredAt must be stamped at emission")
	}
	if got := u.Drain(); len(got) != 0 {
		t.Errorf("second drain returned %d events, want 0", len(got))
	}
}

func TestNewPost(t *testing.T) {
	withClock(t)

	p, err := NewPost("author-1", "  first!  ")
	if err != nil {
		t.Fatalf("NewPost: %v", err)
	}
	events := p.Drain()
	if len(events) != 1 {
		t.Fatalf("drained %d events, want 1", len(events))
	}
	ev := events[0].(PostPublished)
	if ev.Body.String() != "first!" {
		t.Errorf("body = %q, want trimmed", ev.Body)
	}
	if !ev.PublishedAt.Equal(ev.OccurredAt) {
		t.Error("publishedAt must equal occurredAt")
	}
	if p.Retracted() {
		t.Error("fresh post must not be retracted")
	}

	if _, err := NewPost("author-1", " "); !errors.Is(err, ErrInvalidBody) {
		t.Errorf("blank body error = %v, want ErrInvalidBody", err)
	}
}

func TestPostRetract(t *testing.T) {
	withClock(t)

	p, err := NewPost("author-1", "soon gone")
	if err != nil {
		t.Fatalf("NewPost: %v", err)
	}
	p.Drain()

	if err := p.Retract(); err != nil {
		t.Fatalf("Retract: %v", err)
	}
	events := p.Drain()
	if len(events) != 1 {
		t.Fatalf("drained %d events, want 1", len(events))
	}
	if events[0].Kind() != KindPostRetracted || events[0].Head().Version != 2 {
		t.Errorf("event = %v v%d, want post_retracted v2", events[0].Kind(), events[0].Head().Version)
	}
	if !p.Retracted() {
		t.Error("post must report retracted")
	}

	if err := p.Retract(); !errors.Is(err, ErrAlreadyRetracted) {
		t.Errorf("second retract error = %v, want ErrAlreadyRetracted", err)
	}
}

func TestFollowLifecycle(t *testing.T) {
	withClock(t)

	if _, err := NewFollow("u1", "u1"); !errors.Is(err, ErrSelfFollow) {
		t.Fatalf("self follow error = %v, want ErrSelfFollow", err)
	}

	r, err := NewFollow("u1", "u2")
	if err != nil {
		t.Fatalf("NewFollow: %v", err)
	}
	if !r.Active() {
		t.Error("fresh relationship must be active")
	}
	started := r.Drain()[0].(FollowStarted)
	if started.FollowerID != "u1" || started.FolloweeID != "u2" {
		t.Errorf("pair = %s->%s, want u1->u2", started.FollowerID, started.FolloweeID)
	}

	if err := r.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	ended := r.Drain()[0].(FollowEnded)
	if ended.Version != 2 || ended.FollowerID != "u1" || ended.FolloweeID != "u2" {
		t.Errorf("FollowEnded = %+v, want v2 repeating the pair", ended)
	}

	if err := r.End(); !errors.Is(err, ErrNotActive) {
		t.Errorf("second end error = %v, want ErrNotActive", err)
	}
}

func TestRehydrate(t *testing.T) {
	withClock(t)

	t.Run("empty stream", func(t *testing.T) {
		if _, err := RehydrateUser(nil); !errors.Is(err, ErrEmptyStream) {
			t.Errorf("error = %v, want ErrEmptyStream", err)
		}
	})

	t.Run("wrong first kind", func(t *testing.T) {
		p, _ := NewPost("author-1", "hello")
		if _, err := RehydrateUser(p.Drain()); !errors.Is(err, ErrEmptyStream) {
			t.Errorf("error = %v, want ErrEmptyStream", err)
		}
	})

	t.Run("post round trip", func(t *testing.T) {
		p, _ := NewPost("author-1", "hello")
		if err := p.Retract(); err != nil {
			t.Fatalf("Retract: %v", err)
		}
		stream := p.Drain()

		got, err := RehydratePost(stream)
		if err != nil {
			t.Fatalf("RehydratePost: %v", err)
		}
		if got.ID() != p.ID() || got.Author() != "author-1" || !got.Retracted() || got.Version() != 2 {
			t.Errorf("rehydrated post = %s author=%s retracted=%v v%d, want original state",
				got.ID(), got.Author(), got.Retracted(), got.Version())
		}
		if err := got.Retract(); !errors.Is(err, ErrAlreadyRetracted) {
			t.Errorf("retract after rehydrate error = %v, want ErrAlreadyRetracted", err)
		}
	})

	t.Run("follow round trip continues versions", func(t *testing.T) {
		r, _ := NewFollow("u1", "u2")
		stream := r.Drain()

		got, err := RehydrateFollow(stream)
		if err != nil {
			t.Fatalf("RehydrateFollow: %v", err)
		}
		if err := got.End(); err != nil {
			t.Fatalf("End after rehydrate: %v", err)
		}
		ended := got.Drain()
		if len(ended) != 1 || ended[0].Head().Version != 2 {
			t.Fatalf("ended = %d events v%d, want one event at v2", len(ended), ended[0].Head().Version)
		}
		t.Log("✓ versions stay dense across rehydration")
	})
}
