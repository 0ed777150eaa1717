package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBodyLength is the post body limit in Unicode code points.
const MaxBodyLength = 280

var (
	ErrInvalidBody      = errors.New("post body must be non-empty and at most 280 characters")
	ErrPostNotFound     = errors.New("post not found")
	ErrNotAuthor        = errors.New("not the author of this post")
	ErrAlreadyRetracted = errors.New("post already retracted")
)

// Body is a validated post body: surrounding whitespace trimmed,
// non-empty, at most MaxBodyLength code points.
type Body string

func ParseBody(raw string) (Body, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > MaxBodyLength {
		return "", ErrInvalidBody
	}
	return Body(trimmed), nil
}

func (b Body) String() string { return string(b) }

// Post is the publication aggregate: published once, optionally
// retracted once. Retraction is permanent.
type Post struct {
	aggregate
	author      UserID
	body        Body
	publishedAt time.Time
	retracted   bool
}

// NewPost validates the body and emits PostPublished under a fresh post
// id. Author existence is a command-layer precondition.
func NewPost(author UserID, rawBody string) (*Post, error) {
	body, err := ParseBody(rawBody)
	if err != nil {
		return nil, err
	}
	p := &Post{}
	p.id = NewPostID().String()
	head := p.nextHeader()
	ev := PostPublished{Header: head, AuthorID: author, Body: body, PublishedAt: head.OccurredAt}
	p.apply(ev)
	p.emit(ev)
	return p, nil
}

// RehydratePost folds a post stream back into current state.
func RehydratePost(events []Event) (*Post, error) {
	if len(events) == 0 {
		return nil, ErrEmptyStream
	}
	if _, ok := events[0].(PostPublished); !ok {
		return nil, ErrEmptyStream
	}
	p := &Post{}
	p.id = events[0].Head().AggregateID
	for _, e := range events {
		p.apply(e)
	}
	return p, nil
}

func (p *Post) apply(e Event) {
	switch ev := e.(type) {
	case PostPublished:
		p.author = ev.AuthorID
		p.body = ev.Body
		p.publishedAt = ev.PublishedAt
	case PostRetracted:
		p.retracted = true
	}
	p.fold(e)
}

// Retract emits PostRetracted. The caller-is-author check belongs to
// the command layer; the aggregate only refuses a second retraction.
func (p *Post) Retract() error {
	if p.retracted {
		return ErrAlreadyRetracted
	}
	ev := PostRetracted{Header: p.nextHeader()}
	p.apply(ev)
	p.emit(ev)
	return nil
}

func (p *Post) ID() PostID             { return PostID(p.id) }
func (p *Post) Author() UserID         { return p.author }
func (p *Post) Body() Body             { return p.body }
func (p *Post) PublishedAt() time.Time { return p.publishedAt }
func (p *Post) Retracted() bool        { return p.retracted }
