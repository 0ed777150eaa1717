// Package readstore holds the query-side projection state: profiles,
// posts, the follow graph, bounded timelines, and the celebrity post
// index. Everything here is derived from the event log and can be
// rebuilt from scratch by replay; nothing is authoritative.
package readstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"chirper/internal/domain"
)

// Profile is the read-side user row.
type Profile struct {
	UserID   domain.UserID   `json:"user_id"`
	Username domain.Username `json:"username"`
}

// Post is the read-side post row, denormalized with the author's handle
// so feeds render without a second lookup.
type Post struct {
	PostID         domain.PostID   `json:"post_id"`
	AuthorID       domain.UserID   `json:"author_id"`
	AuthorUsername domain.Username `json:"author_username"`
	Body           domain.Body     `json:"body"`
	PublishedAt    time.Time       `json:"published_at"`
}

// TimelineEntry is what fan-out pushes into a timeline. PublishedAt is
// the ordering score for backends that sort rather than prepend.
type TimelineEntry struct {
	PostID      domain.PostID
	PublishedAt time.Time
}

// TimelineStore holds the bounded per-user timelines. Implementations
// must keep each timeline newest-first, free of duplicate post ids, and
// truncated to the configured cap.
type TimelineStore interface {
	Push(ctx context.Context, owner domain.UserID, entry TimelineEntry) error
	Remove(ctx context.Context, owner domain.UserID, postID domain.PostID) error
	RemoveMany(ctx context.Context, owner domain.UserID, postIDs []domain.PostID) error
	List(ctx context.Context, owner domain.UserID) ([]domain.PostID, error)
	Reset(ctx context.Context) error
}

// Stats summarizes store contents after a replay.
type Stats struct {
	Profiles int
	Posts    int
	Edges    int
}

type pairKey struct {
	follower domain.UserID
	followee domain.UserID
}

// Store is the projection state. The maps live in memory behind one
// RWMutex; timelines are delegated to a TimelineStore so deployments
// can keep them in Redis. A Store is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	profiles   map[domain.UserID]Profile
	byUsername map[domain.Username]domain.UserID

	posts    map[domain.PostID]Post
	byAuthor map[domain.UserID][]domain.PostID // newest first, live posts only

	outgoing map[domain.UserID]map[domain.UserID]struct{}
	incoming map[domain.UserID]map[domain.UserID]struct{}
	rels     map[pairKey]domain.RelationshipID

	celebPosts    map[domain.PostID]domain.UserID
	celebByAuthor map[domain.UserID]map[domain.PostID]struct{}

	timelines          TimelineStore
	celebrityThreshold int
}

// New builds a Store around the given timeline backend.
// celebrityThreshold is the incoming-edge count at which an author
// stops being fanned out.
func New(timelines TimelineStore, celebrityThreshold int) *Store {
	s := &Store{
		timelines:          timelines,
		celebrityThreshold: celebrityThreshold,
	}
	s.resetMaps()
	return s
}

func (s *Store) resetMaps() {
	s.profiles = make(map[domain.UserID]Profile)
	s.byUsername = make(map[domain.Username]domain.UserID)
	s.posts = make(map[domain.PostID]Post)
	s.byAuthor = make(map[domain.UserID][]domain.PostID)
	s.outgoing = make(map[domain.UserID]map[domain.UserID]struct{})
	s.incoming = make(map[domain.UserID]map[domain.UserID]struct{})
	s.rels = make(map[pairKey]domain.RelationshipID)
	s.celebPosts = make(map[domain.PostID]domain.UserID)
	s.celebByAuthor = make(map[domain.UserID]map[domain.PostID]struct{})
}

// Reset clears everything, timelines included, ahead of a replay.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.resetMaps()
	s.mu.Unlock()
	return s.timelines.Reset(ctx)
}

// --- profiles ---

// PutProfile upserts, keeping the username index in sync. Replaying a
// registration is a no-op rather than an error.
func (s *Store) PutProfile(ctx context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.profiles[p.UserID]; ok {
		delete(s.byUsername, old.Username)
	}
	s.profiles[p.UserID] = p
	s.byUsername[p.Username] = p.UserID
	return nil
}

func (s *Store) Profile(ctx context.Context, id domain.UserID) (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	return p, ok, nil
}

// ProfileByUsername resolves a handle; used for the uniqueness
// precondition and username lookups.
func (s *Store) ProfileByUsername(ctx context.Context, username domain.Username) (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return Profile{}, false, nil
	}
	return s.profiles[id], true, nil
}

// UsernameTaken is the RegisterUser precondition.
func (s *Store) UsernameTaken(ctx context.Context, username domain.Username) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUsername[username]
	return ok, nil
}

// ListProfiles returns every profile ordered by username.
func (s *Store) ListProfiles(ctx context.Context) ([]Profile, error) {
	s.mu.RLock()
	out := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// --- posts ---

// PutPost inserts a live post and prepends it to the author's index.
// The projector applies events in publish order, so prepending keeps
// the index newest-first.
func (s *Store) PutPost(ctx context.Context, p Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[p.PostID]; ok {
		return nil
	}
	s.posts[p.PostID] = p
	s.byAuthor[p.AuthorID] = append([]domain.PostID{p.PostID}, s.byAuthor[p.AuthorID]...)
	return nil
}

func (s *Store) Post(ctx context.Context, id domain.PostID) (Post, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	return p, ok, nil
}

// DeletePost removes the row and the author-index entry. Unknown ids
// are a no-op so retraction replays stay idempotent.
func (s *Store) DeletePost(ctx context.Context, id domain.PostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil
	}
	delete(s.posts, id)
	ids := s.byAuthor[p.AuthorID]
	for i, existing := range ids {
		if existing == id {
			s.byAuthor[p.AuthorID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// PostsByAuthor returns the author's live posts, newest first.
func (s *Store) PostsByAuthor(ctx context.Context, author domain.UserID) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byAuthor[author]
	out := make([]Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- follow graph ---

func (s *Store) AddEdge(ctx context.Context, follower, followee domain.UserID, rel domain.RelationshipID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outgoing[follower] == nil {
		s.outgoing[follower] = make(map[domain.UserID]struct{})
	}
	if s.incoming[followee] == nil {
		s.incoming[followee] = make(map[domain.UserID]struct{})
	}
	s.outgoing[follower][followee] = struct{}{}
	s.incoming[followee][follower] = struct{}{}
	s.rels[pairKey{follower, followee}] = rel
	return nil
}

func (s *Store) RemoveEdge(ctx context.Context, follower, followee domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outgoing[follower], followee)
	delete(s.incoming[followee], follower)
	delete(s.rels, pairKey{follower, followee})
	return nil
}

// Outgoing returns the users someone follows.
func (s *Store) Outgoing(ctx context.Context, user domain.UserID) ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return userSet(s.outgoing[user]), nil
}

// Incoming returns someone's followers.
func (s *Store) Incoming(ctx context.Context, user domain.UserID) ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return userSet(s.incoming[user]), nil
}

func userSet(m map[domain.UserID]struct{}) []domain.UserID {
	out := make([]domain.UserID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

func (s *Store) FollowerCount(ctx context.Context, user domain.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.incoming[user]), nil
}

// Relationship reports the active edge id for a pair, if any.
func (s *Store) Relationship(ctx context.Context, follower, followee domain.UserID) (domain.RelationshipID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.rels[pairKey{follower, followee}]
	return rel, ok, nil
}

// IsCelebrity reports whether fan-out should skip this author: their
// follower count has reached the configured threshold.
func (s *Store) IsCelebrity(ctx context.Context, user domain.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.incoming[user]) >= s.celebrityThreshold, nil
}

// --- timelines ---

func (s *Store) PushTimeline(ctx context.Context, owner domain.UserID, entry TimelineEntry) error {
	return s.timelines.Push(ctx, owner, entry)
}

func (s *Store) RemoveFromTimeline(ctx context.Context, owner domain.UserID, postID domain.PostID) error {
	return s.timelines.Remove(ctx, owner, postID)
}

// RemoveAuthorFromTimeline drops every live post of the author from the
// owner's timeline. Retracted posts were already removed at retraction
// time, so the author's live posts cover everything present.
func (s *Store) RemoveAuthorFromTimeline(ctx context.Context, owner, author domain.UserID) error {
	s.mu.RLock()
	ids := make([]domain.PostID, len(s.byAuthor[author]))
	copy(ids, s.byAuthor[author])
	s.mu.RUnlock()

	if len(ids) == 0 {
		return nil
	}
	return s.timelines.RemoveMany(ctx, owner, ids)
}

// Timeline returns the owner's timeline post ids, newest first.
func (s *Store) Timeline(ctx context.Context, owner domain.UserID) ([]domain.PostID, error) {
	return s.timelines.List(ctx, owner)
}

// --- celebrity post index ---

func (s *Store) MarkCelebrityPost(ctx context.Context, author domain.UserID, postID domain.PostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.celebPosts[postID] = author
	if s.celebByAuthor[author] == nil {
		s.celebByAuthor[author] = make(map[domain.PostID]struct{})
	}
	s.celebByAuthor[author][postID] = struct{}{}
	return nil
}

func (s *Store) ForgetCelebrityPost(ctx context.Context, postID domain.PostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	author, ok := s.celebPosts[postID]
	if !ok {
		return nil
	}
	delete(s.celebPosts, postID)
	delete(s.celebByAuthor[author], postID)
	return nil
}

// CelebrityPostsBy returns the author's posts that skipped fan-out.
func (s *Store) CelebrityPostsBy(ctx context.Context, author domain.UserID) ([]domain.PostID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PostID, 0, len(s.celebByAuthor[author]))
	for id := range s.celebByAuthor[author] {
		out = append(out, id)
	}
	return out, nil
}

// Snapshot returns summary counts, used by the replay tooling.
func (s *Store) Snapshot(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edges := 0
	for _, set := range s.outgoing {
		edges += len(set)
	}
	return Stats{Profiles: len(s.profiles), Posts: len(s.posts), Edges: edges}, nil
}

// Fingerprint hashes every observable read surface in a canonical
// order. Two stores replayed from the same log must produce the same
// fingerprint; the verify tooling relies on this.
func (s *Store) Fingerprint(ctx context.Context) (string, error) {
	profiles, err := s.ListProfiles(ctx)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, p := range profiles {
		fmt.Fprintf(h, "profile %s %s\n", p.UserID, p.Username)

		timeline, err := s.Timeline(ctx, p.UserID)
		if err != nil {
			return "", err
		}
		for _, id := range timeline {
			fmt.Fprintf(h, "timeline %s\n", id)
		}

		posts, err := s.PostsByAuthor(ctx, p.UserID)
		if err != nil {
			return "", err
		}
		for _, post := range posts {
			fmt.Fprintf(h, "post %s %s %d\n", post.PostID, post.Body, post.PublishedAt.UnixNano())
		}

		outgoing, err := s.Outgoing(ctx, p.UserID)
		if err != nil {
			return "", err
		}
		sort.Slice(outgoing, func(i, j int) bool { return outgoing[i] < outgoing[j] })
		for _, followee := range outgoing {
			rel, _, err := s.Relationship(ctx, p.UserID, followee)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(h, "edge %s %s %s\n", p.UserID, followee, rel)
		}

		celeb, err := s.CelebrityPostsBy(ctx, p.UserID)
		if err != nil {
			return "", err
		}
		sort.Slice(celeb, func(i, j int) bool { return celeb[i] < celeb[j] })
		for _, id := range celeb {
			fmt.Fprintf(h, "celeb %s\n", id)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
