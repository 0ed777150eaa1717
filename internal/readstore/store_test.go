package readstore

import (
	"context"
	"testing"
	"time"

	"chirper/internal/domain"
)

func newTestStore(threshold, cap int) *Store {
	return New(NewMemoryTimelines(cap), threshold)
}

func entry(id string, at time.Time) TimelineEntry {
	return TimelineEntry{PostID: domain.PostID(id), PublishedAt: at}
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(3, 5)

	if err := s.PutProfile(ctx, Profile{UserID: "u1", Username: "carol"}); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}
	if err := s.PutProfile(ctx, Profile{UserID: "u2", Username: "alice"}); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}

	p, ok, _ := s.Profile(ctx, "u1")
	if !ok || p.Username != "carol" {
		t.Errorf("Profile(u1) = %+v, %v, want carol", p, ok)
	}
	if _, ok, _ := s.Profile(ctx, "nobody"); ok {
		t.Error("Profile(nobody) must not resolve")
	}

	taken, _ := s.UsernameTaken(ctx, "alice")
	if !taken {
		t.Error("UsernameTaken(alice) = false, want true")
	}
	taken, _ = s.UsernameTaken(ctx, "dave")
	if taken {
		t.Error("UsernameTaken(dave) = true, want false")
	}

	list, _ := s.ListProfiles(ctx)
	if len(list) != 2 || list[0].Username != "alice" || list[1].Username != "carol" {
		t.Errorf("ListProfiles = %+v, want username order", list)
	}

	// Replaying the same registration must not duplicate anything.
	if err := s.PutProfile(ctx, Profile{UserID: "u1", Username: "carol"}); err != nil {
		t.Fatalf("PutProfile replay: %v", err)
	}
	list, _ = s.ListProfiles(ctx)
	if len(list) != 2 {
		t.Errorf("profiles after replay = %d, want 2", len(list))
	}
}

func TestPostsAndAuthorIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(3, 5)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []domain.PostID{"p1", "p2", "p3"} {
		err := s.PutPost(ctx, Post{
			PostID:      id,
			AuthorID:    "author",
			Body:        "post body",
			PublishedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("PutPost(%s): %v", id, err)
		}
	}

	posts, _ := s.PostsByAuthor(ctx, "author")
	if len(posts) != 3 || posts[0].PostID != "p3" || posts[2].PostID != "p1" {
		t.Fatalf("PostsByAuthor = %v, want p3,p2,p1", postIDs(posts))
	}

	// Duplicate insert is a replay no-op.
	_ = s.PutPost(ctx, Post{PostID: "p2", AuthorID: "author"})
	posts, _ = s.PostsByAuthor(ctx, "author")
	if len(posts) != 3 {
		t.Errorf("after duplicate put, posts = %d, want 3", len(posts))
	}

	if err := s.DeletePost(ctx, "p2"); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if _, ok, _ := s.Post(ctx, "p2"); ok {
		t.Error("deleted post must not resolve")
	}
	posts, _ = s.PostsByAuthor(ctx, "author")
	if len(posts) != 2 || posts[0].PostID != "p3" || posts[1].PostID != "p1" {
		t.Errorf("PostsByAuthor after delete = %v, want p3,p1", postIDs(posts))
	}

	if err := s.DeletePost(ctx, "p2"); err != nil {
		t.Errorf("double delete must be a no-op, got %v", err)
	}
}

func postIDs(posts []Post) []domain.PostID {
	out := make([]domain.PostID, len(posts))
	for i, p := range posts {
		out[i] = p.PostID
	}
	return out
}

func TestFollowGraph(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(2, 5)

	_ = s.AddEdge(ctx, "a", "b", "rel-1")
	_ = s.AddEdge(ctx, "c", "b", "rel-2")
	_ = s.AddEdge(ctx, "a", "c", "rel-3")

	out, _ := s.Outgoing(ctx, "a")
	if len(out) != 2 {
		t.Errorf("Outgoing(a) = %v, want 2 edges", out)
	}
	in, _ := s.Incoming(ctx, "b")
	if len(in) != 2 {
		t.Errorf("Incoming(b) = %v, want 2 edges", in)
	}

	rel, ok, _ := s.Relationship(ctx, "a", "b")
	if !ok || rel != "rel-1" {
		t.Errorf("Relationship(a,b) = %s, %v, want rel-1", rel, ok)
	}
	if _, ok, _ := s.Relationship(ctx, "b", "a"); ok {
		t.Error("edges are directed; reverse lookup must miss")
	}

	// Threshold 2: b has two followers, c has one.
	celeb, _ := s.IsCelebrity(ctx, "b")
	if !celeb {
		t.Error("IsCelebrity(b) = false at threshold, want true")
	}
	celeb, _ = s.IsCelebrity(ctx, "c")
	if celeb {
		t.Error("IsCelebrity(c) = true below threshold, want false")
	}

	_ = s.RemoveEdge(ctx, "a", "b")
	if _, ok, _ := s.Relationship(ctx, "a", "b"); ok {
		t.Error("removed edge must not resolve")
	}
	n, _ := s.FollowerCount(ctx, "b")
	if n != 1 {
		t.Errorf("FollowerCount(b) = %d after unfollow, want 1", n)
	}
	celeb, _ = s.IsCelebrity(ctx, "b")
	if celeb {
		t.Error("b dropped below the threshold and must stop being a celebrity")
	}
}

func TestMemoryTimelines(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tl := NewMemoryTimelines(3)

	for i, id := range []string{"p1", "p2", "p3"} {
		if err := tl.Push(ctx, "owner", entry(id, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Push(%s): %v", id, err)
		}
	}

	ids, _ := tl.List(ctx, "owner")
	if len(ids) != 3 || ids[0] != "p3" || ids[2] != "p1" {
		t.Fatalf("List = %v, want p3,p2,p1", ids)
	}

	// Cap 3: a fourth push evicts the oldest.
	_ = tl.Push(ctx, "owner", entry("p4", base.Add(3*time.Second)))
	ids, _ = tl.List(ctx, "owner")
	if len(ids) != 3 || ids[0] != "p4" || ids[2] != "p2" {
		t.Errorf("List after cap = %v, want p4,p3,p2", ids)
	}

	// Re-pushing an existing id moves it to the front, no duplicate.
	_ = tl.Push(ctx, "owner", entry("p3", base.Add(4*time.Second)))
	ids, _ = tl.List(ctx, "owner")
	if len(ids) != 3 || ids[0] != "p3" {
		t.Errorf("List after re-push = %v, want p3 first with no duplicate", ids)
	}

	_ = tl.Remove(ctx, "owner", "p4")
	ids, _ = tl.List(ctx, "owner")
	if len(ids) != 2 {
		t.Errorf("List after remove = %v, want 2 entries", ids)
	}

	_ = tl.RemoveMany(ctx, "owner", []domain.PostID{"p2", "p3"})
	ids, _ = tl.List(ctx, "owner")
	if len(ids) != 0 {
		t.Errorf("List after remove many = %v, want empty", ids)
	}
}

func TestMemoryTimelinesEvictOldestPublished(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tl := NewMemoryTimelines(3)

	for i, id := range []string{"p2", "p3", "p4"} {
		if err := tl.Push(ctx, "owner", entry(id, base.Add(time.Duration(i+2)*time.Second))); err != nil {
			t.Fatalf("Push(%s): %v", id, err)
		}
	}

	// A backfill push can carry a publish time older than everything
	// already present. The cap evicts by publish time, so the incoming
	// entry is the one dropped, as the sorted-set backend would do.
	_ = tl.Push(ctx, "owner", entry("p1", base.Add(time.Second)))
	ids, _ := tl.List(ctx, "owner")
	if len(ids) != 3 || ids[0] != "p4" || ids[1] != "p3" || ids[2] != "p2" {
		t.Errorf("List after older push = %v, want p4,p3,p2", ids)
	}

	// An entry between existing publish times lands at its position and
	// the oldest published entry goes, not the least recently pushed.
	_ = tl.Push(ctx, "owner", entry("p5", base.Add(3500*time.Millisecond)))
	ids, _ = tl.List(ctx, "owner")
	if len(ids) != 3 || ids[0] != "p4" || ids[1] != "p5" || ids[2] != "p3" {
		t.Errorf("List after mid push = %v, want p4,p5,p3", ids)
	}
}

func TestRemoveAuthorFromTimeline(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(10, 10)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_ = s.PutPost(ctx, Post{PostID: "b1", AuthorID: "b", PublishedAt: base})
	_ = s.PutPost(ctx, Post{PostID: "b2", AuthorID: "b", PublishedAt: base.Add(time.Second)})
	_ = s.PutPost(ctx, Post{PostID: "c1", AuthorID: "c", PublishedAt: base.Add(2 * time.Second)})

	for i, p := range []domain.PostID{"b1", "b2", "c1"} {
		_ = s.PushTimeline(ctx, "a", entry(p.String(), base.Add(time.Duration(i)*time.Second)))
	}

	if err := s.RemoveAuthorFromTimeline(ctx, "a", "b"); err != nil {
		t.Fatalf("RemoveAuthorFromTimeline: %v", err)
	}
	ids, _ := s.Timeline(ctx, "a")
	if len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("timeline = %v, want only c1", ids)
	}
}

func TestCelebrityPostIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(3, 5)

	_ = s.MarkCelebrityPost(ctx, "celeb", "p1")
	_ = s.MarkCelebrityPost(ctx, "celeb", "p2")
	_ = s.MarkCelebrityPost(ctx, "other", "p3")

	ids, _ := s.CelebrityPostsBy(ctx, "celeb")
	if len(ids) != 2 {
		t.Errorf("CelebrityPostsBy(celeb) = %v, want 2 posts", ids)
	}

	_ = s.ForgetCelebrityPost(ctx, "p1")
	ids, _ = s.CelebrityPostsBy(ctx, "celeb")
	if len(ids) != 1 || ids[0] != "p2" {
		t.Errorf("after forget = %v, want p2 only", ids)
	}

	if err := s.ForgetCelebrityPost(ctx, "unknown"); err != nil {
		t.Errorf("forgetting an unknown post must be a no-op, got %v", err)
	}
}

func TestResetAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(3, 5)

	_ = s.PutProfile(ctx, Profile{UserID: "u1", Username: "alice"})
	_ = s.PutPost(ctx, Post{PostID: "p1", AuthorID: "u1"})
	_ = s.AddEdge(ctx, "u2", "u1", "rel-1")
	_ = s.PushTimeline(ctx, "u2", entry("p1", time.Now()))

	stats, _ := s.Snapshot(ctx)
	if stats.Profiles != 1 || stats.Posts != 1 || stats.Edges != 1 {
		t.Errorf("Snapshot = %+v, want 1/1/1", stats)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	stats, _ = s.Snapshot(ctx)
	if stats.Profiles != 0 || stats.Posts != 0 || stats.Edges != 0 {
		t.Errorf("Snapshot after reset = %+v, want zeros", stats)
	}
	ids, _ := s.Timeline(ctx, "u2")
	if len(ids) != 0 {
		t.Errorf("timeline after reset = %v, want empty", ids)
	}
}
