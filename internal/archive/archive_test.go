package archive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"chirper/internal/domain"
	"chirper/internal/eventlog"
)

type fakePutter struct {
	bucket string
	key    string
	body   []byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = *in.Bucket
	f.key = *in.Key
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3.PutObjectOutput{}, nil
}

func withClock(t *testing.T) {
	t.Helper()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	old := domain.TimeFunc
	domain.TimeFunc = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
	t.Cleanup(func() { domain.TimeFunc = old })
}

func TestSnapshotRoundTrip(t *testing.T) {
	withClock(t)
	ctx := context.Background()
	log := eventlog.NewMemoryLog()

	user, err := domain.NewUser("archivist")
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if err := log.Append(ctx, user.ID().String(), user.Drain()); err != nil {
		t.Fatalf("append user: %v", err)
	}
	post, err := domain.NewPost(user.ID(), "for posterity")
	if err != nil {
		t.Fatalf("NewPost: %v", err)
	}
	if err := log.Append(ctx, post.ID().String(), post.Drain()); err != nil {
		t.Fatalf("append post: %v", err)
	}

	putter := &fakePutter{}
	key, count, err := New(log, putter, "chirper-segments").Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if count != 2 {
		t.Fatalf("archived %d events, want 2", count)
	}
	if putter.bucket != "chirper-segments" {
		t.Errorf("bucket = %s", putter.bucket)
	}
	if !strings.HasPrefix(key, "segments/") || !strings.HasSuffix(key, "-2.chirplog.gz") {
		t.Errorf("key = %s, want segments/<ts>-2.chirplog.gz", key)
	}
	if key != putter.key {
		t.Errorf("returned key %s != uploaded key %s", key, putter.key)
	}

	// The uploaded object must decode back to the same events.
	gz, err := gzip.NewReader(bytes.NewReader(putter.body))
	if err != nil {
		t.Fatalf("gunzip: %v", err)
	}
	r := bufio.NewReader(gz)

	var decoded []domain.Event
	for {
		e, err := eventlog.ReadRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		decoded = append(decoded, e)
	}

	if len(decoded) != 2 {
		t.Fatalf("decoded %d events, want 2", len(decoded))
	}
	if decoded[0].Kind() != domain.KindUserRegistered || decoded[1].Kind() != domain.KindPostPublished {
		t.Errorf("decoded kinds = %v, %v", decoded[0].Kind(), decoded[1].Kind())
	}
	if decoded[1].Head().AggregateID != post.ID().String() {
		t.Errorf("post aggregate id mismatch")
	}

	published, ok := decoded[1].(domain.PostPublished)
	if !ok || published.Body != "for posterity" {
		t.Errorf("decoded post = %+v", decoded[1])
	}
	t.Log("✓ segment round-tripped through gzip and the record codec")
}

func TestPublicURL(t *testing.T) {
	// A trailing slash on the base must not double up in the URL.
	got := PublicURL("https://pub-abc.r2.dev/", "segments/1-2.chirplog.gz")
	if want := "https://pub-abc.r2.dev/segments/1-2.chirplog.gz"; got != want {
		t.Errorf("PublicURL = %s, want %s", got, want)
	}
	got = PublicURL("https://cdn.example.com", "segments/1-2.chirplog.gz")
	if want := "https://cdn.example.com/segments/1-2.chirplog.gz"; got != want {
		t.Errorf("PublicURL = %s, want %s", got, want)
	}
}

func TestSnapshotEmptyLog(t *testing.T) {
	ctx := context.Background()
	putter := &fakePutter{}

	key, count, err := New(eventlog.NewMemoryLog(), putter, "chirper-segments").Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if !strings.HasSuffix(key, "-0.chirplog.gz") {
		t.Errorf("key = %s, want -0 suffix", key)
	}

	// Still a valid (empty) gzip stream.
	gz, err := gzip.NewReader(bytes.NewReader(putter.body))
	if err != nil {
		t.Fatalf("gunzip: %v", err)
	}
	if _, err := eventlog.ReadRecord(bufio.NewReader(gz)); err != io.EOF {
		t.Errorf("empty segment read = %v, want io.EOF", err)
	}
}
