// Package seed populates a deployment with fake users, posts, and a
// skewed follow graph through the real command path, so every seeded
// row went through the same append/project cycle as live traffic.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"chirper/internal/command"
	"chirper/internal/domain"
	"chirper/internal/logger"
)

// Seeder drives the command bus with generated data.
type Seeder struct {
	bus *command.Bus
	rng *rand.Rand
}

// Summary reports what a run created.
type Summary struct {
	Users   int
	Posts   int
	Follows int
}

// NewSeeder seeds both generators so runs are reproducible.
func NewSeeder(bus *command.Bus, seed int64) *Seeder {
	_ = gofakeit.Seed(seed)
	return &Seeder{
		bus: bus,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Run registers users, wires a follow graph, and publishes posts. The
// first account is favored: everyone follows it, so with enough users
// it crosses the celebrity threshold and exercises the pull path.
func (s *Seeder) Run(ctx context.Context, users, posts, followsPerUser int) (Summary, error) {
	var sum Summary

	logger.Log.Info("seeding users", zap.Int("count", users))
	ids := make([]domain.UserID, 0, users)
	for i := 0; i < users; i++ {
		id, err := s.registerOne(ctx, i)
		if err != nil {
			return sum, fmt.Errorf("seed user %d: %w", i, err)
		}
		ids = append(ids, id)
		sum.Users++
	}
	if len(ids) == 0 {
		return sum, nil
	}

	logger.Log.Info("seeding follow graph", zap.Int("follows_per_user", followsPerUser))
	star := ids[0]
	for i, follower := range ids {
		if i != 0 {
			if _, err := s.bus.StartFollow(ctx, follower, star); err == nil {
				sum.Follows++
			}
		}
		for n := 0; n < followsPerUser; n++ {
			followee := ids[s.rng.Intn(len(ids))]
			if followee == follower || followee == star {
				continue
			}
			_, err := s.bus.StartFollow(ctx, follower, followee)
			if err == nil {
				sum.Follows++
			} else if !isBenignFollowErr(err) {
				return sum, fmt.Errorf("seed follow: %w", err)
			}
		}
	}

	logger.Log.Info("seeding posts", zap.Int("count", posts))
	for i := 0; i < posts; i++ {
		author := ids[s.rng.Intn(len(ids))]
		if i%4 == 0 {
			author = star // the celebrity posts often
		}
		body := trimBody(gofakeit.HipsterSentence())
		if _, err := s.bus.PublishPost(ctx, author, body); err != nil {
			return sum, fmt.Errorf("seed post %d: %w", i, err)
		}
		sum.Posts++
	}

	logger.Log.Info("seed complete",
		zap.Int("users", sum.Users),
		zap.Int("posts", sum.Posts),
		zap.Int("follows", sum.Follows))
	return sum, nil
}

// registerOne retries with fresh fallback handles when the generated
// one is invalid or taken. Reseeding an already-seeded deployment
// regenerates the previous run's usernames, so collisions here are
// routine rather than fatal.
func (s *Seeder) registerOne(ctx context.Context, i int) (domain.UserID, error) {
	if handle := sanitizeHandle(gofakeit.Username()); handle != "" {
		id, err := s.bus.RegisterUser(ctx, handle)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, domain.ErrUsernameTaken) {
			return "", err
		}
	}
	for attempt := 0; attempt < 32; attempt++ {
		handle := fmt.Sprintf("user_%04d_%04x", i, s.rng.Intn(1<<16))
		id, err := s.bus.RegisterUser(ctx, handle)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, domain.ErrUsernameTaken) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free handle for user %d", i)
}

// sanitizeHandle squeezes a fake username into the handle alphabet.
func sanitizeHandle(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
		if b.Len() == 20 {
			break
		}
	}
	if b.Len() < 3 {
		return ""
	}
	return b.String()
}

func trimBody(s string) string {
	runes := []rune(s)
	if len(runes) > 280 {
		runes = runes[:280]
	}
	return string(runes)
}

// Duplicate follows from the random graph are expected, not failures.
func isBenignFollowErr(err error) bool {
	return errors.Is(err, domain.ErrAlreadyFollowing) || errors.Is(err, domain.ErrSelfFollow)
}
