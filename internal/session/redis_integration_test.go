//go:build integration

package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

func TestRedisStore_RoundTrip(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	s := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	user := "it-" + uuid.New().String()

	draft := &domain.Draft{
		Question: "What is a Fourier transform?",
		Quiz:     &domain.QuizResult{Title: "Waves", Questions: []domain.QuizQuestion{{ID: "q1", Options: []string{"a", "b", "c", "d"}}}},
		Answers:  map[string]int{"q1": 1},
	}
	if err := s.Put(ctx, user, draft); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, user)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Quiz == nil || got.Quiz.Questions[0].ID != "q1" {
		t.Errorf("quiz not preserved: %+v", got.Quiz)
	}

	if ttl := client.TTL(ctx, "session:draft:"+user).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected ttl %v", ttl)
	}

	if err := s.Delete(ctx, user); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, user); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Errorf("expected ErrDraftNotFound, got %v", err)
	}
}
