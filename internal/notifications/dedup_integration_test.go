//go:build integration

package notifications

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisDeduplicator_Integration(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	subject := "test:" + uuid.New().String()
	defer client.Del(ctx, "notify:state:"+subject)

	// Two instances sharing one Redis.
	a := NewRedisDeduplicator(client, time.Minute)
	b := NewRedisDeduplicator(client, time.Minute)

	if !a.ShouldSend(ctx, subject, NotificationOracleDown) {
		t.Error("first transition should send")
	}
	if b.ShouldSend(ctx, subject, NotificationOracleDown) {
		t.Error("second instance must not resend the same state")
	}
	if !b.ShouldSend(ctx, subject, NotificationOracleUp) {
		t.Error("recovery should send")
	}
}
