package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator suppresses repeated notifications of the same state, across
// instances when backed by Redis. A subject is what the state belongs to,
// e.g. "oracle:gemini".
type Deduplicator interface {
	// ShouldSend records state for subject and reports whether it differs
	// from the last recorded state.
	ShouldSend(ctx context.Context, subject string, state NotificationType) bool
}

type InMemoryDeduplicator struct {
	mu   sync.Mutex
	last map[string]NotificationType
}

func NewInMemoryDeduplicator() *InMemoryDeduplicator {
	return &InMemoryDeduplicator{last: make(map[string]NotificationType)}
}

func (d *InMemoryDeduplicator) ShouldSend(_ context.Context, subject string, state NotificationType) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.last[subject]; ok && prev == state {
		return false
	}
	d.last[subject] = state
	return true
}

// RedisDeduplicator swaps the state in with SET ... GET, so exactly one
// instance sees each transition.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduplicator(client *redis.Client, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, ttl: ttl}
}

func (d *RedisDeduplicator) key(subject string) string {
	return "notify:state:" + subject
}

func (d *RedisDeduplicator) ShouldSend(ctx context.Context, subject string, state NotificationType) bool {
	prev, err := d.client.SetArgs(ctx, d.key(subject), string(state), redis.SetArgs{
		TTL: d.ttl,
		Get: true,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return true
	}
	if err != nil {
		// Fail open: a duplicate page beats a missed one.
		return true
	}
	return prev != string(state)
}
