// Package session keeps each user's in-progress work (current question,
// explanation, quiz and answers) so it survives a page reload.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

const DefaultTTL = 24 * time.Hour

type Store interface {
	Get(ctx context.Context, userID string) (*domain.Draft, error)
	Put(ctx context.Context, userID string, draft *domain.Draft) error
	Delete(ctx context.Context, userID string) error
}

type InMemoryStore struct {
	mu     sync.Mutex
	drafts map[string]entry
	ttl    time.Duration
	now    func() time.Time
}

type entry struct {
	draft     domain.Draft
	expiresAt time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{
		drafts: make(map[string]entry),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *InMemoryStore) Get(_ context.Context, userID string) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.drafts[userID]
	if !ok {
		return nil, domain.ErrDraftNotFound
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.drafts, userID)
		return nil, domain.ErrDraftNotFound
	}

	d := e.draft
	return &d, nil
}

func (s *InMemoryStore) Put(_ context.Context, userID string, draft *domain.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	d := *draft
	d.UpdatedAt = now
	s.drafts[userID] = entry{draft: d, expiresAt: now.Add(s.ttl)}
	draft.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, userID)
	return nil
}

type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client:    client,
		ttl:       ttl,
		keyPrefix: "session:draft:",
	}
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*domain.Draft, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+userID).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	var d domain.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

func (s *RedisStore) Put(ctx context.Context, userID string, draft *domain.Draft) error {
	draft.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+userID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
