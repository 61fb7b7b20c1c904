// Package cache stores generated explanations so a repeated question in the
// same tone skips the oracle. It supports in-memory (single instance) and
// Redis (distributed) backends.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

type Cache interface {
	Get(ctx context.Context, key string) (*domain.ExplanationResult, bool)
	Set(ctx context.Context, key string, result *domain.ExplanationResult, ttl time.Duration) error
}

// ExplanationKey hashes the tone and the trimmed question. Whitespace
// differences at the edges do not change the key; anything inside does.
func ExplanationKey(tone domain.Tone, question string) string {
	h := sha256.New()
	h.Write([]byte(tone))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(question)))
	return "explain:" + hex.EncodeToString(h.Sum(nil))
}

type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]*cacheItem
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

type cacheItem struct {
	result    domain.ExplanationResult
	expiresAt time.Time
}

func NewInMemoryCache() *InMemoryCache {
	c := newInMemoryCache(time.Now)
	go c.cleanup(time.Minute)
	return c
}

func newInMemoryCache(now func() time.Time) *InMemoryCache {
	return &InMemoryCache{
		items: make(map[string]*cacheItem),
		now:   now,
		done:  make(chan struct{}),
	}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (*domain.ExplanationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || c.now().After(item.expiresAt) {
		return nil, false
	}

	result := item.result
	return &result, true
}

func (c *InMemoryCache) Set(_ context.Context, key string, result *domain.ExplanationResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem{
		result:    *result,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *InMemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *InMemoryCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *InMemoryCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*domain.ExplanationResult, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var result domain.ExplanationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false
	}

	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, key string, result *domain.ExplanationResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
