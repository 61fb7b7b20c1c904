package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript admits a request unless the user's window is full.
// The key expires with the window so the next request opens a fresh one.
// Keys: [window_key]
// Args: [max_requests, window_ms]
// Returns: {allowed (0|1), count, ttl_ms}
var fixedWindowScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')

if current >= max then
    return {0, current, redis.call('PTTL', KEYS[1])}
end

local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
end

return {1, count, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter shares windows between instances through Redis.
type RedisLimiter struct {
	client    *redis.Client
	policy    Policy
	keyPrefix string
}

func NewRedisLimiter(redisURL string, policy Policy) (*RedisLimiter, error) {
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

	return NewRedisLimiterWithClient(client, policy), nil
}

func NewRedisLimiterWithClient(client *redis.Client, policy Policy) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		policy:    policy.withDefaults(),
		keyPrefix: "ratelimit:user:",
	}
}

// Scoped returns a limiter sharing the client and policy but keeping its
// windows under a separate prefix, so two flows do not share a quota.
func (r *RedisLimiter) Scoped(scope string) *RedisLimiter {
	return &RedisLimiter{
		client:    r.client,
		policy:    r.policy,
		keyPrefix: "ratelimit:" + scope + ":user:",
	}
}

func (r *RedisLimiter) Policy() Policy {
	return r.policy
}

func (r *RedisLimiter) Allow(ctx context.Context, userID string) (Decision, error) {
	key := r.keyPrefix + userID

	res, err := fixedWindowScript.Run(ctx, r.client, []string{key},
		r.policy.MaxRequests, r.policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("run rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected rate limit script result: %v", res)
	}

	allowed := res[0] == 1
	count := int(res[1])
	ttl := time.Duration(res[2]) * time.Millisecond
	if ttl < 0 {
		ttl = r.policy.Window
	}

	remaining := r.policy.MaxRequests - count
	if remaining < 0 || !allowed {
		remaining = 0
	}

	return Decision{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}, nil
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
