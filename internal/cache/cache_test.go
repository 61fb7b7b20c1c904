package cache

import (
	"context"
	"testing"
	"time"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func TestInMemoryCache_SetAndGet(t *testing.T) {
	c := newInMemoryCache(time.Now)
	ctx := context.Background()

	err := c.Set(ctx, "key1", &domain.ExplanationResult{Explanation: "# Entropy"}, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached, ok := c.Get(ctx, "key1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if cached.Explanation != "# Entropy" {
		t.Errorf("expected cached explanation, got %q", cached.Explanation)
	}
}

func TestInMemoryCache_Miss(t *testing.T) {
	c := newInMemoryCache(time.Now)

	if _, ok := c.Get(context.Background(), "nonexistent"); ok {
		t.Error("expected cache miss")
	}
}

func TestInMemoryCache_Expiration(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newInMemoryCache(clock.Now)
	ctx := context.Background()

	c.Set(ctx, "key1", &domain.ExplanationResult{Explanation: "x"}, time.Minute)

	if _, ok := c.Get(ctx, "key1"); !ok {
		t.Fatal("expected cache hit before expiration")
	}

	clock.t = clock.t.Add(61 * time.Second)

	if _, ok := c.Get(ctx, "key1"); ok {
		t.Error("expected cache miss after expiration")
	}

	c.evictExpired()
	if c.Len() != 0 {
		t.Errorf("expected expired entry evicted, %d left", c.Len())
	}
}

func TestInMemoryCache_ReturnsCopy(t *testing.T) {
	c := newInMemoryCache(time.Now)
	ctx := context.Background()
	c.Set(ctx, "k", &domain.ExplanationResult{Explanation: "original"}, time.Minute)

	got, _ := c.Get(ctx, "k")
	got.Explanation = "mutated"

	again, _ := c.Get(ctx, "k")
	if again.Explanation != "original" {
		t.Errorf("cache entry was mutated through returned pointer")
	}
}

func TestInMemoryCache_Close(t *testing.T) {
	c := NewInMemoryCache()
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestExplanationKey(t *testing.T) {
	base := ExplanationKey(domain.ToneNormal, "What is entropy?")

	if got := ExplanationKey(domain.ToneNormal, "  What is entropy?\n"); got != base {
		t.Error("surrounding whitespace should not change the key")
	}
	if got := ExplanationKey(domain.ToneGenZ, "What is entropy?"); got == base {
		t.Error("tone must change the key")
	}
	if got := ExplanationKey(domain.ToneNormal, "What is enthalpy?"); got == base {
		t.Error("question must change the key")
	}
	if len(base) != len("explain:")+64 {
		t.Errorf("unexpected key length %d", len(base))
	}
}

func BenchmarkInMemoryCache_Get(b *testing.B) {
	c := newInMemoryCache(time.Now)
	ctx := context.Background()
	key := ExplanationKey(domain.ToneNormal, "Explain the Krebs cycle")
	c.Set(ctx, key, &domain.ExplanationResult{Explanation: "..."}, 5*time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(ctx, key)
	}
}
