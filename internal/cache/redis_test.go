package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"adstudio-backend-go/internal/models"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if _, err := c.Get(ctx, "u1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	want := models.Balance{Credits: 3}
	if err := c.Set(ctx, "u1", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "u1")
	if err != nil || got != want {
		t.Fatalf("Get = %+v, %v; want %+v", got, err, want)
	}
	if err := c.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := c.Get(ctx, "u1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after invalidate, got %v", err)
	}
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	var c BalanceCache = NoopCache{}
	_ = c.Set(context.Background(), "u1", models.Balance{Credits: 1})
	if _, err := c.Get(context.Background(), "u1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

// Runs against a real Redis when REDIS_TEST_ADDR is set.
func TestRedisBalanceCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisBalanceCache(ctx, RedisConfig{Address: addr, TTL: time.Minute}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRedisBalanceCache: %v", err)
	}
	defer c.Close()

	userID := "test-" + time.Now().Format("150405.000000000")
	want := models.Balance{Credits: 2, SubscriptionActive: true}
	if err := c.Set(ctx, userID, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, userID)
	if err != nil || got != want {
		t.Fatalf("Get = %+v, %v; want %+v", got, err, want)
	}
	if err := c.Invalidate(ctx, userID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := c.Get(ctx, userID); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}
