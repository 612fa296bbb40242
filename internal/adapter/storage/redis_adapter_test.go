package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestDisplayPointerRoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, displayKey)

	_, _, err := adapter.LoadDisplay(ctx)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected NotFound on empty pointer, got %v", err)
	}

	if err := adapter.SaveDisplay(ctx, "channel-1", "message-1"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	chID, msgID, err := adapter.LoadDisplay(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if chID != "channel-1" || msgID != "message-1" {
		t.Errorf("expected channel-1/message-1, got %s/%s", chID, msgID)
	}
}

func TestAcquireDeduplicates(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	key := "test-interaction-" + time.Now().Format("150405.000000")
	defer client.Del(ctx, dedupeKeyPrefix+key)

	ok, err := adapter.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first acquire to succeed")
	}

	ok, err = adapter.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected duplicate acquire to fail")
	}
}
