package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

const (
	displayKey      = "storefront:display"
	dedupeKeyPrefix = "interaction:"
	dedupeKeyTTL    = 24 * time.Hour
)

// RedisAdapter keeps the storefront display pointer and deduplicates
// interaction deliveries ahead of the engine's own state checks.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SaveDisplay(ctx context.Context, channelID, messageID string) error {
	err := r.client.HSet(ctx, displayKey,
		"channel_id", channelID,
		"message_id", messageID,
	).Err()
	if err != nil {
		return fmt.Errorf("save display pointer: %w", err)
	}
	return nil
}

func (r *RedisAdapter) LoadDisplay(ctx context.Context) (string, string, error) {
	fields, err := r.client.HGetAll(ctx, displayKey).Result()
	if err != nil {
		return "", "", fmt.Errorf("load display pointer: %w", err)
	}
	if len(fields) == 0 {
		return "", "", fmt.Errorf("display pointer: %w", domain.ErrNotFound)
	}
	return fields["channel_id"], fields["message_id"], nil
}

// Acquire claims key with SETNX; false means a duplicate delivery.
func (r *RedisAdapter) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, dedupeKeyPrefix+key, 1, dedupeKeyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}
	return ok, nil
}
