package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/booth-sale/internal/core/domain"
)

const (
	statsKeyPrefix    = "stats:"
	idempotencyKeyTTL = 24 * time.Hour
)

// RedisAdapter keeps the event-stats snapshots and the order-intake
// idempotency keys. The relational store stays authoritative; losing Redis
// costs duplicate-submit protection and cache hits, never correctness.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func statsKey(eventID int64) string {
	return fmt.Sprintf("%s%d", statsKeyPrefix, eventID)
}

func (r *RedisAdapter) GetStats(ctx context.Context, eventID int64) (*domain.EventStats, bool, error) {
	raw, err := r.client.Get(ctx, statsKey(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stats domain.EventStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return &stats, true, nil
}

func (r *RedisAdapter) SetStats(ctx context.Context, eventID int64, stats *domain.EventStats, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	return r.client.Set(ctx, statsKey(eventID), raw, ttl).Err()
}

func (r *RedisAdapter) InvalidateStats(ctx context.Context, eventID int64) error {
	return r.client.Del(ctx, statsKey(eventID)).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}
