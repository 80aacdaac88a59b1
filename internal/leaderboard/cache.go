package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gift-platform/internal/models"
)

const cacheKeyPrefix = "leaderboard:"

// Cache is the read-through cache in front of materialized rows.
type Cache interface {
	// Get returns nil without error on a miss.
	Get(ctx context.Context, creatorID int64, monthKey string) (*models.MonthlyLeaderboard, error)
	Set(ctx context.Context, lb *models.MonthlyLeaderboard) error
}

// RedisCache stores leaderboard rows as JSON under a per-month key.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(creatorID int64, monthKey string) string {
	return fmt.Sprintf("%s%d:%s", cacheKeyPrefix, creatorID, monthKey)
}

func (c *RedisCache) Get(ctx context.Context, creatorID int64, monthKey string) (*models.MonthlyLeaderboard, error) {
	raw, err := c.client.Get(ctx, cacheKey(creatorID, monthKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read leaderboard cache: %w", err)
	}
	var lb models.MonthlyLeaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return nil, fmt.Errorf("decode leaderboard cache: %w", err)
	}
	return &lb, nil
}

func (c *RedisCache) Set(ctx context.Context, lb *models.MonthlyLeaderboard) error {
	raw, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("encode leaderboard cache: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(lb.CreatorID, lb.MonthKey), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write leaderboard cache: %w", err)
	}
	return nil
}
