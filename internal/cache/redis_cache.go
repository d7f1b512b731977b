package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"mobilehouse/backend/internal/domain"
)

const generationKey = "dashboard:generation"

type RedisDashboardCache struct {
	client *redis.Client
}

func NewRedisDashboardCache(addr string, password string, db int) *RedisDashboardCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDashboardCache{client: client}
}

func (c *RedisDashboardCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDashboardCache) Close() error {
	return c.client.Close()
}

func (c *RedisDashboardCache) Get(ctx context.Context, key string) (*domain.DashboardView, bool, error) {
	generation, err := c.Generation(ctx)
	if err != nil {
		return nil, false, err
	}
	fullKey := keyFor(generation, key)

	val, err := c.client.Get(ctx, fullKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var view domain.DashboardView
	if err := json.Unmarshal([]byte(val), &view); err != nil {
		return nil, false, err
	}
	return &view, true, nil
}

// Set writes under the given generation. A value computed before the last
// Invalidate lands under a key no reader looks up and expires with its TTL.
func (c *RedisDashboardCache) Set(ctx context.Context, key string, generation int64, value *domain.DashboardView, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyFor(generation, key), payload, ttl).Err()
}

// Invalidate bumps the generation so every previously stored key becomes
// unreachable. Old entries expire through their TTL.
func (c *RedisDashboardCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

func (c *RedisDashboardCache) Generation(ctx context.Context) (int64, error) {
	generation, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return generation, nil
}

func keyFor(generation int64, key string) string {
	return fmt.Sprintf("dashboard:%d:%s", generation, key)
}
