package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

const latestKey = "hydro:reading:latest"

// LatestCache keeps the most recent reading in Redis so /readings/latest
// does not hit Postgres.
type LatestCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewLatestCache(client *redis.Client, ttl time.Duration) *LatestCache {
	return &LatestCache{redis: client, ttl: ttl}
}

func (c *LatestCache) SetLatest(ctx context.Context, r model.SensorReading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	if err := c.redis.Set(ctx, latestKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set latest reading in Redis: %w", err)
	}
	return nil
}

func (c *LatestCache) Invalidate(ctx context.Context) error {
	if err := c.redis.Del(ctx, latestKey).Err(); err != nil {
		return fmt.Errorf("failed to delete latest reading from Redis: %w", err)
	}
	return nil
}

// Latest reports false when nothing is cached.
func (c *LatestCache) Latest(ctx context.Context) (model.SensorReading, bool, error) {
	data, err := c.redis.Get(ctx, latestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.SensorReading{}, false, nil
	}
	if err != nil {
		return model.SensorReading{}, false, fmt.Errorf("failed to get latest reading from Redis: %w", err)
	}
	var r model.SensorReading
	if err := json.Unmarshal(data, &r); err != nil {
		return model.SensorReading{}, false, fmt.Errorf("failed to unmarshal cached reading: %w", err)
	}
	return r, true, nil
}

func (c *LatestCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}
