package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"evregistry/backend/services/station-registry/internal/models"
)

// StationCache is a read-through cache of single stations keyed by id.
type StationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStationCache returns redis-backed cache.
func NewStationCache(client *redis.Client, ttl time.Duration) *StationCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StationCache{client: client, ttl: ttl}
}

func key(id string) string {
	return fmt.Sprintf("stations:id:%s", id)
}

// Get returns the cached station. ok is false on a miss.
func (c *StationCache) Get(ctx context.Context, id string) (*models.Station, bool, error) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var st models.Station
	if err := json.Unmarshal(raw, &st); err != nil {
		// drop the unreadable entry, the caller reloads from Postgres
		_ = c.client.Del(ctx, key(id)).Err()
		return nil, false, nil
	}
	return &st, true, nil
}

// Set stores station for the configured TTL.
func (c *StationCache) Set(ctx context.Context, st *models.Station) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(st.ID), data, c.ttl).Err()
}

// Invalidate removes a station entry.
func (c *StationCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, key(id)).Err()
}
