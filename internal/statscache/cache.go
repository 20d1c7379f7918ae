// Package statscache provides a short-TTL Redis cache for machine stats.
// Stats feed dashboards that poll on an interval, so a few seconds of
// staleness is acceptable in exchange for keeping repeated identical
// window queries off the database.
package statscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cadosfrit/sensor-events/internal/logging"
	"github.com/cadosfrit/sensor-events/internal/models"
)

// DefaultTTL bounds how stale a cached stats window may be.
const DefaultTTL = 15 * time.Second

// Cache implements service.StatsCache on Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// New connects to Redis and returns a cache. ttl <= 0 uses DefaultTTL.
func New(redisURL string, ttl time.Duration, logger *logging.Logger) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewWithClient(client, ttl, logger), nil
}

// NewWithClient wraps an existing Redis client. Used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached stats for an exact (machine, window) key.
// Cache failures report a miss; the read path stays fail-open.
func (c *Cache) Get(ctx context.Context, machineID string, start, end time.Time) (*models.MachineStats, bool) {
	data, err := c.client.Get(ctx, key(machineID, start, end)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "stats cache get failed", "machine_id", machineID, "error", err)
		return nil, false
	}

	var stats models.MachineStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		c.logger.WarnContext(ctx, "stats cache entry corrupt", "machine_id", machineID, "error", err)
		return nil, false
	}
	return &stats, true
}

// Set stores stats under the window key; errors are logged and dropped.
func (c *Cache) Set(ctx context.Context, stats *models.MachineStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		c.logger.WarnContext(ctx, "stats cache marshal failed", "machine_id", stats.MachineID, "error", err)
		return
	}
	if err := c.client.Set(ctx, key(stats.MachineID, stats.Start, stats.End), data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "stats cache set failed", "machine_id", stats.MachineID, "error", err)
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

func key(machineID string, start, end time.Time) string {
	return fmt.Sprintf("stats:machine:%s:%d:%d", machineID, start.UnixNano(), end.UnixNano())
}
