package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storycast/infrastructure/configuration"
)

// NewRedisClient connects to the shared cache used for cross-process rate
// accounting.
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	cfg := configuration.C.RedisClient
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// RequestCounter counts publish attempts per key across all instances so the
// per-platform rate cap holds even when several schedulers run.
type RequestCounter struct {
	client *redis.Client
}

func NewRequestCounter(client *redis.Client) *RequestCounter {
	return &RequestCounter{client: client}
}

func (c *RequestCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		// First hit in this window owns the expiry.
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}
