package repository

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimitRepository counts attempts per key within a rolling window.
type RateLimitRepository interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
	Reset(ctx context.Context, key string) error
}

type rateLimitRepository struct {
	client *goredis.Client
	prefix string
}

func NewRateLimitRepository(client *goredis.Client) RateLimitRepository {
	return &rateLimitRepository{client: client, prefix: "ratelimit:"}
}

// IncrWithTTL increments the counter and sets the window TTL on first
// increment only, so the window does not slide on every attempt.
func (r *rateLimitRepository) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	full := r.prefix + key

	count, err := r.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing rate limit counter: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, full, ttl).Err(); err != nil {
			return count, fmt.Errorf("setting rate limit ttl: %w", err)
		}
	}

	return count, nil
}

func (r *rateLimitRepository) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	count, err := r.IncrWithTTL(ctx, key, window)
	if err != nil {
		return false, err
	}
	return count <= limit, nil
}

func (r *rateLimitRepository) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
