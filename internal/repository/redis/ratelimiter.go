package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKey    = "dispatch:ratelimit:gateway"
	rateLimitWindow = time.Second
)

// RateLimiter implements domain.RateLimiter using a Redis sliding window.
// It gates outbound gateway sends across all workers (and all replicas
// sharing the Redis instance).
type RateLimiter struct {
	client      *Client
	limitPerSec int
}

// NewRateLimiter creates a new RateLimiter
func NewRateLimiter(client *Client, limitPerSec int) *RateLimiter {
	return &RateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
	}
}

// Allow checks if a send is allowed under the rate limit using sliding window
func (r *RateLimiter) Allow(ctx context.Context) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-rateLimitWindow)

	pipe := r.client.client.Pipeline()

	// Remove old entries outside the window
	pipe.ZRemRangeByScore(ctx, rateLimitKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))

	// Count current entries in the window
	countCmd := pipe.ZCard(ctx, rateLimitKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if countCmd.Val() >= int64(r.limitPerSec) {
		return false, nil
	}

	// Add new entry with current timestamp as score
	if err := r.client.client.ZAdd(ctx, rateLimitKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	}).Err(); err != nil {
		return false, fmt.Errorf("failed to record send: %w", err)
	}

	// Set expiry on the key
	r.client.client.Expire(ctx, rateLimitKey, 2*rateLimitWindow)

	return true, nil
}

// Wait blocks until a send is allowed
func (r *RateLimiter) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		allowed, err := r.Allow(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
