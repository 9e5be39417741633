package redis

import (
	"context"
	"fmt"
	"time"
)

const suppressionKeyPrefix = "dispatch:suppressed:"

// SuppressionList implements domain.SuppressionList using Redis keys with a
// TTL. Tokens the gateway reported unregistered are remembered here so later
// batches skip them without a gateway call; the TTL lets a re-registered
// device recover eventually.
type SuppressionList struct {
	client *Client
}

// NewSuppressionList creates a new SuppressionList
func NewSuppressionList(client *Client) *SuppressionList {
	return &SuppressionList{client: client}
}

func suppressionKey(token string) string {
	return suppressionKeyPrefix + token
}

// IsSuppressed reports whether the token was previously suppressed.
func (s *SuppressionList) IsSuppressed(ctx context.Context, token string) (bool, error) {
	n, err := s.client.client.Exists(ctx, suppressionKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check suppression: %w", err)
	}
	return n > 0, nil
}

// Suppress marks the token so future dispatches skip it until ttl elapses.
func (s *SuppressionList) Suppress(ctx context.Context, token string, ttl time.Duration) error {
	if err := s.client.client.Set(ctx, suppressionKey(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to suppress token: %w", err)
	}
	return nil
}
