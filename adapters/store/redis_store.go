package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/vaultauth/core"
	"github.com/layer-3/vaultauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisRevocationStore is a Redis implementation of the RevocationStore interface
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationStore creates a new Redis revocation store
func NewRedisRevocationStore(client *redis.Client) ports.RevocationStore {
	return &RedisRevocationStore{
		client: client,
		prefix: "vaultauth:revoked:",
	}
}

// Revoke marks a token ID as revoked for ttl
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired, nothing left to revoke
		return nil
	}

	if err := s.client.Set(ctx, s.prefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w: %w", core.ErrStoreOperationFailed, err)
	}

	return nil
}

// IsRevoked checks if a token ID is on the revocation list
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w: %w", core.ErrStoreOperationFailed, err)
	}

	return val > 0, nil
}
