package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/vaultauth/core"
	"github.com/layer-3/vaultauth/ports"
	"github.com/redis/go-redis/v9"
)

// consumeScript deletes the key only when it still holds the supplied nonce.
// Returns 1 when the nonce was consumed, 0 otherwise.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisNonceStore keeps login nonces in Redis and relies on key TTLs for expiry
type RedisNonceStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisNonceStore creates a Redis backed nonce store
func NewRedisNonceStore(client *redis.Client, ttl time.Duration) ports.NonceStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &RedisNonceStore{
		client: client,
		prefix: "vaultauth:nonce:",
		ttl:    ttl,
	}
}

// TTL returns the nonce lifetime
func (s *RedisNonceStore) TTL() time.Duration {
	return s.ttl
}

func (s *RedisNonceStore) key(address string) string {
	return s.prefix + core.NormalizeAddress(address)
}

// Issue stores a fresh nonce for the address, overwriting any previous one
func (s *RedisNonceStore) Issue(ctx context.Context, address string) (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, s.key(address), nonce, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w: %w", core.ErrStoreOperationFailed, err)
	}

	return nonce, nil
}

// Peek returns the live nonce for the address
func (s *RedisNonceStore) Peek(ctx context.Context, address string) (string, error) {
	nonce, err := s.client.Get(ctx, s.key(address)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", core.ErrNoNonceIssued
		}
		return "", fmt.Errorf("failed to read nonce: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return nonce, nil
}

// VerifyAndConsume atomically deletes the nonce if it matches
func (s *RedisNonceStore) VerifyAndConsume(ctx context.Context, address, supplied string) (bool, error) {
	if supplied == "" {
		return false, nil
	}

	deleted, err := consumeScript.Run(ctx, s.client, []string{s.key(address)}, supplied).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w: %w", core.ErrStoreOperationFailed, err)
	}

	return deleted == 1, nil
}
