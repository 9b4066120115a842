package ports

import (
	"context"
	"time"
)

// NonceStore holds one single-use login nonce per wallet address
type NonceStore interface {
	// Issue generates a fresh nonce for address, replacing any previous one
	Issue(ctx context.Context, address string) (string, error)
	// Peek returns the live nonce without consuming it
	Peek(ctx context.Context, address string) (string, error)
	// VerifyAndConsume deletes the nonce if it matches supplied, atomically.
	// A mismatch leaves the stored nonce in place.
	VerifyAndConsume(ctx context.Context, address, supplied string) (bool, error)
	// TTL is how long an issued nonce stays valid
	TTL() time.Duration
}

// RevocationStore tracks revoked session token IDs until they would expire anyway
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
