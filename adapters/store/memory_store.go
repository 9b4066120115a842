package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/vaultauth/ports"
)

// MemoryRevocationStore is an in-memory implementation of the RevocationStore interface
type MemoryRevocationStore struct {
	revoked map[string]time.Time
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryRevocationStore creates a new in-memory revocation store
func NewMemoryRevocationStore() ports.RevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke marks a token ID as revoked until ttl elapses
func (s *MemoryRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[tokenID] = now.Add(ttl)

	return nil
}

// IsRevoked checks if a token ID is revoked
func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}

	return s.now().Before(exp), nil
}
