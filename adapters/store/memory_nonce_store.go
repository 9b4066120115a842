package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/vaultauth/core"
	"github.com/layer-3/vaultauth/ports"
)

type memoryNonce struct {
	value     string
	expiresAt time.Time
}

// MemoryNonceStore is an in-memory implementation of the NonceStore interface.
// Used in development mode and tests; not shared across instances.
type MemoryNonceStore struct {
	nonces map[string]memoryNonce
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

// NewMemoryNonceStore creates a new in-memory nonce store
func NewMemoryNonceStore(ttl time.Duration) ports.NonceStore {
	return newMemoryNonceStore(ttl, time.Now)
}

func newMemoryNonceStore(ttl time.Duration, now func() time.Time) *MemoryNonceStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &MemoryNonceStore{
		nonces: make(map[string]memoryNonce),
		ttl:    ttl,
		now:    now,
	}
}

// TTL returns the nonce lifetime
func (s *MemoryNonceStore) TTL() time.Duration {
	return s.ttl
}

// Issue stores a fresh nonce for the address, overwriting any previous one.
// Expired nonces of other addresses are swept on the way.
func (s *MemoryNonceStore) Issue(ctx context.Context, address string) (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, n := range s.nonces {
		if !now.Before(n.expiresAt) {
			delete(s.nonces, key)
		}
	}
	s.nonces[core.NormalizeAddress(address)] = memoryNonce{
		value:     nonce,
		expiresAt: now.Add(s.ttl),
	}

	return nonce, nil
}

// Peek returns the live nonce for the address
func (s *MemoryNonceStore) Peek(ctx context.Context, address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.live(core.NormalizeAddress(address))
	if !ok {
		return "", core.ErrNoNonceIssued
	}
	return n.value, nil
}

// VerifyAndConsume deletes the nonce if it matches supplied
func (s *MemoryNonceStore) VerifyAndConsume(ctx context.Context, address, supplied string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := core.NormalizeAddress(address)
	n, ok := s.live(key)
	if !ok || supplied == "" || n.value != supplied {
		return false, nil
	}

	delete(s.nonces, key)
	return true, nil
}

// live must be called with mu held. Expired entries are dropped on access.
func (s *MemoryNonceStore) live(key string) (memoryNonce, bool) {
	n, ok := s.nonces[key]
	if !ok {
		return memoryNonce{}, false
	}
	if !s.now().Before(n.expiresAt) {
		delete(s.nonces, key)
		return memoryNonce{}, false
	}
	return n, true
}
