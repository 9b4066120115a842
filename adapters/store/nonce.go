package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultNonceTTL is how long an issued nonce stays valid
const DefaultNonceTTL = 5 * time.Minute

// nonceBytes gives 256 bits of entropy per nonce
const nonceBytes = 32

func generateNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
