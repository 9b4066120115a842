package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// LoadSigningKey reads a PEM encoded EC P-256 private key
func LoadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	key, err := jwt.ParseECPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key must be on the P-256 curve, got %s", key.Curve.Params().Name)
	}

	return key, nil
}

// GenerateSigningKey creates an ephemeral P-256 key.
// Tokens signed with it do not survive a restart.
func GenerateSigningKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return key, nil
}
