package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/vaultauth/core"
	"github.com/layer-3/vaultauth/ports"
)

const (
	AudienceSession = "session:access"
	DefaultIssuer   = "vaultauth"

	// DefaultSessionTTL is the lifetime of a session token
	DefaultSessionTTL = 24 * time.Hour
)

// JWTTokenizer issues and validates ES256 session tokens
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	issuer  string
	ttl     time.Duration
	now     func() time.Time
}

// Option customizes a JWTTokenizer
type Option func(*JWTTokenizer)

// WithIssuer overrides the iss claim
func WithIssuer(issuer string) Option {
	return func(j *JWTTokenizer) { j.issuer = issuer }
}

// WithClock overrides the time source used for iat, exp and validation
func WithClock(now func() time.Time) Option {
	return func(j *JWTTokenizer) { j.now = now }
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, ttl time.Duration, opts ...Option) *JWTTokenizer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	j := &JWTTokenizer{
		signKey: signKey,
		issuer:  DefaultIssuer,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

var _ ports.SessionIssuer = (*JWTTokenizer)(nil)

// Issue mints a session token bound to address
func (j *JWTTokenizer) Issue(address string) (string, *core.Session, error) {
	// NumericDate has second precision; keep the returned session in sync with the claims
	now := j.now().Truncate(time.Second)
	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   core.NormalizeAddress(address),
		IssuedAt:  now,
		ExpiresAt: now.Add(j.ttl),
	}

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.Address,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, session, nil
}

// Verify validates tamper-evidence and expiry of a session token
func (j *JWTTokenizer) Verify(tokenStr string) ports.VerifyResult {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, j.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithAudience(AudienceSession),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return ports.VerifyResult{Error: reason(err)}
	}

	if !token.Valid || claims.ID == "" || claims.IssuedAt == nil || !common.IsHexAddress(claims.Subject) {
		return ports.VerifyResult{Error: ports.ReasonMalformed}
	}

	session := &core.Session{
		ID:        claims.ID,
		Address:   core.NormalizeAddress(claims.Subject),
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	return ports.VerifyResult{
		Valid:   true,
		Address: session.Address,
		Session: session,
	}
}

func (j *JWTTokenizer) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return &j.signKey.PublicKey, nil
}

// reason maps jwt parse errors onto the failure reasons reported to callers
func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ports.ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ports.ReasonInvalidSignature
	default:
		return ports.ReasonMalformed
	}
}

