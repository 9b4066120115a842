package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/vaultauth/core"
	"github.com/layer-3/vaultauth/ports"
	"go.uber.org/zap"
)

// AuthService handles wallet authentication business logic
type AuthService struct {
	nonces      ports.NonceStore
	verifier    ports.SignatureVerifier
	tokenizer   ports.SessionIssuer
	revocations ports.RevocationStore

	eventPub ports.EventPublisher
	accounts ports.AccountRecorder
	logger   *zap.Logger

	now func() time.Time
}

// Option configures optional AuthService collaborators
type Option func(*AuthService)

// WithEventPublisher publishes login and logout events
func WithEventPublisher(pub ports.EventPublisher) Option {
	return func(s *AuthService) { s.eventPub = pub }
}

// WithAccountRecorder records successful logins
func WithAccountRecorder(rec ports.AccountRecorder) Option {
	return func(s *AuthService) { s.accounts = rec }
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *AuthService) { s.logger = logger }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	nonces ports.NonceStore,
	verifier ports.SignatureVerifier,
	tokenizer ports.SessionIssuer,
	revocations ports.RevocationStore,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		nonces:      nonces,
		verifier:    verifier,
		tokenizer:   tokenizer,
		revocations: revocations,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NonceChallenge is an issued nonce plus the message the wallet must sign
type NonceChallenge struct {
	core.Nonce
	Message string
}

// LoginResult carries the issued session token
type LoginResult struct {
	Token   string
	Session *core.Session
}

// IssueNonce creates a fresh login nonce for the wallet address
func (s *AuthService) IssueNonce(ctx context.Context, address string) (*NonceChallenge, error) {
	addr, err := core.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	nonce, err := s.nonces.Issue(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to issue nonce: %w", err)
	}

	now := s.now()
	return &NonceChallenge{
		Nonce: core.Nonce{
			Address:   addr,
			Value:     nonce,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.nonces.TTL()),
		},
		Message: core.LoginMessage(addr, nonce),
	}, nil
}

// Login verifies the wallet signature over the issued nonce and opens a session
func (s *AuthService) Login(ctx context.Context, address, signature string) (*LoginResult, error) {
	addr, err := core.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	nonce, err := s.nonces.Peek(ctx, addr)
	if err != nil {
		return nil, err
	}

	if !s.verifier.Verify(addr, core.LoginMessage(addr, nonce), signature) {
		return nil, core.ErrSignatureInvalid
	}

	// Only one concurrent login can consume the nonce; the others see it gone
	consumed, err := s.nonces.VerifyAndConsume(ctx, addr, nonce)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// A nonce re-issued since Peek replaced the one that was signed
		if current, err := s.nonces.Peek(ctx, addr); err == nil && current != nonce {
			return nil, core.ErrNonceMismatch
		}
		return nil, core.ErrNoNonceIssued
	}

	token, session, err := s.tokenizer.Issue(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("wallet logged in",
		zap.String("address", addr),
		zap.String("token_id", session.ID),
	)

	if s.accounts != nil {
		if err := s.accounts.RecordLogin(ctx, addr, session.IssuedAt); err != nil {
			s.logger.Warn("failed to record wallet login", zap.String("address", addr), zap.Error(err))
		}
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishLogin(ctx, addr, session.ID); err != nil {
			s.logger.Warn("failed to publish login event", zap.String("address", addr), zap.Error(err))
		}
	}

	return &LoginResult{Token: token, Session: session}, nil
}

// ValidateSession checks a bearer token and returns the authenticated principal
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*core.Principal, error) {
	res := s.tokenizer.Verify(token)
	if !res.Valid {
		return nil, res.Err()
	}

	revoked, err := s.revocations.IsRevoked(ctx, res.Session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, core.ErrTokenRevoked
	}

	return core.PrincipalFromSession(res.Session), nil
}

// Logout revokes the principal's token for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, principal *core.Principal) error {
	if principal == nil {
		return errors.New("logout requires an authenticated principal")
	}

	ttl := principal.ExpiresAt.Sub(s.now())
	if err := s.revocations.Revoke(ctx, principal.TokenID, ttl); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.logger.Info("wallet logged out",
		zap.String("address", principal.Address),
		zap.String("token_id", principal.TokenID),
	)

	if s.eventPub != nil {
		if err := s.eventPub.PublishLogout(ctx, principal.Address, principal.TokenID); err != nil {
			s.logger.Warn("failed to publish logout event", zap.String("address", principal.Address), zap.Error(err))
		}
	}

	return nil
}
