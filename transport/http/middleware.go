package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/vaultauth/core"
	"github.com/layer-3/vaultauth/service"
	"go.uber.org/zap"
)

type ctxKey string

const principalKey ctxKey = "vaultauth.principal"

// principalGinKey is the gin context key holding the *core.Principal
const principalGinKey = "principal"

// WithPrincipal returns a copy of ctx carrying the authenticated principal
func WithPrincipal(ctx context.Context, p *core.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal attached by the auth middleware
func PrincipalFromContext(ctx context.Context) (*core.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*core.Principal)
	return p, ok && p != nil
}

// AddressFromContext returns the authenticated wallet address, if any
func AddressFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", false
	}
	return p.Address, true
}

func principal(c *gin.Context) (*core.Principal, bool) {
	v, ok := c.Get(principalGinKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*core.Principal)
	return p, ok && p != nil
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}

func attach(c *gin.Context, p *core.Principal) {
	c.Set(principalGinKey, p)
	c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
}

// RequireAuth rejects requests without a valid session token
func RequireAuth(authService *service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			authOutcomes.WithLabelValues("session", "missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": core.ErrMissingAuthorizationHeader.Error()})
			return
		}

		p, err := authService.ValidateSession(c.Request.Context(), token)
		if err != nil {
			authOutcomes.WithLabelValues("session", "rejected").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": sessionErrorMessage(err, logger)})
			return
		}

		attach(c, p)
		c.Next()
	}
}

// OptionalAuth annotates the request when a valid token is present and never rejects
func OptionalAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if p, err := authService.ValidateSession(c.Request.Context(), token); err == nil {
				attach(c, p)
			}
		}
		c.Next()
	}
}

func sessionErrorMessage(err error, logger *zap.Logger) string {
	switch {
	case errors.Is(err, core.ErrTokenExpired),
		errors.Is(err, core.ErrTokenMalformed),
		errors.Is(err, core.ErrTokenSignatureInvalid),
		errors.Is(err, core.ErrTokenRevoked):
		return err.Error()
	default:
		logger.Error("session validation failed", zap.Error(err))
		return "Authentication failed"
	}
}
