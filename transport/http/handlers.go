package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/vaultauth/core"
	"github.com/layer-3/vaultauth/service"
	"go.uber.org/zap"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	logger      *zap.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
	}
}

type nonceResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type verifyRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type verifyResponse struct {
	Token     string    `json:"token"`
	Address   string    `json:"address"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionResponse struct {
	Address   string    `json:"address"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Nonce issues a login nonce for the address in the query string
func (h *AuthHandlers) Nonce(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	challenge, err := h.authService.IssueNonce(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
			return
		}
		h.logger.Error("failed to issue nonce", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue nonce"})
		return
	}

	authOutcomes.WithLabelValues("nonce", "issued").Inc()
	c.JSON(http.StatusOK, nonceResponse{
		Nonce:     challenge.Value,
		Message:   challenge.Message,
		ExpiresAt: challenge.ExpiresAt.UTC(),
	})
}

// Verify checks the signed nonce and returns a session token
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		statusCode := http.StatusUnauthorized
		errorMsg := "Authentication failed"
		outcome := "error"

		switch {
		case errors.Is(err, core.ErrInvalidAddress):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid address"
			outcome = "bad_request"
		case errors.Is(err, core.ErrNoNonceIssued), errors.Is(err, core.ErrNonceMismatch):
			statusCode = http.StatusUnauthorized
			errorMsg = core.ErrNoNonceIssued.Error()
			outcome = "nonce_rejected"
		case errors.Is(err, core.ErrSignatureInvalid):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid signature"
			outcome = "signature_rejected"
		default:
			h.logger.Error("login failed", zap.String("address", req.Address), zap.Error(err))
		}

		authOutcomes.WithLabelValues("verify", outcome).Inc()
		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	authOutcomes.WithLabelValues("verify", "success").Inc()
	c.JSON(http.StatusOK, verifyResponse{
		Token:     result.Token,
		Address:   result.Session.Address,
		ExpiresAt: result.Session.ExpiresAt.UTC(),
	})
}

// Logout revokes the caller's session token
func (h *AuthHandlers) Logout(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrMissingAuthorizationHeader.Error()})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), p); err != nil {
		h.logger.Error("logout failed", zap.String("address", p.Address), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Session returns the authenticated session
func (h *AuthHandlers) Session(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": core.ErrMissingAuthorizationHeader.Error()})
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		Address:   p.Address,
		ExpiresAt: p.ExpiresAt.UTC(),
	})
}

// Me reports whether the caller is authenticated
func (h *AuthHandlers) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"address":       p.Address,
	})
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
