package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/layer-3/vaultauth/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RouterConfig holds the transport settings
type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      RateLimitConfig
	// Redis backs the rate limiter; nil disables limiting
	Redis *redis.Client
}

// SetupRouter sets up the Gin router wrapped in the CORS handler
func SetupRouter(authService *service.AuthService, cfg RouterConfig, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestID(), AccessLog(logger), gin.Recovery(), Instrument())

	handlers := NewAuthHandlers(authService, logger)
	limited := RateLimit(cfg.Redis, cfg.RateLimit, logger)

	router.GET("/healthz", healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/auth")
	{
		auth.GET("/nonce", limited, handlers.Nonce)
		auth.POST("/verify", limited, handlers.Verify)
		auth.POST("/logout", RequireAuth(authService, logger), handlers.Logout)
		auth.GET("/session", RequireAuth(authService, logger), handlers.Session)
		auth.GET("/me", OptionalAuth(authService), handlers.Me)
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)
}
