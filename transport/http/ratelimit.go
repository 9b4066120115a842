package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig configures the fixed-window limiter
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	Block  time.Duration
	Prefix string
}

// incrScript increments the window counter and gives it a TTL whenever it has none,
// so a counter can never outlive its window.
var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func rateLimitKey(prefix, route, clientIP string) string {
	return prefix + ":" + route + ":ip:" + clientIP
}

// RateLimit limits requests per client IP using Redis counters.
// A nil client or non-positive limit disables it; Redis errors let the request through.
func RateLimit(rdb *redis.Client, cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if rdb == nil || cfg.Limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "vaultauth:ratelimit"
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		key := rateLimitKey(cfg.Prefix, c.FullPath(), c.ClientIP())
		blockKey := key + ":blocked"

		if blocked, _ := rdb.Get(ctx, blockKey).Result(); blocked == "1" {
			ttl, _ := rdb.TTL(ctx, blockKey).Result()
			reject(c, ttl)
			return
		}

		count, err := incrScript.Run(ctx, rdb, []string{key}, cfg.Window.Milliseconds()).Int64()
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count > int64(cfg.Limit) {
			if err := rdb.Set(ctx, blockKey, "1", cfg.Block).Err(); err != nil {
				logger.Warn("failed to block client", zap.String("key", key), zap.Error(err))
			}
			reject(c, cfg.Block)
			return
		}

		ttl, _ := rdb.TTL(ctx, key).Result()
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(cfg.Limit-int(count)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		c.Next()
	}
}

func reject(c *gin.Context, retryAfter time.Duration) {
	rateLimitExceeded.WithLabelValues(c.FullPath()).Inc()
	c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, retry in " + retryAfter.String()})
}
