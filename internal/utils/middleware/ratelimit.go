package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sokoni/server/internal/model"
	"github.com/sokoni/server/internal/port/outbound"
	"go.uber.org/zap"
)

const (
	// RateLimitRemaining is the header for remaining requests.
	RateLimitRemaining = "X-RateLimit-Remaining"
	// RateLimitLimit is the header for the limit.
	RateLimitLimit = "X-RateLimit-Limit"
	// RetryAfter is the header for retry time.
	RetryAfter = "Retry-After"
)

// RateLimitConfig holds rate limit configuration.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	// KeyFunc derives the limiter key. Defaults to the client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit rejects requests over the limit with 429. Limiter failures let
// the request through.
func RateLimit(limiter outbound.RateLimiterPort, cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string {
			return "ip:" + c.ClientIP()
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if limiter == nil || cfg.Limit <= 0 {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)
		ctx := c.Request.Context()

		allowed, err := limiter.Allow(ctx, key, cfg.Limit, cfg.Window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		remaining, err := limiter.GetRemaining(ctx, key, cfg.Limit, cfg.Window)
		if err == nil {
			c.Header(RateLimitRemaining, strconv.Itoa(remaining))
		}
		c.Header(RateLimitLimit, strconv.Itoa(cfg.Limit))

		if !allowed {
			c.Header(RetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ErrorResponse{
				Code:    "rate_limited",
				Message: "Too many payment attempts, please try again later",
			})
			return
		}

		c.Next()
	}
}

// RateLimitInitiate limits payment initiations per client IP.
func RateLimitInitiate(limiter outbound.RateLimiterPort, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return RateLimit(limiter, RateLimitConfig{
		Limit:  limit,
		Window: window,
		KeyFunc: func(c *gin.Context) string {
			return "initiate:" + c.ClientIP()
		},
	}, logger)
}
