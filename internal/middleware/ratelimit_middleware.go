package middleware

import (
	"context"
	"net/http"
	"strconv"

	"chatcore/internal/redis"
	"chatcore/internal/transport/httpdto"
	"chatcore/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UpgradeLimiter interface {
	AllowUpgrade(ctx context.Context, addr string) (*redis.RateLimitResult, error)
}

// UpgradeRateLimitMiddleware bounds websocket upgrades per client address.
// A limiter failure lets the request through.
func UpgradeRateLimitMiddleware(limiter UpgradeLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowUpgrade(c.Request.Context(), c.ClientIP())
		if err != nil {
			if l != nil {
				l.Ctx(c.Request.Context()).Warn("upgrade rate limit check failed", zap.Error(err))
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("connection rate limit exceeded", "RATE_LIMITED"))
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
