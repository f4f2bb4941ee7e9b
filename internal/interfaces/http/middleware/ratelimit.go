package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/interfaces/http/dto"
)

// RateLimitKeyFunc picks the bucket a request counts against
type RateLimitKeyFunc func(c *gin.Context) string

// ClientIPKey buckets requests by client IP
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// PathParamKey buckets requests by a route parameter, for example one bucket per supplier
func PathParamKey(param string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		if v := c.Param(param); v != "" {
			return param + ":" + v
		}
		return c.ClientIP()
	}
}

// NewRateLimiter creates an in-memory limiter allowing limit requests per window
func NewRateLimiter(limit int, window time.Duration) *limiter.Limiter {
	rate := limiter.Rate{
		Period: window,
		Limit:  int64(limit),
	}
	return limiter.New(memory.NewStore(), rate)
}

// RateLimit returns a rate limiting middleware keyed by client IP
func RateLimit(l *limiter.Limiter) gin.HandlerFunc {
	return RateLimitByKey(l, ClientIPKey, nil)
}

// RateLimitByKey returns a rate limiting middleware with custom key extractor.
// A store failure lets the request through and is logged.
func RateLimitByKey(l *limiter.Limiter, keyFunc RateLimitKeyFunc, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := keyFunc(c)

		lctx, err := l.Get(c.Request.Context(), key)
		if err != nil {
			logger.Warn("Rate limiter store failed, allowing request",
				zap.String("key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			c.Set(ErrorCodeKey, dto.ErrCodeRateLimited)
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeRateLimited, "Too many requests. Please try again later.", getRequestID(c)))
			return
		}

		c.Next()
	}
}
