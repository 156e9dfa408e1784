package middleware

import (
	"context"
	"strconv"

	"relaychat/internal/redis"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
	relay_errors "relaychat/pkg/errors"
	"relaychat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limiter is the part of redis.RateLimiter the middleware needs.
type Limiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
	AllowCall(ctx context.Context, userID string) (*redis.RateLimitResult, error)
	AllowAuth(ctx context.Context, ip string) (*redis.RateLimitResult, error)
}

// CallRateLimitMiddleware limits call initiation per user. Apply it after
// AuthMiddleware. A nil limiter disables the check.
func CallRateLimitMiddleware(limiter Limiter, l *logger.Logger) gin.HandlerFunc {
	if limiter == nil {
		return perUser(nil, l, "call rate limit exceeded")
	}
	return perUser(limiter.AllowCall, l, "call rate limit exceeded")
}

// MessageRateLimitMiddleware limits message posting per user.
func MessageRateLimitMiddleware(limiter Limiter, l *logger.Logger) gin.HandlerFunc {
	if limiter == nil {
		return perUser(nil, l, "message rate limit exceeded")
	}
	return perUser(limiter.AllowMessage, l, "message rate limit exceeded")
}

func perUser(allow func(context.Context, string) (*redis.RateLimitResult, error), l *logger.Logger, message string) gin.HandlerFunc {
	return rateLimit(l, message, func(c *gin.Context) (*redis.RateLimitResult, bool, error) {
		if allow == nil {
			return nil, false, nil
		}
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			return nil, false, nil
		}
		res, err := allow(c.Request.Context(), userID.String())
		return res, true, err
	})
}

// AuthRateLimitMiddleware limits login and register attempts per client IP.
func AuthRateLimitMiddleware(limiter Limiter, l *logger.Logger) gin.HandlerFunc {
	return rateLimit(l, "rate limit exceeded", func(c *gin.Context) (*redis.RateLimitResult, bool, error) {
		if limiter == nil {
			return nil, false, nil
		}
		res, err := limiter.AllowAuth(c.Request.Context(), c.ClientIP())
		return res, true, err
	})
}

// rateLimit fails open: when the limiter errors the request goes through
// and the error is logged.
func rateLimit(l *logger.Logger, message string, check func(*gin.Context) (*redis.RateLimitResult, bool, error)) gin.HandlerFunc {
	l = logger.OrNop(l)
	return func(c *gin.Context) {
		result, applied, err := check(c)
		if !applied {
			c.Next()
			return
		}
		if err != nil {
			l.WarnCtx(c.Request.Context(), "rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)
		if !result.Allowed {
			status := services.HTTPStatus(relay_errors.ErrRateLimited)
			c.JSON(status, httpdto.NewErrorResponse(message, ErrorCode(status)))
			c.Abort()
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
