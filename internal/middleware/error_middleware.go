package middleware

import (
	"net/http"

	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
	"relaychat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders errors attached with c.Error when the handler did not
// write a response itself. Internal errors are logged and never echoed.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	l = logger.OrNop(l)
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			l.ErrorCtx(c.Request.Context(), "request failed", zap.String("path", c.FullPath()), zap.Error(err))
			c.JSON(status, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
			return
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), ErrorCode(status)))
	}
}

// ErrorCode is the machine readable code sent next to an HTTP status.
func ErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_INPUT"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusRequestEntityTooLarge:
		return "TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
