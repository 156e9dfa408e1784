package middleware

import (
	"context"
	"net/http"
	"strings"

	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
	"relaychat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookie carries the access token for browser clients.
const SessionCookie = "session"

// TokenAuthenticator resolves an access token to a user id.
type TokenAuthenticator interface {
	Authenticate(token string) (uuid.UUID, error)
}

func AuthMiddleware(auth TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.Authenticate(ExtractToken(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), userID))
		c.Next()
	}
}

// WithUser stores userID for services and for request scoped logging.
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	ctx = services.WithUserContext(ctx, userID)
	return context.WithValue(ctx, logger.UserIdKey, userID.String())
}

// ExtractToken reads the access token from the Authorization header, falling
// back to the session cookie.
func ExtractToken(c *gin.Context) string {
	if token := extractBearer(c); token != "" {
		return token
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
