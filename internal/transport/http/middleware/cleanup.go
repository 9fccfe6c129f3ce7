package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"teamspace/internal/transport/http/response"
)

// CleanupSecret guards the on-demand cleanup trigger with a static bearer
// secret, separate from user JWTs so an external scheduler can call it.
func CleanupSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Fail(c, 401, "missing or invalid authorization header", nil)
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			response.Fail(c, 403, "invalid cleanup secret", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
