package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ejezie/Enact-Pricing/internal/services"
)

// TokenKey is the gin context key the validated session token is stored
// under.
const TokenKey = "session_token"

// ValidateSession checks the X-Session-Token header (or ?token= query) and
// verifies the session exists in Redis.
func ValidateSession(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Session-Token")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "session token required"})
			c.Abort()
			return
		}

		exists, err := sessions.Exists(c.Request.Context(), token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid or expired session"})
			c.Abort()
			return
		}

		c.Set(TokenKey, token)
		c.Next()
	}
}
