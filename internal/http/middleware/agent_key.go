package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AgentKey guards the agent callback endpoints. An empty configured key
// disables the check.
func AgentKey(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if required == "" {
			c.Next()
			return
		}
		key := c.GetHeader("X-Agent-Key")
		if key != required {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Invalid agent key",
				},
			})
			return
		}
		c.Next()
	}
}
