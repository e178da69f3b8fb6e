package middlewares

import (
	"github.com/dimsprat/scanner-gateway/utils"
	"github.com/gin-gonic/gin"
)

// WebSocketAuthMiddleware membaca token dari query karena browser tidak
// bisa mengirim header Authorization saat upgrade WebSocket.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(401)
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			c.AbortWithStatus(401)
			return
		}

		c.Set("role", claims.Role)
		c.Set("userID", claims.UserID)

		c.Next()
	}
}
