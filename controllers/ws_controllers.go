package controllers

import (
	"net/http"

	"github.com/dimsprat/scanner-gateway/hub"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // gateway hanya listen di perangkat lokal
	},
}

// StatusWSHandler -> endpoint WebSocket untuk pesan status sinkronisasi
func StatusWSHandler(statusHub *hub.StatusHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleInterface, exists := c.Get("role")
		if !exists {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		role := roleInterface.(string)

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		statusHub.Register(ws, role)

		// Baca pesan hanya untuk mendeteksi disconnect
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		statusHub.Unregister(ws)
	}
}
