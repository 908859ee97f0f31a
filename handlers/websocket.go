package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"water-quality-api/models"
	"water-quality-api/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LivePredictions streams the caller's newly saved predictions over a
// websocket, fed by the redis pub/sub channel. Records belonging to other
// owners are filtered out before they reach the socket.
func LivePredictions(cache *services.CacheService, authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token query parameter"})
			return
		}

		claims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Read pump: detect client disconnect
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		pubsub := cache.Subscribe(ctx, services.PredictionsChannel)
		if pubsub == nil {
			conn.WriteJSON(gin.H{"type": "error", "error": "live feed unavailable"})
			return
		}
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var rec models.WaterPrediction
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					log.Printf("live feed payload decode failed: %v", err)
					continue
				}
				if rec.UserID != claims.UserID {
					continue
				}
				err := conn.WriteJSON(gin.H{
					"type": "prediction_saved",
					"data": rec,
				})
				if err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			}
		}
	}
}
