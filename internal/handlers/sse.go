package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/econify/econify/internal/middleware"
	"github.com/econify/econify/internal/services"
	"github.com/econify/econify/internal/utils"
	"github.com/econify/econify/pkg/logger"
	"github.com/econify/econify/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SSEHandler streams a user's notifications as Server-Sent Events.
type SSEHandler struct {
	hub *services.SSEHub
}

func NewSSEHandler(hub *services.SSEHub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// StreamNotifications accepts the token as a query parameter because
// EventSource cannot set headers
// GET /api/events/notifications
func (h *SSEHandler) StreamNotifications(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = middleware.BearerToken(c)
	}
	if token == "" {
		response.Unauthorized(c, "missing token")
		return
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		response.Unauthorized(c, "invalid token")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID, claims.UserID)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Uint("user_id", claims.UserID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(n)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}
