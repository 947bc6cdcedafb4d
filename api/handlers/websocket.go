// Package handlers provides HTTP API request handlers.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/commhub/backend/internal/ws"
)

// WebSocketHandler exposes the hub's connection endpoint.
type WebSocketHandler struct {
	hub *ws.Service
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(hub *ws.Service) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// Attach handles GET /api/ws - upgrades to WebSocket and registers the
// session. An optional sessionId query parameter reattaches a previous
// logical session.
func (h *WebSocketHandler) Attach(c *gin.Context) {
	if err := h.hub.Handler().HandleConnection(c.Writer, c.Request); err != nil {
		// The upgrader has already written its error response.
		return
	}
}

// RegisterRoutes registers the WebSocket handler routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws", h.Attach)
}
