package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/commhub/backend/internal/model"
	"github.com/commhub/backend/internal/repository"
	"github.com/commhub/backend/internal/ws"
)

// HubHandler exposes the admin surface: live session stats and the
// activity log.
type HubHandler struct {
	hub        *ws.Service
	activities *repository.ActivityRepository
}

// NewHubHandler creates a new HubHandler.
func NewHubHandler(hub *ws.Service, activities *repository.ActivityRepository) *HubHandler {
	return &HubHandler{
		hub:        hub,
		activities: activities,
	}
}

// Stats handles GET /api/hub/stats - reports live sessions.
func (h *HubHandler) Stats(c *gin.Context) {
	stats := h.hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"sessionCount": len(stats),
		"sessions":     stats,
	})
}

// ListActivity handles GET /api/activity - lists recent activity records.
func (h *HubHandler) ListActivity(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.activities.List(c.Request.Context(), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list activity: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": records})
}

// GetActivity handles GET /api/activity/:id - retrieves one activity record.
func (h *HubHandler) GetActivity(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "id must be an integer")
		return
	}

	record, err := h.activities.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrActivityNotFound) {
			sendError(c, http.StatusNotFound, "NOT_FOUND", "Activity record not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get activity: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, record)
}

// RegisterRoutes registers the hub admin routes on a Gin router group.
func (h *HubHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/hub/stats", h.Stats)
	rg.GET("/activity", h.ListActivity)
	rg.GET("/activity/:id", h.GetActivity)
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError writes a structured error response.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
