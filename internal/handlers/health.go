package handlers

import (
	"net/http"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler reports on the database, the notification queue and live streams.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.SSEHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub}
}

// CheckHealth GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	var pendingJuries int64
	if dbStatus == "ok" {
		h.db.Model(&models.Deliverable{}).Where("is_assigned = ?", false).Count(&pendingJuries)
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "econify",
		"components": gin.H{
			"database":       dbStatus,
			"queue_mode":     queueMode,
			"sse_clients":    h.hub.ClientCount(),
			"pending_juries": pendingJuries,
		},
	})
}
