package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MetricsHandler renders gauges in the Prometheus text exposition format.
type MetricsHandler struct {
	db      *gorm.DB
	queue   services.TaskQueue
	hub     *services.SSEHub
	started time.Time
}

func NewMetricsHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub) *MetricsHandler {
	return &MetricsHandler{db: db, queue: queue, hub: hub, started: time.Now()}
}

// Metrics GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "econify_uptime_seconds", "Time since server start in seconds", time.Since(h.started).Seconds())
	writeGauge(&b, "econify_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "econify_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "econify_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "econify_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "econify_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
		writeGauge(&b, "econify_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
	}

	writeGauge(&b, "econify_sse_active_clients", "Number of active SSE connections", float64(h.hub.ClientCount()))

	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1
	}
	writeGauge(&b, "econify_queue_async_enabled", "Whether the Redis queue is enabled (1=yes, 0=no)", queueAsync)

	var users, projects, teams, deliverables, pendingJuries, released, grades int64
	h.db.Model(&models.User{}).Where("is_active = ?", true).Count(&users)
	h.db.Model(&models.Project{}).Count(&projects)
	h.db.Model(&models.Team{}).Count(&teams)
	h.db.Model(&models.Deliverable{}).Count(&deliverables)
	h.db.Model(&models.Deliverable{}).Where("is_assigned = ?", false).Count(&pendingJuries)
	h.db.Model(&models.Deliverable{}).Where("released = ?", true).Count(&released)
	h.db.Model(&models.Grade{}).Count(&grades)

	writeGauge(&b, "econify_users_active", "Number of active users", float64(users))
	writeGauge(&b, "econify_projects_total", "Total number of projects", float64(projects))
	writeGauge(&b, "econify_teams_total", "Total number of teams", float64(teams))
	writeGauge(&b, "econify_deliverables_total", "Total number of deliverables", float64(deliverables))
	writeGauge(&b, "econify_deliverables_without_jury", "Deliverables with no jury drawn yet", float64(pendingJuries))
	writeGauge(&b, "econify_deliverables_released", "Deliverables whose grades are released", float64(released))
	writeGauge(&b, "econify_grades_total", "Total number of submitted grades", float64(grades))

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
