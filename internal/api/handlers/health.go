package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/schedulehq/conference-optimizer/internal/websocket"
)

type HealthHandler struct {
	redisClient *redis.Client
	hub         *websocket.ProgressHub
	started     time.Time
}

func NewHealthHandler(redisClient *redis.Client, hub *websocket.ProgressHub) *HealthHandler {
	return &HealthHandler{
		redisClient: redisClient,
		hub:         hub,
		started:     time.Now(),
	}
}

// GetHealth returns basic health status - always returns 200 if server is running
// This is used for basic liveness probes
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"service": "schedule-optimizer",
	})
}

// GetReady returns readiness status - only returns 200 when redis is reachable
func (h *HealthHandler) GetReady(c *gin.Context) {
	if h.redisClient != nil {
		if err := h.redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"redis":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ready",
		"ws_clients":    h.hub.GetConnectionCount(),
		"redis_enabled": h.redisClient != nil,
	})
}

// GetMetrics returns lightweight process metrics for dashboards
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  mem.HeapAlloc / 1024 / 1024,
		"ws_clients":     h.hub.GetConnectionCount(),
		"redis_enabled":  h.redisClient != nil,
	})
}
