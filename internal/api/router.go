package api

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/schedulehq/conference-optimizer/internal/api/handlers"
	"github.com/schedulehq/conference-optimizer/internal/cache"
	"github.com/schedulehq/conference-optimizer/internal/config"
	"github.com/schedulehq/conference-optimizer/internal/engine"
	"github.com/schedulehq/conference-optimizer/internal/websocket"
)

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, eng *engine.Engine, cacheService *cache.Service, redisClient *redis.Client, hub *websocket.ProgressHub, cfg *config.Config, logger *logrus.Logger) {
	scheduleHandler := handlers.NewScheduleHandler(eng, cacheService, hub, cfg, logger)
	templateHandler := handlers.NewTemplateHandler(logger)
	healthHandler := handlers.NewHealthHandler(redisClient, hub)

	// Schedule endpoints
	group.POST("/schedules/optimize", scheduleHandler.Optimize)
	group.POST("/schedules/evaluate", scheduleHandler.Evaluate)
	group.POST("/schedules/validate-modification", scheduleHandler.ValidateModification)
	group.GET("/runs/:id", scheduleHandler.GetRun)
	group.DELETE("/runs/:id", scheduleHandler.DeleteRun)

	// Constraint template endpoints
	group.GET("/templates", templateHandler.ListTemplates)
	group.POST("/templates/:name", templateHandler.ExpandTemplate)

	// Health endpoints
	group.GET("/health", healthHandler.GetHealth)
	group.GET("/ready", healthHandler.GetReady)
	group.GET("/metrics", healthHandler.GetMetrics)
}
