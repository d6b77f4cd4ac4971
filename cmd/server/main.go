package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/schedulehq/conference-optimizer/internal/api"
	"github.com/schedulehq/conference-optimizer/internal/api/middleware"
	"github.com/schedulehq/conference-optimizer/internal/cache"
	"github.com/schedulehq/conference-optimizer/internal/config"
	"github.com/schedulehq/conference-optimizer/internal/engine"
	"github.com/schedulehq/conference-optimizer/internal/websocket"
	"github.com/schedulehq/conference-optimizer/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	log := logger.GetLogger()

	// Connect to Redis; the optimizer runs without it, result caching is just
	// disabled.
	var redisClient *redis.Client
	var cacheService *cache.Service
	if opt, err := redis.ParseURL(cfg.RedisURL); err != nil {
		log.Warnf("Invalid Redis URL, result caching disabled: %v", err)
	} else {
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warnf("Redis unreachable, result caching disabled: %v", err)
			redisClient.Close()
			redisClient = nil
		} else {
			cacheService = cache.NewService(redisClient)
			defer redisClient.Close()
		}
	}

	// Initialize services
	hub := websocket.NewProgressHub(log)
	go hub.Run()

	eng := engine.New(logger.WithService("engine"))

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS(cfg.CorsOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	// Setup API routes under /api/v1
	apiV1 := router.Group("/api/v1")
	api.SetupRoutes(apiV1, eng, cacheService, redisClient, hub, cfg, log)

	// Setup WebSocket endpoint at root level (not under /api/v1)
	router.GET("/ws", hub.HandleWebSocket)

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // optimization runs are long-lived
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
