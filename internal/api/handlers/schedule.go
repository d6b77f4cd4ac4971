package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/schedulehq/conference-optimizer/internal/cache"
	"github.com/schedulehq/conference-optimizer/internal/config"
	"github.com/schedulehq/conference-optimizer/internal/constraint"
	"github.com/schedulehq/conference-optimizer/internal/domain"
	"github.com/schedulehq/conference-optimizer/internal/engine"
	"github.com/schedulehq/conference-optimizer/internal/orchestrator"
	"github.com/schedulehq/conference-optimizer/internal/websocket"
	"github.com/schedulehq/conference-optimizer/pkg/logger"
	"github.com/schedulehq/conference-optimizer/pkg/utils"
)

// defaultResultCacheTTL applies when no config is wired in.
const defaultResultCacheTTL = time.Hour

type ScheduleHandler struct {
	engine *engine.Engine
	cache  *cache.Service
	hub    *websocket.ProgressHub
	config *config.Config
	logger *logrus.Logger
}

func NewScheduleHandler(eng *engine.Engine, cacheService *cache.Service, hub *websocket.ProgressHub, cfg *config.Config, logger *logrus.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		engine: eng,
		cache:  cacheService,
		hub:    hub,
		config: cfg,
		logger: logger,
	}
}

type optimizeRequest struct {
	Schedule    SchedulePayload         `json:"schedule" binding:"required"`
	Constraints []constraint.Constraint `json:"constraints"`
	Options     *orchestrator.Options   `json:"options"`
}

type optimizeResponse struct {
	RunID    string          `json:"run_id"`
	Schedule SchedulePayload `json:"schedule"`
}

// Optimize runs the full optimization pipeline synchronously. Identical
// requests within the cache TTL are answered from redis. Progress is streamed
// over the WebSocket hub keyed by run_id.
func (h *ScheduleHandler) Optimize(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		utils.SendValidationError(c, "Failed to read request body", err.Error())
		return
	}

	var req optimizeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	ctx := c.Request.Context()
	cacheKey := cache.OptimizeRequestKey(body)
	if h.cache != nil {
		var cached optimizeResponse
		if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
			h.logger.WithField("run_id", cached.RunID).Debug("Optimize request served from cache")
			utils.SendSuccess(c, cached)
			return
		}
	}

	runID := uuid.New().String()
	schedule := req.Schedule.ToDomain()

	opts := orchestrator.DefaultOptions()
	if h.config != nil {
		opts = h.optionsFromConfig(opts)
	}
	if req.Options != nil {
		opts = mergeOptions(opts, *req.Options)
	}

	optimizer := orchestrator.New(h.engine, logger.WithRunContext(runID, schedule.Sport, schedule.Season))
	if h.hub != nil {
		optimizer.SetProgress(func(ev orchestrator.Event) {
			h.hub.BroadcastProgress(runID, ev.Kind, ev.Payload)
		})
	}

	result, err := optimizer.Optimize(ctx, schedule, req.Constraints, opts)
	if err != nil {
		h.sendOptimizeError(c, err)
		return
	}

	resp := optimizeResponse{RunID: runID, Schedule: FromDomain(result)}
	if h.cache != nil {
		ttl := defaultResultCacheTTL
		if h.config != nil && h.config.ResultCacheTTLSeconds > 0 {
			ttl = time.Duration(h.config.ResultCacheTTLSeconds) * time.Second
		}
		if err := h.cache.Set(ctx, cacheKey, resp, ttl); err != nil {
			h.logger.WithError(err).Warn("Failed to cache optimize result")
		}
		// The run result backs GET /runs/:id, so it is worth a few retries.
		if err := h.cache.SetWithRetry(ctx, cache.RunResultKey(runID), resp, ttl, 3); err != nil {
			h.logger.WithError(err).Warn("Failed to cache run result")
		}
	}

	utils.SendSuccess(c, resp)
}

// GetRun returns a previously computed run by ID from the result cache.
func (h *ScheduleHandler) GetRun(c *gin.Context) {
	runID := c.Param("id")
	if h.cache == nil {
		utils.SendNotFound(c, "Run result cache disabled")
		return
	}

	var resp optimizeResponse
	if err := h.cache.Get(c.Request.Context(), cache.RunResultKey(runID), &resp); err != nil {
		utils.SendNotFound(c, "Run not found: "+runID)
		return
	}
	utils.SendSuccess(c, resp)
}

// DeleteRun evicts a cached run result.
func (h *ScheduleHandler) DeleteRun(c *gin.Context) {
	runID := c.Param("id")
	if h.cache == nil {
		utils.SendNotFound(c, "Run result cache disabled")
		return
	}

	if err := h.cache.Delete(c.Request.Context(), cache.RunResultKey(runID)); err != nil {
		utils.SendInternalError(c, "Failed to delete run: "+runID)
		return
	}
	logger.WithRun(runID).Debug("Run result evicted")
	utils.SendSuccess(c, gin.H{"deleted": runID})
}

type evaluateRequest struct {
	Schedule    SchedulePayload         `json:"schedule" binding:"required"`
	Constraints []constraint.Constraint `json:"constraints"`
}

// Evaluate scores a schedule against a constraint set without optimizing.
func (h *ScheduleHandler) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	schedule := req.Schedule.ToDomain()
	processed, err := h.engine.Process(req.Constraints, engine.Context{
		Sport:     schedule.Sport,
		TeamCount: len(schedule.Teams),
	})
	if err != nil {
		h.sendOptimizeError(c, err)
		return
	}

	result := h.engine.Evaluate(processed.Effective, schedule, nil)
	logger.WithScheduleContext(schedule.ID, schedule.Sport).WithFields(logrus.Fields{
		"total_score":     result.TotalScore,
		"hard_violations": result.HardViolations,
	}).Debug("Schedule evaluated")
	utils.SendSuccess(c, gin.H{
		"evaluation": result,
		"conflicts":  processed.Conflicts,
	})
}

type validateModificationRequest struct {
	Schedule     SchedulePayload         `json:"schedule" binding:"required"`
	Constraints  []constraint.Constraint `json:"constraints"`
	Modification engine.Modification     `json:"modification" binding:"required"`
}

// ValidateModification checks a proposed single-game edit against the hard
// constraints before the caller commits it.
func (h *ScheduleHandler) ValidateModification(c *gin.Context) {
	var req validateModificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	schedule := req.Schedule.ToDomain()
	processed, err := h.engine.Process(req.Constraints, engine.Context{
		Sport:     schedule.Sport,
		TeamCount: len(schedule.Teams),
	})
	if err != nil {
		h.sendOptimizeError(c, err)
		return
	}

	result := h.engine.ValidateModification(req.Modification, processed.Effective, schedule)
	utils.SendSuccess(c, result)
}

func (h *ScheduleHandler) optionsFromConfig(opts orchestrator.Options) orchestrator.Options {
	cfg := h.config
	if cfg.MaxIterations > 0 {
		opts.MaxIterations = cfg.MaxIterations
	}
	if cfg.InitialTemperature > 0 {
		opts.InitialTemperature = cfg.InitialTemperature
	}
	if cfg.CoolingRate > 0 {
		opts.CoolingRate = cfg.CoolingRate
	}
	if cfg.ParallelChains > 0 {
		opts.ParallelChains = cfg.ParallelChains
	}
	if cfg.CacheSize > 0 {
		opts.CacheSize = cfg.CacheSize
	}
	if cfg.PerChainTimeoutMs > 0 {
		opts.PerChainTimeoutMs = cfg.PerChainTimeoutMs
	}
	if cfg.RefinementPasses > 0 {
		opts.RefinementPasses = cfg.RefinementPasses
	}
	opts.AdaptiveCooling = cfg.AdaptiveCooling
	opts.EnableCache = cfg.EnableCache
	return opts
}

// mergeOptions overlays non-zero request fields on the server defaults.
func mergeOptions(base, req orchestrator.Options) orchestrator.Options {
	if req.MaxIterations > 0 {
		base.MaxIterations = req.MaxIterations
	}
	if req.InitialTemperature > 0 {
		base.InitialTemperature = req.InitialTemperature
	}
	if req.CoolingRate > 0 {
		base.CoolingRate = req.CoolingRate
	}
	if req.ParallelChains > 0 {
		base.ParallelChains = req.ParallelChains
	}
	if req.MaxWorkers > 0 {
		base.MaxWorkers = req.MaxWorkers
	}
	if req.CacheSize > 0 {
		base.CacheSize = req.CacheSize
	}
	if req.BaseSeed != 0 {
		base.BaseSeed = req.BaseSeed
	}
	if req.PerChainTimeoutMs > 0 {
		base.PerChainTimeoutMs = req.PerChainTimeoutMs
	}
	if req.DiversityThreshold > 0 {
		base.DiversityThreshold = req.DiversityThreshold
	}
	if req.RefinementPasses > 0 {
		base.RefinementPasses = req.RefinementPasses
	}
	return base
}

func (h *ScheduleHandler) sendOptimizeError(c *gin.Context, err error) {
	var invalidInput *domain.InvalidInputError
	var failed *domain.OptimizationFailedError
	var scoring *domain.ScoringError

	switch {
	case errors.As(err, &invalidInput):
		utils.SendValidationError(c, "Invalid schedule or constraints", err.Error())
	case errors.As(err, &failed):
		utils.SendError(c, http.StatusServiceUnavailable, utils.NewAppError(utils.ErrCodeInternal, "Optimization failed", err.Error()))
	case errors.As(err, &scoring):
		utils.SendInternalError(c, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.SendError(c, http.StatusRequestTimeout, utils.NewAppError(utils.ErrCodeInternal, "Request cancelled", err.Error()))
	default:
		h.logger.WithError(err).Error("Optimization error")
		utils.SendInternalError(c, "Optimization error")
	}
}
