// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biosignal-service/internal/config"
	"biosignal-service/internal/database"
	"biosignal-service/internal/service"
	"biosignal-service/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler serves the probe endpoints outside /api/v1
type HealthHandler struct {
	db          *database.DB
	acquisition *service.AcquisitionService
	config      *config.Config
	logger      *utils.ServiceLogger
	startedAt   time.Time
}

// NewHealthHandler creates a new health handler. db is nil when persistence
// is disabled.
func NewHealthHandler(db *database.DB, acquisition *service.AcquisitionService, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:          db,
		acquisition: acquisition,
		config:      config,
		logger:      utils.NewServiceLogger(logger, "health-handler"),
		startedAt:   time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/health/db", h.DatabaseHealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports the acquisition loop and, when persistence is on,
// the database
// @Summary Health check
// @Description Overall service health: acquisition loop, byte source and database when enabled
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]CheckResult{
		"acquisition": h.checkAcquisition(ctx),
	}
	if h.db != nil {
		checks["database"] = h.checkDatabase()
	}

	overall, statusCode := "healthy", http.StatusOK
	for _, check := range checks {
		if check.Status != "healthy" {
			overall, statusCode = "unhealthy", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(statusCode, &HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Checks:    checks,
	})
}

// checkAcquisition only fails when the loop is gone. A disconnected board
// is a normal state.
func (h *HealthHandler) checkAcquisition(ctx context.Context) CheckResult {
	status, err := h.acquisition.Status(ctx)
	if err != nil {
		return CheckResult{Status: "unhealthy", Message: err.Error()}
	}
	return CheckResult{
		Status:  "healthy",
		Message: "Acquisition loop running",
		Data: map[string]interface{}{
			"source_status": status.Status,
			"source":        status.Source,
			"sample_count":  status.Pipeline.SampleCount,
			"session":       status.Session.Active,
		},
	}
}

func (h *HealthHandler) checkDatabase() CheckResult {
	if err := h.db.HealthCheck(); err != nil {
		return CheckResult{Status: "unhealthy", Message: err.Error()}
	}
	stats := h.db.GetStats()
	return CheckResult{
		Status:  "healthy",
		Message: "Database connection OK",
		Data: map[string]interface{}{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
	}
}

// DatabaseHealthCheck checks database connectivity
// @Summary Database health check
// @Tags Health
// @Produce json
// @Success 200 {object} utils.APIResponse "Database is healthy"
// @Failure 503 {object} utils.APIResponse "Database is unhealthy or disabled"
// @Router /health/db [get]
func (h *HealthHandler) DatabaseHealthCheck(c *gin.Context) {
	if h.db == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Database persistence is disabled", nil)
		return
	}

	startTime := time.Now()
	if err := h.db.HealthCheck(); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Database unhealthy", err)
		return
	}

	stats := h.db.GetStats()
	utils.SuccessResponse(c, http.StatusOK, "Database is healthy", gin.H{
		"status":           "healthy",
		"response_time_ms": time.Since(startTime).Milliseconds(),
		"stats": gin.H{
			"open_connections":    stats.OpenConnections,
			"in_use":              stats.InUse,
			"idle":                stats.Idle,
			"wait_count":          stats.WaitCount,
			"wait_duration":       stats.WaitDuration,
			"max_lifetime_closed": stats.MaxLifetimeClosed,
		},
	})
}

// ReadinessCheck is ready once the acquisition loop answers and the
// database, if any, is reachable
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if _, err := h.acquisition.Status(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "acquisition loop not running",
		})
		return
	}

	if h.db != nil {
		if err := h.db.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "database not available",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck always answers while the process serves HTTP
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
