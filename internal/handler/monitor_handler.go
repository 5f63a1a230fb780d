// internal/handler/monitor_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biosignal-service/internal/config"
	"biosignal-service/internal/protocol"
	"biosignal-service/internal/service"
	"biosignal-service/internal/utils"
)

// autoPort asks the discovery service to pick the port
const autoPort = "auto"

// MonitorHandler exposes the acquisition pipeline
type MonitorHandler struct {
	acquisition *service.AcquisitionService
	discovery   *service.DiscoveryService
	logger      *utils.ServiceLogger
}

// NewMonitorHandler creates a new monitor handler. discovery may be nil,
// in which case "auto" ports are rejected.
func NewMonitorHandler(acquisition *service.AcquisitionService, discovery *service.DiscoveryService, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{
		acquisition: acquisition,
		discovery:   discovery,
		logger:      utils.NewServiceLogger(logger, "monitor-handler"),
	}
}

// RegisterRoutes registers monitor routes
func (h *MonitorHandler) RegisterRoutes(router *gin.RouterGroup) {
	monitor := router.Group("/monitor")
	{
		monitor.GET("/status", h.GetStatus)
		monitor.GET("/metrics", h.GetMetrics)
		monitor.GET("/window", h.GetWindow)
		monitor.POST("/connect", h.Connect)
		monitor.POST("/disconnect", h.Disconnect)
	}
}

// GetStatus returns the connection, decoder and session state
// @Summary Acquisition status
// @Description Connection state, byte source statistics, decoder and estimator counters, session status
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.AcquisitionStatus}
// @Failure 503 {object} utils.APIResponse "Acquisition loop not running"
// @Router /monitor/status [get]
func (h *MonitorHandler) GetStatus(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	status, err := h.acquisition.Status(ctx)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), "Failed to get acquisition status", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Acquisition status retrieved", status)
}

// GetMetrics returns the latest sample and respiration rate
// @Summary Latest metrics
// @Description Latest decoded sample, host-computed respiration rate and session status
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.MetricsSnapshot}
// @Failure 503 {object} utils.APIResponse "Acquisition loop not running"
// @Router /monitor/metrics [get]
func (h *MonitorHandler) GetMetrics(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	snapshot, err := h.acquisition.Snapshot(ctx)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), "Failed to get metrics", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Metrics retrieved", snapshot)
}

// GetWindow returns the rolling window
// @Summary Rolling window
// @Description The most recent samples as five parallel sequences, oldest first
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=monitor.WindowSnapshot}
// @Failure 503 {object} utils.APIResponse "Acquisition loop not running"
// @Router /monitor/window [get]
func (h *MonitorHandler) GetWindow(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	window, err := h.acquisition.Window(ctx)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), "Failed to get window", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Window retrieved", window)
}

// Connect opens the byte source
// @Summary Connect to the board
// @Description Open the serial port (or the simulator). Missing fields fall back to configuration; port "auto" picks the best discovered port.
// @Tags Monitor
// @Accept json
// @Produce json
// @Param request body service.ConnectRequest false "Connection parameters"
// @Success 200 {object} utils.APIResponse{data=service.AcquisitionStatus}
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Already connected"
// @Failure 500 {object} utils.APIResponse "Open failed"
// @Router /monitor/connect [post]
func (h *MonitorHandler) Connect(c *gin.Context) {
	var req service.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if errs := validateConnectRequest(&req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if strings.EqualFold(req.Port, autoPort) {
		if h.discovery == nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Port discovery is not available", nil)
			return
		}
		port, err := h.discovery.SuggestPort(ctx)
		if err != nil {
			utils.ErrorResponse(c, statusForError(err), "No serial port found", err)
			return
		}
		req.Port = port.Name
		h.logger.Info("Selected port by discovery",
			zap.String("port", port.Name),
			zap.String("bridge", port.Bridge),
			zap.Float64("confidence", port.Confidence),
		)
	}

	status, err := h.acquisition.Connect(ctx, &req)
	if err != nil {
		h.logger.Warn("Connect failed", zap.String("port", req.Port), zap.Error(err))
		utils.ErrorResponse(c, statusForError(err), "Failed to connect", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Connected", status)
}

// Disconnect closes the byte source
// @Summary Disconnect from the board
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.AcquisitionStatus}
// @Failure 503 {object} utils.APIResponse "Not connected"
// @Router /monitor/disconnect [post]
func (h *MonitorHandler) Disconnect(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	status, err := h.acquisition.Disconnect(ctx)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), "Failed to disconnect", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Disconnected", status)
}

func validateConnectRequest(req *service.ConnectRequest) map[string]string {
	errs := make(map[string]string)

	switch strings.ToLower(strings.TrimSpace(req.SourceType)) {
	case "", config.SourceSerial, config.SourceSimulator:
	default:
		errs["source_type"] = "must be serial or simulator"
	}

	if req.BaudRate != 0 && !protocol.IsSupportedBaudRate(req.BaudRate) {
		errs["baud_rate"] = "must be one of 9600, 19200, 38400, 57600, 115200"
	}

	return errs
}
