// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biosignal-service/internal/discovery"
	"biosignal-service/internal/service"
	"biosignal-service/internal/utils"
)

// DiscoveryHandler handles port discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	discoveryGroup := router.Group("/discovery")
	{
		discoveryGroup.GET("/ports", h.ScanPorts)
		discoveryGroup.GET("/scanners", h.GetScanners)
	}
}

// ScanPorts lists serial ports and USB-serial bridges
// @Summary Scan for ports
// @Description List serial ports, tagging known USB-serial bridges, plus raw USB bridges when enabled
// @Tags Discovery
// @Produce json
// @Param scan_type query string false "Scan type" Enums(all, serial, usb) default(all)
// @Success 200 {object} utils.APIResponse{data=service.ScanResult} "Port scan completed"
// @Failure 400 {object} utils.APIResponse "Invalid scan type"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /discovery/ports [get]
func (h *DiscoveryHandler) ScanPorts(c *gin.Context) {
	scanType := c.DefaultQuery("scan_type", service.ScanTypeAll)
	switch scanType {
	case service.ScanTypeAll, discovery.ScannerTypeSerial, discovery.ScannerTypeUSB:
	default:
		utils.ValidationErrorResponse(c, map[string]string{"scan_type": "must be all, serial or usb"})
		return
	}

	result, err := h.discoveryService.ScanPorts(c.Request.Context(), &service.ScanRequest{ScanType: scanType})
	if err != nil {
		h.logger.Error("Failed to scan ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", result)
}

// GetScanners lists the usable scanner types
// @Summary Available scanners
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{scanners=[]string}}
// @Router /discovery/scanners [get]
func (h *DiscoveryHandler) GetScanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Available scanners", gin.H{
		"scanners": h.discoveryService.GetAvailableScanners(),
	})
}
