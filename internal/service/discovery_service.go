// internal/service/discovery_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"biosignal-service/internal/config"
	"biosignal-service/internal/discovery"
	serialscan "biosignal-service/internal/discovery/serial"
	"biosignal-service/internal/discovery/usb"
	"biosignal-service/internal/utils"
)

const ScanTypeAll = "all"

// ErrNoPortFound is returned when no serial port could carry the board
var ErrNoPortFound = errors.New("no candidate serial port found")

// DiscoveryService finds serial ports and USB-serial bridges the board may be on
type DiscoveryService struct {
	scannerManager *discovery.ScannerManager
	config         *config.Config
	logger         *utils.ServiceLogger
}

// ScanRequest represents a port scan request
type ScanRequest struct {
	ScanType string `json:"scan_type" form:"scan_type"` // all, serial, usb
}

// ScanResult is the outcome of one scan
type ScanResult struct {
	ScanType  string                      `json:"scan_type"`
	Ports     []*discovery.DiscoveredPort `json:"ports"`
	Scanners  []string                    `json:"scanners"`
	Duration  time.Duration               `json:"duration"`
	ScannedAt time.Time                   `json:"scanned_at"`
}

// NewDiscoveryService creates a discovery service with the serial scanner and,
// when enabled, the USB bridge scanner registered
func NewDiscoveryService(cfg *config.Config, logger *zap.Logger) *DiscoveryService {
	ds := NewDiscoveryServiceWithManager(discovery.NewScannerManager(logger), cfg, logger)
	ds.initializeScanners()
	return ds
}

// NewDiscoveryServiceWithManager wraps an existing scanner manager
func NewDiscoveryServiceWithManager(manager *discovery.ScannerManager, cfg *config.Config, logger *zap.Logger) *DiscoveryService {
	return &DiscoveryService{
		scannerManager: manager,
		config:         cfg,
		logger:         utils.NewServiceLogger(logger, "discovery-service"),
	}
}

func (ds *DiscoveryService) initializeScanners() {
	ds.scannerManager.RegisterScanner(serialscan.NewScanner(ds.logger.Logger, ds.config.Discovery.ScanTimeout))

	if ds.config.Discovery.USBEnabled {
		usbScanner := usb.NewScanner(ds.logger.Logger, &usb.Config{
			ScanTimeout: ds.config.Discovery.ScanTimeout,
			EnableDebug: ds.config.IsDebugEnabled(),
		})
		if usbScanner.IsAvailable() {
			ds.scannerManager.RegisterScanner(usbScanner)
		}
	}

	ds.logger.Info("Discovery scanners initialized",
		zap.Strings("available_scanners", ds.scannerManager.GetAvailableScanners()),
	)
}

// ScanPorts runs one scanner type, or all of them
func (ds *DiscoveryService) ScanPorts(ctx context.Context, req *ScanRequest) (*ScanResult, error) {
	scanType := ScanTypeAll
	if req != nil && req.ScanType != "" {
		scanType = req.ScanType
	}

	ds.logger.Info("Starting port scan", zap.String("type", scanType))
	start := time.Now()

	var ports []*discovery.DiscoveredPort
	var err error

	switch scanType {
	case ScanTypeAll:
		ports, err = ds.scannerManager.ScanAll(ctx)
	case discovery.ScannerTypeSerial, discovery.ScannerTypeUSB:
		ports, err = ds.scannerManager.ScanByType(ctx, scanType)
	default:
		return nil, fmt.Errorf("unsupported scan type: %s", scanType)
	}

	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if ports == nil {
		ports = []*discovery.DiscoveredPort{}
	}

	result := &ScanResult{
		ScanType:  scanType,
		Ports:     ports,
		Scanners:  ds.scannerManager.GetAvailableScanners(),
		Duration:  time.Since(start),
		ScannedAt: start,
	}

	ds.logger.Info("Port scan completed",
		zap.Int("ports_found", len(ports)),
		zap.String("scan_type", scanType),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// SuggestPort returns the serial port most likely to carry the board
func (ds *DiscoveryService) SuggestPort(ctx context.Context) (*discovery.DiscoveredPort, error) {
	ports, err := ds.scannerManager.ScanByType(ctx, discovery.ScannerTypeSerial)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	// ScanByType orders by confidence, so the first named port wins
	for _, port := range ports {
		if port.Name != "" {
			return port, nil
		}
	}
	return nil, ErrNoPortFound
}

// GetAvailableScanners returns the registered, usable scanner types
func (ds *DiscoveryService) GetAvailableScanners() []string {
	return ds.scannerManager.GetAvailableScanners()
}
