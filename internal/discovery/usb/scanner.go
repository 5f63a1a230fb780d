// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"biosignal-service/internal/discovery"
)

type deviceResult struct {
	port *discovery.DiscoveredPort
	err  error
}

// Scanner finds USB-serial bridges on the USB bus
type Scanner struct {
	logger       *zap.Logger
	knownDevices *DeviceDatabase
	config       *Config
}

// Config for USB scanner
type Config struct {
	ScanTimeout   time.Duration `json:"scan_timeout"`
	EnableDebug   bool          `json:"enable_debug"`
	MaxConcurrent int           `json:"max_concurrent"`
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{}
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = 10 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	return &Scanner{
		logger:       logger.With(zap.String("scanner", "usb")),
		knownDevices: NewDeviceDatabase(),
		config:       config,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return discovery.ScannerTypeUSB
}

// IsAvailable checks if USB scanning is supported on this platform
func (s *Scanner) IsAvailable() bool {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		return true
	default:
		s.logger.Warn("USB scanning support unknown for OS", zap.String("os", runtime.GOOS))
		return false
	}
}

// Scan enumerates USB devices from known bridge vendors
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	startTime := time.Now()
	s.logger.Info("Starting USB scan")

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	if s.config.EnableDebug {
		usbCtx.Debug(3)
	}

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return s.knownDevices.IsKnownVendor(desc.Vendor)
	})
	defer s.closeAllDevices(devices)

	// OpenDevices reports per-device open failures but still returns the rest
	if err != nil {
		if len(devices) == 0 {
			return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
		}
		s.logger.Warn("Some USB devices could not be opened", zap.Error(err))
	}

	discovered, err := s.processDevicesConcurrently(scanCtx, devices)
	if err != nil {
		return discovered, fmt.Errorf("USB scan interrupted: %w", err)
	}

	s.logger.Info("USB scan completed",
		zap.Int("devices_found", len(discovered)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return discovered, nil
}

// processDevicesConcurrently reads string descriptors with a bounded worker pool
func (s *Scanner) processDevicesConcurrently(ctx context.Context, devices []*gousb.Device) ([]*discovery.DiscoveredPort, error) {
	if len(devices) == 0 {
		return []*discovery.DiscoveredPort{}, nil
	}

	deviceChan := make(chan *gousb.Device, len(devices))
	resultChan := make(chan deviceResult, len(devices))

	// Devices are closed by the caller, so every worker must be done first
	var wg sync.WaitGroup
	defer wg.Wait()

	for i := 0; i < s.config.MaxConcurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.deviceWorker(ctx, deviceChan, resultChan)
		}()
	}

	for _, device := range devices {
		deviceChan <- device
	}
	close(deviceChan)

	discovered := []*discovery.DiscoveredPort{}
	for range devices {
		select {
		case result := <-resultChan:
			if result.err != nil {
				s.logger.Warn("Device processing failed", zap.Error(result.err))
			} else if result.port != nil {
				discovered = append(discovered, result.port)
			}
		case <-ctx.Done():
			return discovered, ctx.Err()
		}
	}

	return discovered, nil
}

// deviceWorker processes devices in worker pool
func (s *Scanner) deviceWorker(ctx context.Context, deviceChan <-chan *gousb.Device, resultChan chan<- deviceResult) {
	for device := range deviceChan {
		if ctx.Err() != nil {
			resultChan <- deviceResult{err: ctx.Err()}
			continue
		}
		port, err := s.processDevice(device)
		resultChan <- deviceResult{port: port, err: err}
	}
}

// processDevice turns one opened USB device into a DiscoveredPort
func (s *Scanner) processDevice(device *gousb.Device) (*discovery.DiscoveredPort, error) {
	desc := device.Desc
	if desc == nil {
		return nil, fmt.Errorf("device descriptor is nil")
	}

	port := s.describe(desc)
	port.Manufacturer = s.stringDescriptor(device.Manufacturer, port.Manufacturer)
	port.Description = s.stringDescriptor(device.Product, "")
	port.SerialNumber = s.stringDescriptor(device.SerialNumber, "")

	return port, nil
}

// describe builds the descriptor-only part of a DiscoveredPort
func (s *Scanner) describe(desc *gousb.DeviceDesc) *discovery.DiscoveredPort {
	port := &discovery.DiscoveredPort{
		ScannerType: discovery.ScannerTypeUSB,
		IsUSB:       true,
		VendorID:    discovery.FormatUSBID(uint16(desc.Vendor)),
		ProductID:   discovery.FormatUSBID(uint16(desc.Product)),
		Location:    fmt.Sprintf("USB-Bus%d-Addr%d", desc.Bus, desc.Address),
		Confidence:  discovery.ConfidenceUnknownUSB,
		ConnectionInfo: map[string]interface{}{
			"bus":            desc.Bus,
			"address":        desc.Address,
			"port":           desc.Port,
			"speed":          desc.Speed.String(),
			"device_version": desc.Device.String(),
			"usb_version":    desc.Spec.String(),
			"class":          desc.Class.String(),
		},
	}

	vendor := s.knownDevices.GetVendorInfo(desc.Vendor)
	if vendor == nil {
		return port
	}

	port.Manufacturer = vendor.Name
	if bridge, ok := vendor.GetProduct(desc.Product); ok {
		port.Bridge = bridge
		port.Confidence = discovery.ConfidenceKnownProduct
	} else {
		port.Bridge = fmt.Sprintf("Unknown-%04X", uint16(desc.Product))
		port.Confidence = discovery.ConfidenceKnownVendor
	}
	return port
}

// stringDescriptor reads a string descriptor, falling back on error
func (s *Scanner) stringDescriptor(read func() (string, error), fallback string) string {
	value, err := read()
	if err != nil {
		s.logger.Debug("Failed to read string descriptor", zap.Error(err))
		return fallback
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

// closeAllDevices safely closes all opened USB devices
func (s *Scanner) closeAllDevices(devices []*gousb.Device) {
	for i, device := range devices {
		if device == nil {
			continue
		}
		if err := device.Close(); err != nil {
			s.logger.Warn("Failed to close USB device",
				zap.Int("device_index", i),
				zap.Error(err),
			)
		}
	}
}
