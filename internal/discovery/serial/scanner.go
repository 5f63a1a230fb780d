// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"biosignal-service/internal/discovery"
)

// listPorts is swapped in tests
var listPorts = enumerator.GetDetailedPortsList

// Scanner lists the serial ports known to the operating system
type Scanner struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger, timeout time.Duration) *Scanner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Scanner{
		logger:  logger.With(zap.String("scanner", "serial")),
		timeout: timeout,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return discovery.ScannerTypeSerial
}

// IsAvailable reports whether port enumeration is supported
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan enumerates serial ports and tags the ones behind a known bridge
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	startTime := time.Now()

	type listResult struct {
		ports []*enumerator.PortDetails
		err   error
	}

	// Enumeration cannot be cancelled, so it runs aside and is abandoned on timeout
	done := make(chan listResult, 1)
	go func() {
		ports, err := listPorts()
		done <- listResult{ports: ports, err: err}
	}()

	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var details []*enumerator.PortDetails
	select {
	case result := <-done:
		if result.err != nil {
			return nil, fmt.Errorf("failed to get serial ports: %w", result.err)
		}
		details = result.ports
	case <-scanCtx.Done():
		return nil, fmt.Errorf("serial port enumeration: %w", scanCtx.Err())
	}

	discovered := make([]*discovery.DiscoveredPort, 0, len(details))
	for _, detail := range details {
		discovered = append(discovered, s.describePort(detail))
	}

	s.logger.Info("Serial scan completed",
		zap.Int("ports_found", len(discovered)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return discovered, nil
}

func (s *Scanner) describePort(detail *enumerator.PortDetails) *discovery.DiscoveredPort {
	port := &discovery.DiscoveredPort{
		ScannerType:  discovery.ScannerTypeSerial,
		Name:         detail.Name,
		Description:  detail.Product,
		IsUSB:        detail.IsUSB,
		SerialNumber: detail.SerialNumber,
		Confidence:   discovery.ConfidenceNativePort,
	}
	if !detail.IsUSB {
		return port
	}

	port.Confidence = discovery.ConfidenceUnknownUSB

	vid, vidErr := discovery.ParseUSBID(detail.VID)
	pid, pidErr := discovery.ParseUSBID(detail.PID)
	if vidErr != nil || pidErr != nil {
		s.logger.Debug("Unparseable USB ids",
			zap.String("port", detail.Name),
			zap.String("vid", detail.VID),
			zap.String("pid", detail.PID),
		)
		return port
	}

	port.VendorID = discovery.FormatUSBID(vid)
	port.ProductID = discovery.FormatUSBID(pid)

	if id, ok := discovery.IdentifyBridge(vid, pid); ok {
		port.Manufacturer = id.Vendor
		port.Bridge = id.Bridge
		port.Confidence = id.Confidence
	}
	return port
}
