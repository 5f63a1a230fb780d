// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

const (
	ScannerTypeSerial = "serial"
	ScannerTypeUSB    = "usb"
)

// PortScanner finds candidate links to the acquisition board
type PortScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredPort, error)
	GetScannerType() string
	IsAvailable() bool
}

// DiscoveredPort is a serial port or USB-serial bridge that may carry the board
type DiscoveredPort struct {
	ScannerType    string                 `json:"scanner_type"`
	Name           string                 `json:"name,omitempty"`
	Description    string                 `json:"description,omitempty"`
	IsUSB          bool                   `json:"is_usb"`
	VendorID       string                 `json:"vendor_id,omitempty"`
	ProductID      string                 `json:"product_id,omitempty"`
	SerialNumber   string                 `json:"serial_number,omitempty"`
	Bridge         string                 `json:"bridge,omitempty"`
	Manufacturer   string                 `json:"manufacturer,omitempty"`
	Location       string                 `json:"location,omitempty"`
	Confidence     float64                `json:"confidence"` // 0.0-1.0
	ConnectionInfo map[string]interface{} `json:"connection_info,omitempty"`
}

// ScannerManager runs the registered scanners
type ScannerManager struct {
	mutex    sync.RWMutex
	scanners map[string]PortScanner
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]PortScanner),
		logger:   logger.With(zap.String("component", "discovery")),
	}
}

// RegisterScanner registers a port scanner
func (sm *ScannerManager) RegisterScanner(scanner PortScanner) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	scannerType := scanner.GetScannerType()
	sm.scanners[scannerType] = scanner
	sm.logger.Info("Scanner registered", zap.String("type", scannerType))
}

// ScanAll runs the available scanners concurrently. A failing scanner is
// logged and skipped; results are ordered by confidence, then name.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredPort, error) {
	sm.mutex.RLock()
	scanners := make([]PortScanner, 0, len(sm.scanners))
	for _, scanner := range sm.scanners {
		if scanner.IsAvailable() {
			scanners = append(scanners, scanner)
		} else {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scanner.GetScannerType()))
		}
	}
	sm.mutex.RUnlock()

	results := make([][]*DiscoveredPort, len(scanners))
	var wg sync.WaitGroup
	for i, scanner := range scanners {
		wg.Add(1)
		go func(i int, scanner PortScanner) {
			defer wg.Done()
			scannerType := scanner.GetScannerType()

			ports, err := scanner.Scan(ctx)
			if err != nil {
				sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
				return
			}
			results[i] = ports
			sm.logger.Info("Scanner completed",
				zap.String("type", scannerType),
				zap.Int("ports_found", len(ports)),
			)
		}(i, scanner)
	}
	wg.Wait()

	allPorts := []*DiscoveredPort{}
	for _, ports := range results {
		allPorts = append(allPorts, ports...)
	}
	SortPorts(allPorts)
	return allPorts, ctx.Err()
}

// ScanByType runs one scanner
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredPort, error) {
	sm.mutex.RLock()
	scanner, exists := sm.scanners[scannerType]
	sm.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}
	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}

	ports, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	SortPorts(ports)
	return ports, nil
}

// GetAvailableScanners returns the available scanner types
func (sm *ScannerManager) GetAvailableScanners() []string {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	available := []string{}
	for scannerType, scanner := range sm.scanners {
		if scanner.IsAvailable() {
			available = append(available, scannerType)
		}
	}
	sort.Strings(available)
	return available
}

// SortPorts orders ports by confidence, highest first, then by name
func SortPorts(ports []*DiscoveredPort) {
	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].Confidence != ports[j].Confidence {
			return ports[i].Confidence > ports[j].Confidence
		}
		return ports[i].Name < ports[j].Name
	})
}
