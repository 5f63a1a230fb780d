package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biosignal-service/internal/config"
	"biosignal-service/internal/discovery"
)

type stubScanner struct {
	kind  string
	ports []*discovery.DiscoveredPort
}

func (s *stubScanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	return s.ports, nil
}
func (s *stubScanner) GetScannerType() string { return s.kind }
func (s *stubScanner) IsAvailable() bool      { return true }

func newStubDiscovery(ports ...*discovery.DiscoveredPort) *DiscoveryService {
	manager := discovery.NewScannerManager(zap.NewNop())
	manager.RegisterScanner(&stubScanner{kind: discovery.ScannerTypeSerial, ports: ports})
	return NewDiscoveryServiceWithManager(manager, &config.Config{}, zap.NewNop())
}

func TestScanPorts(t *testing.T) {
	ds := newStubDiscovery(
		&discovery.DiscoveredPort{Name: "/dev/ttyS0", Confidence: discovery.ConfidenceNativePort},
		&discovery.DiscoveredPort{Name: "/dev/ttyUSB0", Confidence: discovery.ConfidenceKnownProduct},
	)

	result, err := ds.ScanPorts(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, ScanTypeAll, result.ScanType)
	require.Len(t, result.Ports, 2)
	require.Equal(t, "/dev/ttyUSB0", result.Ports[0].Name)
	require.Equal(t, []string{discovery.ScannerTypeSerial}, result.Scanners)

	_, err = ds.ScanPorts(context.Background(), &ScanRequest{ScanType: "tcp"})
	require.Error(t, err)

	_, err = ds.ScanPorts(context.Background(), &ScanRequest{ScanType: discovery.ScannerTypeUSB})
	require.Error(t, err)
}

func TestSuggestPort(t *testing.T) {
	ds := newStubDiscovery(
		&discovery.DiscoveredPort{Name: "/dev/ttyS0", Confidence: discovery.ConfidenceNativePort},
		&discovery.DiscoveredPort{Name: "/dev/ttyACM0", Confidence: discovery.ConfidenceKnownVendor},
	)

	port, err := ds.SuggestPort(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM0", port.Name)

	_, err = newStubDiscovery().SuggestPort(context.Background())
	require.ErrorIs(t, err, ErrNoPortFound)
}
