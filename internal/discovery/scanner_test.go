package discovery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biosignal-service/internal/discovery"
)

type fakeScanner struct {
	kind      string
	available bool
	ports     []*discovery.DiscoveredPort
	err       error
}

func (f *fakeScanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPort, error) {
	return f.ports, f.err
}
func (f *fakeScanner) GetScannerType() string { return f.kind }
func (f *fakeScanner) IsAvailable() bool      { return f.available }

func TestScanAllMergesAndOrders(t *testing.T) {
	m := discovery.NewScannerManager(zap.NewNop())
	m.RegisterScanner(&fakeScanner{kind: "serial", available: true, ports: []*discovery.DiscoveredPort{
		{Name: "/dev/ttyS0", Confidence: discovery.ConfidenceNativePort},
		{Name: "/dev/ttyUSB0", Confidence: discovery.ConfidenceKnownProduct},
	}})
	m.RegisterScanner(&fakeScanner{kind: "usb", available: true, ports: []*discovery.DiscoveredPort{
		{Location: "USB-Bus1-Addr4", Confidence: discovery.ConfidenceKnownVendor},
	}})
	m.RegisterScanner(&fakeScanner{kind: "broken", available: true, err: errors.New("no access")})
	m.RegisterScanner(&fakeScanner{kind: "off", available: false, ports: []*discovery.DiscoveredPort{{Name: "x"}}})

	ports, err := m.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, ports, 3)
	require.Equal(t, "/dev/ttyUSB0", ports[0].Name)
	require.Equal(t, "USB-Bus1-Addr4", ports[1].Location)
	require.Equal(t, "/dev/ttyS0", ports[2].Name)

	require.Equal(t, []string{"broken", "serial", "usb"}, m.GetAvailableScanners())
}

func TestScanByType(t *testing.T) {
	m := discovery.NewScannerManager(zap.NewNop())
	m.RegisterScanner(&fakeScanner{kind: "serial", available: true, ports: []*discovery.DiscoveredPort{{Name: "COM3"}}})
	m.RegisterScanner(&fakeScanner{kind: "usb", available: false})

	ports, err := m.ScanByType(context.Background(), "serial")
	require.NoError(t, err)
	require.Len(t, ports, 1)

	_, err = m.ScanByType(context.Background(), "usb")
	require.Error(t, err)

	_, err = m.ScanByType(context.Background(), "bluetooth")
	require.Error(t, err)
}

func TestIdentifyBridge(t *testing.T) {
	id, ok := discovery.IdentifyBridge(0x1A86, 0x7523)
	require.True(t, ok)
	require.Equal(t, "CH340", id.Bridge)
	require.Equal(t, discovery.ConfidenceKnownProduct, id.Confidence)

	id, ok = discovery.IdentifyBridge(0x0403, 0x1234)
	require.True(t, ok)
	require.Equal(t, "FTDI", id.Vendor)
	require.Equal(t, "Unknown-1234", id.Bridge)
	require.Equal(t, discovery.ConfidenceKnownVendor, id.Confidence)

	_, ok = discovery.IdentifyBridge(0xDEAD, 0xBEEF)
	require.False(t, ok)
}

func TestParseUSBID(t *testing.T) {
	for _, in := range []string{"1a86", "1A86", "0x1A86", " 1a86 "} {
		id, err := discovery.ParseUSBID(in)
		require.NoError(t, err, in)
		require.Equal(t, uint16(0x1A86), id)
	}

	_, err := discovery.ParseUSBID("zzzz")
	require.Error(t, err)
	_, err = discovery.ParseUSBID("12345")
	require.Error(t, err)

	require.Equal(t, "0x10C4", discovery.FormatUSBID(0x10C4))
}
