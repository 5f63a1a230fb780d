// internal/discovery/bridges.go
package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// Confidence levels for bridge identification
const (
	ConfidenceKnownProduct = 0.9
	ConfidenceKnownVendor  = 0.5
	ConfidenceUnknownUSB   = 0.2
	ConfidenceNativePort   = 0.1
)

// BridgeVendor is a manufacturer of USB-serial converters
type BridgeVendor struct {
	Name     string
	Products map[uint16]string
}

// KnownBridges lists USB-serial bridges commonly found on ADS1292R boards and
// their host adapters, keyed by USB vendor ID.
var KnownBridges = map[uint16]BridgeVendor{
	0x1A86: {Name: "QinHeng Electronics", Products: map[uint16]string{
		0x7523: "CH340",
		0x7522: "CH340K",
		0x5523: "CH341",
		0x55D4: "CH9102",
	}},
	0x10C4: {Name: "Silicon Labs", Products: map[uint16]string{
		0xEA60: "CP210x",
		0xEA70: "CP2105",
	}},
	0x0403: {Name: "FTDI", Products: map[uint16]string{
		0x6001: "FT232R",
		0x6010: "FT2232",
		0x6014: "FT232H",
		0x6015: "FT-X",
	}},
	0x067B: {Name: "Prolific", Products: map[uint16]string{
		0x2303: "PL2303",
	}},
	0x2341: {Name: "Arduino", Products: map[uint16]string{
		0x0043: "Uno",
		0x0042: "Mega 2560",
		0x8036: "Leonardo",
	}},
	0x0483: {Name: "STMicroelectronics", Products: map[uint16]string{
		0x5740: "Virtual COM Port",
	}},
}

// Identification is the result of matching a vendor/product pair
type Identification struct {
	Vendor     string
	Bridge     string
	Confidence float64
}

// IdentifyBridge matches a vendor/product pair against KnownBridges
func IdentifyBridge(vendorID, productID uint16) (Identification, bool) {
	vendor, ok := KnownBridges[vendorID]
	if !ok {
		return Identification{Confidence: ConfidenceUnknownUSB}, false
	}

	if bridge, ok := vendor.Products[productID]; ok {
		return Identification{
			Vendor:     vendor.Name,
			Bridge:     bridge,
			Confidence: ConfidenceKnownProduct,
		}, true
	}

	return Identification{
		Vendor:     vendor.Name,
		Bridge:     fmt.Sprintf("Unknown-%04X", productID),
		Confidence: ConfidenceKnownVendor,
	}, true
}

// ParseUSBID parses a hexadecimal USB ID such as "1a86" or "0x1A86"
func ParseUSBID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB id %q: %w", s, err)
	}
	return uint16(id), nil
}

// FormatUSBID renders an ID the way the API reports it
func FormatUSBID(id uint16) string {
	return fmt.Sprintf("0x%04X", id)
}
