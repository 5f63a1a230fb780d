// internal/discovery/usb/database.go
package usb

import (
	"github.com/google/gousb"

	"biosignal-service/internal/discovery"
)

// DeviceDatabase indexes the known USB-serial bridges by gousb IDs
type DeviceDatabase struct {
	vendors map[gousb.ID]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name     string
	products map[gousb.ID]string
}

// NewDeviceDatabase builds the database from discovery.KnownBridges
func NewDeviceDatabase() *DeviceDatabase {
	db := &DeviceDatabase{
		vendors: make(map[gousb.ID]*VendorInfo, len(discovery.KnownBridges)),
	}

	for vid, vendor := range discovery.KnownBridges {
		info := &VendorInfo{
			Name:     vendor.Name,
			products: make(map[gousb.ID]string, len(vendor.Products)),
		}
		for pid, bridge := range vendor.Products {
			info.products[gousb.ID(pid)] = bridge
		}
		db.vendors[gousb.ID(vid)] = info
	}

	return db
}

// IsKnownVendor checks if a vendor ID belongs to a bridge manufacturer
func (db *DeviceDatabase) IsKnownVendor(vendorID gousb.ID) bool {
	_, exists := db.vendors[vendorID]
	return exists
}

// GetVendorInfo returns vendor information
func (db *DeviceDatabase) GetVendorInfo(vendorID gousb.ID) *VendorInfo {
	return db.vendors[vendorID]
}

// GetProduct returns the bridge chip name for a product ID
func (vi *VendorInfo) GetProduct(productID gousb.ID) (string, bool) {
	bridge, ok := vi.products[productID]
	return bridge, ok
}
