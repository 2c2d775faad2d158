// internal/config/normalize.go
package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// vendor ids compare case-insensitively; store them canonical
	for i, vid := range cfg.Device.USBVendorIDs {
		cfg.Device.USBVendorIDs[i] = strings.ToUpper(strings.TrimSpace(vid))
	}
	cfg.Device.Encoding = strings.ToLower(cfg.Device.Encoding)

	// ------------------------------------------------------------
	// STATUS BLOCK NORMALIZATION (OPT-IN)
	// ------------------------------------------------------------

	m := &cfg.Presentation.Modbus
	if m.StatusSlot == nil {
		return
	}

	// Normalize device_name:
	// - defaults to device.id
	// - ASCII already validated
	// - Truncate to max 16 characters
	if m.DeviceName == "" {
		m.DeviceName = cfg.Device.ID
	}
	if len(m.DeviceName) > 16 {
		m.DeviceName = m.DeviceName[:16]
	}

	// Slot math, packing, and runtime writes belong to later stages.
}
