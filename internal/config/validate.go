// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/serial-telemetry/internal/framer"
	"github.com/tamzrod/serial-telemetry/internal/status"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	d := cfg.Device

	if d.ID == "" {
		return fmt.Errorf("device.id is required")
	}
	// device id sanity (printable ASCII only)
	for i := 0; i < len(d.ID); i++ {
		if d.ID[i] < 0x20 || d.ID[i] > 0x7E {
			return fmt.Errorf("device %q: id must contain printable ASCII characters only", d.ID)
		}
	}

	switch d.Driver {
	case DriverSerial:
	case DriverRawSerial:
		if d.Port == "" {
			return fmt.Errorf("device %q: driver %s requires device.port", d.ID, d.Driver)
		}
	case DriverTelnet:
		if d.Address == "" {
			return fmt.Errorf("device %q: driver %s requires device.address", d.ID, d.Driver)
		}
	default:
		return fmt.Errorf("device %q: unknown driver %q (allowed: %s, %s, %s)",
			d.ID, d.Driver, DriverSerial, DriverRawSerial, DriverTelnet)
	}

	if d.BaudRate <= 0 {
		return fmt.Errorf("device %q: baud_rate must be > 0", d.ID)
	}
	if _, ok := framer.Encoding(d.Encoding); !ok {
		return fmt.Errorf("device %q: unknown encoding %q", d.ID, d.Encoding)
	}
	if d.ReadTimeoutMs < 0 {
		return fmt.Errorf("device %q: read_timeout_ms must be >= 0", d.ID)
	}

	for _, vid := range d.USBVendorIDs {
		if !isHex4(vid) {
			return fmt.Errorf("device %q: usb vendor id %q must be 4 hex digits", d.ID, vid)
		}
	}
	if d.Driver == DriverSerial && d.Port == "" && len(d.USBVendorIDs) == 0 {
		return fmt.Errorf("device %q: device.port is empty and no usb_vendor_ids to discover with", d.ID)
	}

	// ------------------------------------------------------------
	// SESSION
	// ------------------------------------------------------------

	if cfg.Session.ReconnectIntervalMs != nil && *cfg.Session.ReconnectIntervalMs < 0 {
		return fmt.Errorf("session.reconnect_interval_ms must be >= 0")
	}
	if cfg.Session.MaxLineBytes <= 0 {
		return fmt.Errorf("session.max_line_bytes must be > 0")
	}

	// ------------------------------------------------------------
	// PRESENTATION
	// ------------------------------------------------------------

	p := cfg.Presentation

	if p.IntervalMs <= 0 {
		return fmt.Errorf("presentation.interval_ms must be > 0")
	}

	if p.MQTT.Enabled {
		if p.MQTT.Broker == "" {
			return fmt.Errorf("presentation.mqtt: broker is required")
		}
		if p.MQTT.Port <= 0 || p.MQTT.Port > 65535 {
			return fmt.Errorf("presentation.mqtt: port %d out of range", p.MQTT.Port)
		}
		if p.MQTT.TopicPrefix == "" || strings.ContainsAny(p.MQTT.TopicPrefix, "+#") {
			return fmt.Errorf("presentation.mqtt: topic_prefix %q must be non-empty and free of wildcards", p.MQTT.TopicPrefix)
		}
		if p.MQTT.QoS > 2 {
			return fmt.Errorf("presentation.mqtt: qos %d out of range", p.MQTT.QoS)
		}
	}

	if p.Modbus.Enabled {
		if err := validateModbus(p.Modbus); err != nil {
			return err
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if _, err := ParseLogLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q (allowed: text, json)", cfg.Log.Format)
	}

	return nil
}

// validateModbus checks the snapshot image and the optional status block
// fit the register space and do not overlap.
func validateModbus(m ModbusConfig) error {
	type span struct {
		start int
		end   int
		name  string
	}

	if m.Endpoint == "" {
		return fmt.Errorf("presentation.modbus: endpoint is required")
	}
	if m.TimeoutMs <= 0 {
		return fmt.Errorf("presentation.modbus: timeout_ms must be > 0")
	}

	// device_name sanity (ASCII only)
	for i := 0; i < len(m.DeviceName); i++ {
		if m.DeviceName[i] > 0x7F {
			return fmt.Errorf("presentation.modbus: device_name must contain ASCII characters only")
		}
	}

	spans := []span{{
		start: int(m.BaseAddress),
		end:   int(m.BaseAddress) + status.ImageRegisters - 1,
		name:  "snapshot image",
	}}

	if m.StatusSlot != nil {
		start := int(*m.StatusSlot) * status.SlotsPerDevice
		spans = append(spans, span{
			start: start,
			end:   start + status.SlotsPerDevice - 1,
			name:  "status block",
		})
	}

	for i, a := range spans {
		if a.end > 0xFFFF {
			return fmt.Errorf("presentation.modbus: %s range=%d-%d exceeds register space", a.name, a.start, a.end)
		}
		for _, b := range spans[:i] {
			// overlap check (inclusive)
			if !(a.end < b.start || a.start > b.end) {
				return fmt.Errorf(
					"presentation.modbus: %s range=%d-%d overlaps with %s range=%d-%d",
					a.name, a.start, a.end, b.name, b.start, b.end,
				)
			}
		}
	}

	return nil
}

func isHex4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
