// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"
)

func u16(v uint16) *uint16 { return &v }

// helper to build a valid config quickly
func valid() *Config {
	cfg := Default()
	cfg.Device.Port = "/dev/ttyACM0"
	return cfg
}

// ---- tests ----

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(valid()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate_DeviceIDNonPrintable(t *testing.T) {
	cfg := valid()
	cfg.Device.ID = "bad\tid"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected printable ASCII error")
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := valid()
	cfg.Device.Driver = "usb"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestValidate_RawSerialRequiresPort(t *testing.T) {
	cfg := valid()
	cfg.Device.Driver = DriverRawSerial
	cfg.Device.Port = ""

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected port error")
	}
}

func TestValidate_TelnetRequiresAddress(t *testing.T) {
	cfg := valid()
	cfg.Device.Driver = DriverTelnet

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected address error")
	}

	cfg.Device.Address = "127.0.0.1:2323"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DiscoveryNeedsVendorIDs(t *testing.T) {
	cfg := Default()
	cfg.Device.USBVendorIDs = []string{}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected discovery error")
	}
}

func TestValidate_VendorIDFormat(t *testing.T) {
	cfg := valid()
	cfg.Device.USBVendorIDs = []string{"1a86", "2E8A"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Device.USBVendorIDs = []string{"1A8"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected vendor id error")
	}

	cfg.Device.USBVendorIDs = []string{"ZZZZ"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected vendor id error")
	}
}

func TestValidate_Encoding(t *testing.T) {
	cfg := valid()
	cfg.Device.Encoding = "Latin1"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Device.Encoding = "ebcdic"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected encoding error")
	}
}

func TestValidate_BaudAndLimits(t *testing.T) {
	cfg := valid()
	cfg.Device.BaudRate = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected baud error")
	}

	cfg = valid()
	cfg.Session.MaxLineBytes = -1
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected max_line_bytes error")
	}

	cfg = valid()
	neg := -5
	cfg.Session.ReconnectIntervalMs = &neg
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected reconnect error")
	}

	cfg = valid()
	cfg.Presentation.IntervalMs = -1
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected interval error")
	}
}

func TestValidate_MQTT(t *testing.T) {
	cfg := valid()
	cfg.Presentation.MQTT.Enabled = true
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Presentation.MQTT.TopicPrefix = "devices/#"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected wildcard error")
	}

	cfg = valid()
	cfg.Presentation.MQTT.Enabled = true
	cfg.Presentation.MQTT.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected port error")
	}

	cfg = valid()
	cfg.Presentation.MQTT.Enabled = true
	cfg.Presentation.MQTT.QoS = 3
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected qos error")
	}
}

func TestValidate_ModbusRequiresEndpoint(t *testing.T) {
	cfg := valid()
	cfg.Presentation.Modbus.Enabled = true

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected endpoint error")
	}
}

func TestValidate_ModbusDisabledIgnored(t *testing.T) {
	cfg := valid()
	cfg.Presentation.Modbus.StatusSlot = u16(0)

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ModbusNoOverlap(t *testing.T) {
	cfg := valid()
	m := &cfg.Presentation.Modbus
	m.Enabled = true
	m.Endpoint = "127.0.0.1:502"
	m.BaseAddress = 20
	m.StatusSlot = u16(0) // 0..19

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ModbusOverlapFails(t *testing.T) {
	cfg := valid()
	m := &cfg.Presentation.Modbus
	m.Enabled = true
	m.Endpoint = "127.0.0.1:502"
	m.BaseAddress = 15    // 15..22
	m.StatusSlot = u16(1) // 20..39

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "overlaps") {
		t.Fatalf("expected overlap error, got %v", err)
	}
}

func TestValidate_ModbusOutOfRange(t *testing.T) {
	cfg := valid()
	m := &cfg.Presentation.Modbus
	m.Enabled = true
	m.Endpoint = "127.0.0.1:502"
	m.BaseAddress = 0xFFFC

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected range error")
	}

	m.BaseAddress = 0
	m.StatusSlot = u16(3300) // 66000..
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestValidate_ModbusDeviceNameASCII(t *testing.T) {
	cfg := valid()
	m := &cfg.Presentation.Modbus
	m.Enabled = true
	m.Endpoint = "127.0.0.1:502"
	m.BaseAddress = 100
	m.StatusSlot = u16(0)
	m.DeviceName = "gewächshaus"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected ASCII error")
	}
}

func TestValidate_Log(t *testing.T) {
	cfg := valid()
	cfg.Log.Level = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected level error")
	}

	cfg = valid()
	cfg.Log.Format = "xml"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected format error")
	}
}

// ---- normalize ----

func TestNormalize_DeviceNameDefaultsAndTruncates(t *testing.T) {
	cfg := valid()
	cfg.Device.ID = "greenhouse-north-bed-7"
	cfg.Presentation.Modbus.StatusSlot = u16(2)

	Normalize(cfg)

	if got := cfg.Presentation.Modbus.DeviceName; got != "greenhouse-north" {
		t.Fatalf("device_name=%q", got)
	}
}

func TestNormalize_NoStatusSlotLeavesName(t *testing.T) {
	cfg := valid()
	Normalize(cfg)

	if cfg.Presentation.Modbus.DeviceName != "" {
		t.Fatalf("device_name must stay empty without a status slot")
	}
}

func TestNormalize_VendorIDsAndEncoding(t *testing.T) {
	cfg := valid()
	cfg.Device.USBVendorIDs = []string{" 1a86", "2e8a "}
	cfg.Device.Encoding = "UTF-8"

	Normalize(cfg)

	if cfg.Device.USBVendorIDs[0] != "1A86" || cfg.Device.USBVendorIDs[1] != "2E8A" {
		t.Fatalf("vendor ids=%v", cfg.Device.USBVendorIDs)
	}
	if cfg.Device.Encoding != "utf-8" {
		t.Fatalf("encoding=%q", cfg.Device.Encoding)
	}
}
