// internal/config/config.go
package config

import "time"

type Config struct {
	Device       DeviceConfig       `yaml:"device"`
	Session      SessionConfig      `yaml:"session"`
	Presentation PresentationConfig `yaml:"presentation"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Log          LogConfig          `yaml:"log"`
}

// ---- DEVICE ----

const (
	DriverSerial    = "serial"
	DriverRawSerial = "rawserial"
	DriverTelnet    = "telnet"
)

type DeviceConfig struct {
	ID       string `yaml:"id"`
	Driver   string `yaml:"driver"`
	Port     string `yaml:"port"`    // empty => USB discovery (serial driver only)
	Address  string `yaml:"address"` // host:port (telnet driver)
	BaudRate int    `yaml:"baud_rate"`
	Encoding string `yaml:"encoding"`

	USBVendorIDs  []string `yaml:"usb_vendor_ids"`
	ReadTimeoutMs int      `yaml:"read_timeout_ms"`
}

func (d DeviceConfig) ReadTimeout() time.Duration {
	return time.Duration(d.ReadTimeoutMs) * time.Millisecond
}

// ---- SESSION ----

type SessionConfig struct {
	// nil => default; 0 disables automatic reopen
	ReconnectIntervalMs *int  `yaml:"reconnect_interval_ms"`
	FlushPartialOnEOF   *bool `yaml:"flush_partial_on_eof"`
	MaxLineBytes        int   `yaml:"max_line_bytes"`
	ResetOnDisconnect   bool  `yaml:"reset_on_disconnect"`
}

func (s SessionConfig) ReconnectInterval() time.Duration {
	if s.ReconnectIntervalMs == nil {
		return DefaultReconnectInterval
	}
	return time.Duration(*s.ReconnectIntervalMs) * time.Millisecond
}

func (s SessionConfig) FlushOnEOF() bool {
	return s.FlushPartialOnEOF == nil || *s.FlushPartialOnEOF
}

// ---- PRESENTATION ----

type PresentationConfig struct {
	IntervalMs int           `yaml:"interval_ms"`
	Console    ConsoleConfig `yaml:"console"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
	Modbus     ModbusConfig  `yaml:"modbus"`
}

func (p PresentationConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

type ConsoleConfig struct {
	Enabled *bool `yaml:"enabled"` // nil => enabled
}

func (c ConsoleConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retained    bool   `yaml:"retained"`
}

type ModbusConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	UnitID      uint8  `yaml:"unit_id"`
	BaseAddress uint16 `yaml:"base_address"` // snapshot register image
	TimeoutMs   int    `yaml:"timeout_ms"`

	// Status block (optional, opt-in)
	StatusSlot   *uint16 `yaml:"status_slot"`
	DeviceName   string  `yaml:"device_name"`
	StaleAfterMs int     `yaml:"stale_after_ms"`
}

// ---- METRICS / LOG ----

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the listener
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}
