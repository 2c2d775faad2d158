// internal/config/load.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDriver            = DriverSerial
	DefaultBaudRate          = 115200
	DefaultEncoding          = "utf-8"
	DefaultMaxLineBytes      = 4096
	DefaultIntervalMs        = 100
	DefaultReconnectInterval = 2 * time.Second
	DefaultMQTTPort          = 1883
	DefaultModbusTimeoutMs   = 1000
	DefaultStaleAfterMs      = 5000
)

// DefaultVendorIDs are the USB bridges and boards the device ships with
// (STM32, CH340, CP210x, Arduino, RP2040).
var DefaultVendorIDs = []string{"0483", "1A86", "10C4", "2341", "2E8A"}

// Default returns a config with every default applied, for running without a file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads a YAML file and applies defaults. Unknown keys are rejected.
// It does not validate; call Validate then Normalize.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Device.ID == "" {
		c.Device.ID = "telemetry"
	}
	if c.Device.Driver == "" {
		c.Device.Driver = DefaultDriver
	}
	if c.Device.BaudRate == 0 {
		c.Device.BaudRate = DefaultBaudRate
	}
	if c.Device.Encoding == "" {
		c.Device.Encoding = DefaultEncoding
	}
	if c.Device.USBVendorIDs == nil {
		c.Device.USBVendorIDs = append([]string(nil), DefaultVendorIDs...)
	}

	if c.Session.MaxLineBytes == 0 {
		c.Session.MaxLineBytes = DefaultMaxLineBytes
	}

	if c.Presentation.IntervalMs == 0 {
		c.Presentation.IntervalMs = DefaultIntervalMs
	}
	if c.Presentation.MQTT.Broker == "" {
		c.Presentation.MQTT.Broker = "localhost"
	}
	if c.Presentation.MQTT.Port == 0 {
		c.Presentation.MQTT.Port = DefaultMQTTPort
	}
	if c.Presentation.MQTT.ClientID == "" {
		c.Presentation.MQTT.ClientID = "telemetryd"
	}
	if c.Presentation.MQTT.TopicPrefix == "" {
		c.Presentation.MQTT.TopicPrefix = "devices"
	}
	if c.Presentation.Modbus.TimeoutMs == 0 {
		c.Presentation.Modbus.TimeoutMs = DefaultModbusTimeoutMs
	}
	if c.Presentation.Modbus.StaleAfterMs == 0 {
		c.Presentation.Modbus.StaleAfterMs = DefaultStaleAfterMs
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
