// internal/config/env.go
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides file values with environment variables.
// Empty variables are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("TELEMETRY_DEVICE_ID"); ok {
		cfg.Device.ID = v
	}
	if v, ok := get("TELEMETRY_DRIVER"); ok {
		cfg.Device.Driver = strings.ToLower(v)
	}
	if v, ok := get("TELEMETRY_PORT"); ok {
		cfg.Device.Port = v
	}
	if v, ok := get("TELEMETRY_ADDRESS"); ok {
		cfg.Device.Address = v
	}
	if v, ok := get("TELEMETRY_BAUD_RATE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TELEMETRY_BAUD_RATE %q: %w", v, err)
		}
		cfg.Device.BaudRate = n
	}

	if v, ok := get("MQTT_BROKER"); ok {
		cfg.Presentation.MQTT.Broker = v
	}
	if v, ok := get("MQTT_PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MQTT_PORT %q: %w", v, err)
		}
		cfg.Presentation.MQTT.Port = n
	}

	if v, ok := get("METRICS_ADDR"); ok {
		cfg.Metrics.Addr = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		cfg.Log.Format = strings.ToLower(v)
	}
	return nil
}

// ParseLogLevel maps a config level name onto slog.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (allowed: debug, info, warn, error)", s)
	}
}
