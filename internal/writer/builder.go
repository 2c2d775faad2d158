// internal/writer/builder.go
package writer

import (
	"context"
	"io"
	"log/slog"
	"time"

	cfg "github.com/tamzrod/serial-telemetry/internal/config"
	wmodbus "github.com/tamzrod/serial-telemetry/internal/writer/modbus"
	wmqtt "github.com/tamzrod/serial-telemetry/internal/writer/mqtt"
)

// BuildPlan converts the presentation config into a Modbus write Plan.
// Assumes config has already passed Validate and Normalize.
func BuildPlan(c *cfg.Config) Plan {
	plan := Plan{DeviceID: c.Device.ID}

	m := c.Presentation.Modbus
	if !m.Enabled {
		return plan
	}

	plan.Image = &ImagePlan{
		Endpoint:    m.Endpoint,
		UnitID:      m.UnitID,
		BaseAddress: m.BaseAddress,
	}

	if m.StatusSlot != nil {
		plan.Status = &StatusPlan{
			Endpoint:   m.Endpoint,
			UnitID:     m.UnitID,
			BaseSlot:   *m.StatusSlot,
			DeviceName: m.DeviceName,
			StaleAfter: time.Duration(m.StaleAfterMs) * time.Millisecond,
		}
	}

	return plan
}

// BuildEndpointClients creates one TCP client per unique endpoint.
func BuildEndpointClients(plan Plan, timeout time.Duration) (map[string]endpointClient, func() error, error) {
	unique := map[string]struct{}{}
	if plan.Image != nil {
		unique[plan.Image.Endpoint] = struct{}{}
	}
	if plan.Status != nil {
		unique[plan.Status.Endpoint] = struct{}{}
	}

	clients := make(map[string]endpointClient)
	var closers []func() error

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	for endpoint := range unique {
		c, err := wmodbus.NewEndpointClient(wmodbus.Config{
			Endpoint: endpoint,
			Timeout:  timeout,
		})
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		clients[endpoint] = c
		closers = append(closers, c.Close)
	}

	return clients, closeAll, nil
}

// Build assembles every enabled writer. The returned closer releases
// network clients; call it after the dispatcher has stopped.
func Build(ctx context.Context, c *cfg.Config, console io.Writer, log *slog.Logger) ([]Writer, func() error, error) {
	if log == nil {
		log = slog.Default()
	}

	var (
		writers []Writer
		closers []func() error
	)

	closeAll := func() error {
		var last error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				last = err
			}
		}
		return last
	}

	if c.Presentation.Console.IsEnabled() && console != nil {
		writers = append(writers, NewConsoleWriter(console))
	}

	// ---- modbus ----
	plan := BuildPlan(c)
	if plan.Image != nil || plan.Status != nil {
		timeout := time.Duration(c.Presentation.Modbus.TimeoutMs) * time.Millisecond
		clients, closeClients, err := BuildEndpointClients(plan, timeout)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, closeClients)

		if w, ok := NewImageWriter(plan, clients); ok {
			writers = append(writers, w)
		}
		if sw, ok := NewDeviceStatusWriter(plan, clients); ok {
			writers = append(writers, sw)
		}
	}

	// ---- mqtt ----
	if m := c.Presentation.MQTT; m.Enabled {
		pub := wmqtt.New(wmqtt.Config{
			Broker:      m.Broker,
			Port:        m.Port,
			ClientID:    m.ClientID,
			TopicPrefix: m.TopicPrefix,
			DeviceID:    c.Device.ID,
			QoS:         m.QoS,
			Retained:    m.Retained,
		}, log)

		// paho keeps retrying in the background; frames fail with
		// ErrNotConnected until the broker answers
		go func() {
			if err := pub.Connect(ctx); err != nil && ctx.Err() == nil {
				log.Warn("mqtt connect failed", "err", err)
			}
		}()

		writers = append(writers, pub)
		closers = append(closers, pub.Close)
	}

	return writers, closeAll, nil
}
