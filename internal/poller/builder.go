// internal/poller/builder.go
package poller

import (
	cfg "github.com/tamzrod/serial-telemetry/internal/config"
)

// Build constructs a Poller for the configured device.
// The presentation cadence is independent of arrival timing.
func Build(c *cfg.Config, store SnapshotSource, st StatusSource) (*Poller, error) {
	return New(
		Config{
			DeviceID: c.Device.ID,
			Interval: c.Presentation.Interval(),
		},
		store,
		st,
	)
}
