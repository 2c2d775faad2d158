// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/serial-telemetry/internal/status"
	"github.com/tamzrod/serial-telemetry/internal/telemetry"
)

// SnapshotSource is the read side of the telemetry store.
type SnapshotSource interface {
	ReadAll() telemetry.Snapshot
}

// StatusSource is the read side of the status board.
type StatusSource interface {
	Get() status.Status
}

// StatusWatcher is implemented by status sources that push changes.
// Run then emits a frame as soon as the status changes instead of
// waiting for the next tick.
type StatusWatcher interface {
	Watch() <-chan status.Status
}

// Frame is what one poll cycle saw.
// Snapshot and Status are copies; writers may keep them.
type Frame struct {
	DeviceID string
	At       time.Time

	Snapshot telemetry.Snapshot
	Status   status.Status
}

// Connected reports whether the session held an open handle when the frame was taken.
func (f Frame) Connected() bool { return f.Status.IsConnected() }
