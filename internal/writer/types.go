// internal/writer/types.go
package writer

import (
	"time"

	"github.com/tamzrod/serial-telemetry/internal/poller"
)

// ImagePlan places the snapshot register image on a Modbus endpoint.
type ImagePlan struct {
	Endpoint    string
	UnitID      uint8
	BaseAddress uint16
}

// StatusPlan places the device status block on a Modbus endpoint.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string

	// StaleAfter flags a connected device that has sent nothing for this long.
	// Zero disables the check.
	StaleAfter time.Duration
}

// Plan is the fully-built Modbus write plan for one device.
// A nil part is disabled.
type Plan struct {
	DeviceID string
	Image    *ImagePlan
	Status   *StatusPlan
}

// Writer delivers poll frames to one presentation target.
type Writer interface {
	Name() string
	Write(f poller.Frame) error
}

// Observer counts writer results.
type Observer interface {
	Published(writer string, err error)
}

type nopObserver struct{}

func (nopObserver) Published(string, error) {}
