// internal/writer/writer.go
package writer

import (
	"fmt"
	"math"
	"slices"

	"github.com/tamzrod/serial-telemetry/internal/poller"
	"github.com/tamzrod/serial-telemetry/internal/status"
	"github.com/tamzrod/serial-telemetry/internal/telemetry"
)

// endpointClient is the exact contract the writers use.
// IMPORTANT: There must be NO other version of this interface anywhere.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// imageWriter mirrors the snapshot into a fixed register image.
// Only changed images are written; a failed write is retried on the next frame.
type imageWriter struct {
	plan *ImagePlan
	cli  endpointClient

	written bool
	last    []uint16
}

// NewImageWriter builds the snapshot image writer if the plan enables it.
func NewImageWriter(plan Plan, clients map[string]endpointClient) (Writer, bool) {
	if plan.Image == nil {
		return nil, false
	}
	return &imageWriter{
		plan: plan.Image,
		cli:  clients[plan.Image.Endpoint],
	}, true
}

func (w *imageWriter) Name() string { return "modbus_image" }

func (w *imageWriter) Write(f poller.Frame) error {
	if w.cli == nil {
		return fmt.Errorf("writer: missing client for endpoint %s", w.plan.Endpoint)
	}

	regs := EncodeImage(f.Snapshot)
	if w.written && slices.Equal(regs, w.last) {
		return nil
	}

	if err := w.cli.WriteRegisters(w.plan.UnitID, w.plan.BaseAddress, regs); err != nil {
		w.written = false
		return fmt.Errorf(
			"writer: ep=%s unit=%d addr=%d err=%w",
			w.plan.Endpoint, w.plan.UnitID, w.plan.BaseAddress, err,
		)
	}

	w.written = true
	w.last = regs
	return nil
}

// EncodeImage converts a Snapshot into the register image.
// Layout is protocol-locked.
// No IO. No side effects.
func EncodeImage(s telemetry.Snapshot) []uint16 {
	regs := make([]uint16, status.ImageRegisters)

	regs[status.ImageTemperature] = scaled(s.Temperature)
	regs[status.ImageHumidity] = scaled(s.Humidity)
	regs[status.ImageSoilMoisture] = saturate(s.SoilMoisture)
	regs[status.ImageServoAngle] = saturate(s.ServoAngle)
	regs[status.ImageDriveLevel] = saturate(s.DriveLevel)
	if s.ActuatorOn {
		regs[status.ImageActuatorOn] = 1
	}

	if !s.UpdatedAt.IsZero() {
		secs := uint32(s.UpdatedAt.Unix())
		regs[status.ImageUpdatedAtHi] = uint16(secs >> 16)
		regs[status.ImageUpdatedAtLo] = uint16(secs)
	}

	return regs
}

// scaled stores v*ImageScale as int16 two's complement, clamped.
func scaled(v float64) uint16 {
	x := math.Round(v * status.ImageScale)
	switch {
	case math.IsNaN(x):
		x = 0
	case x > math.MaxInt16:
		x = math.MaxInt16
	case x < math.MinInt16:
		x = math.MinInt16
	}
	return uint16(int16(x))
}

func saturate(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}
