// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tamzrod/serial-telemetry/internal/poller"
	"github.com/tamzrod/serial-telemetry/internal/status"
)

// StatusWriter is the delivery-only contract for device status.
// It receives a snapshot and writes it verbatim.
// No logic, no state, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// deviceStatusWriter delivers the status block and owns the tracker that
// folds connection status into it.
type deviceStatusWriter struct {
	plan    *StatusPlan
	cli     endpointClient
	tracker *status.Tracker

	needFull bool
	last     status.Snapshot
}

// NewDeviceStatusWriter builds a status writer if status is enabled for the device.
// If plan.Status is nil, status is disabled.
func NewDeviceStatusWriter(plan Plan, clients map[string]endpointClient) (*deviceStatusWriter, bool) {
	if plan.Status == nil {
		return nil, false
	}

	sp := plan.Status
	return &deviceStatusWriter{
		plan:     sp,
		cli:      clients[sp.Endpoint],
		tracker:  status.NewTracker(),
		needFull: true, // full re-assert on first successful write
		last: status.Snapshot{
			Health: status.HealthUnknown,
		},
	}, true
}

func (sw *deviceStatusWriter) Name() string { return "modbus_status" }

// Write folds one frame into the tracker and delivers the block when it changed.
// seconds_in_error advances from frame time, so the 1 Hz cadence needs no ticker.
func (sw *deviceStatusWriter) Write(f poller.Frame) error {
	changed := sw.tracker.Observe(f.Status)
	if sw.plan.StaleAfter > 0 {
		if sw.tracker.MarkStale(isStale(f, sw.plan.StaleAfter)) {
			changed = true
		}
	}
	if sw.tracker.Advance(f.At) {
		changed = true
	}

	if !changed && !sw.needFull {
		return nil
	}
	return sw.WriteStatus(sw.tracker.Snapshot())
}

// isStale reports a connected device whose last data (or connect, if it
// never sent any) is older than after.
func isStale(f poller.Frame, after time.Duration) bool {
	if !f.Connected() {
		return false
	}
	last := f.Status.Since
	if f.Snapshot.UpdatedAt.After(last) {
		last = f.Snapshot.UpdatedAt
	}
	return f.At.Sub(last) > after
}

// WriteStatus delivers a device status snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.plan == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return fmt.Errorf("status writer: missing client for endpoint %s", sw.plan.Endpoint)
	}

	baseAddr := sw.baseAddr()
	unitID := sw.plan.UnitID

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		regs := status.Encode(s, sw.plan.DeviceName)

		if err := sw.cli.WriteRegisters(unitID, baseAddr, regs); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		sw.needFull = false
		sw.last = s
		return nil
	}

	var errs []string

	slots := []struct {
		slot uint16
		name string
		cur  *uint16
		next uint16
	}{
		{status.SlotHealthCode, "slot0 health", &sw.last.Health, s.Health},
		{status.SlotLastErrorCode, "slot1 last_error", &sw.last.LastErrorCode, s.LastErrorCode},
		{status.SlotSecondsInError, "slot2 seconds", &sw.last.SecondsInError, s.SecondsInError},
		{status.SlotConnState, "slot3 conn_state", &sw.last.ConnState, s.ConnState},
	}

	for _, sl := range slots {
		if *sl.cur == sl.next {
			continue
		}
		if err := sw.cli.WriteRegisters(unitID, baseAddr+sl.slot, []uint16{sl.next}); err != nil {
			errs = append(errs, fmt.Sprintf("%s write failed: %v", sl.name, err))
			continue
		}
		*sl.cur = sl.next
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt: re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

func (sw *deviceStatusWriter) baseAddr() uint16 {
	// Each device owns a fixed SlotsPerDevice block.
	return sw.plan.BaseSlot * status.SlotsPerDevice
}
