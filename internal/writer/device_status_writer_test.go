// internal/writer/device_status_writer_test.go
package writer

import (
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/serial-telemetry/internal/poller"
	"github.com/tamzrod/serial-telemetry/internal/status"
	"github.com/tamzrod/serial-telemetry/internal/telemetry"
	"github.com/tamzrod/serial-telemetry/internal/transport"
)

func statusPlan() Plan {
	return Plan{
		Status: &StatusPlan{
			Endpoint:   "status-endpoint",
			UnitID:     1,
			BaseSlot:   0,
			DeviceName: "DEV-01",
		},
	}
}

func TestDeviceNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}
	plan := statusPlan()

	clients := map[string]endpointClient{
		"status-endpoint": cli,
	}

	sw, enabled := NewDeviceStatusWriter(plan, clients)
	if !enabled {
		t.Fatalf("status writer should be enabled")
	}

	// ---- first write: FULL ASSERT ----
	first := status.Snapshot{
		Health:         status.HealthOK,
		LastErrorCode:  0,
		SecondsInError: 0,
		ConnState:      uint16(status.CodeConnected),
	}

	if err := sw.WriteStatus(first); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	// Expect full block
	if len(cli.lastRegs) != status.SlotsPerDevice {
		t.Fatalf(
			"expected full block write (%d regs), got %d",
			status.SlotsPerDevice,
			len(cli.lastRegs),
		)
	}

	// Verify device name encoding EXACTLY
	expectedNameRegs := status.EncodeDeviceName(plan.Status.DeviceName)

	for i := 0; i < status.SlotDeviceNameSlots; i++ {
		slot := status.SlotDeviceNameStart + i
		if cli.lastRegs[slot] != expectedNameRegs[i] {
			t.Fatalf(
				"device name slot %d mismatch: got=%d want=%d",
				slot,
				cli.lastRegs[slot],
				expectedNameRegs[i],
			)
		}
	}

	// ---- second write: INCREMENTAL ONLY ----
	second := status.Snapshot{
		Health:         status.HealthError,
		LastErrorCode:  uint16(status.CodeDeviceRemoved),
		SecondsInError: 1,
		ConnState:      uint16(status.CodeDeviceRemoved),
	}

	if err := sw.WriteStatus(second); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}

	// Incremental update must NOT re-write full block
	if len(cli.lastRegs) == status.SlotsPerDevice {
		t.Fatalf("device name should not be rewritten on incremental update")
	}
	if len(cli.writes) != 5 {
		t.Fatalf("expected 1 full + 4 slot writes, got %d", len(cli.writes))
	}
}

func TestSecondsInErrorResetOnRecovery(t *testing.T) {
	cli := &fakeEndpointClient{}
	plan := statusPlan()

	clients := map[string]endpointClient{
		"status-endpoint": cli,
	}

	sw, enabled := NewDeviceStatusWriter(plan, clients)
	if !enabled {
		t.Fatalf("status writer should be enabled")
	}

	// simulate ERROR
	errSnap := status.Snapshot{
		Health:         status.HealthError,
		LastErrorCode:  uint16(status.CodeError),
		SecondsInError: 3,
	}

	if err := sw.WriteStatus(errSnap); err != nil {
		t.Fatalf("error snapshot write failed: %v", err)
	}

	// simulate recovery
	okSnap := status.Snapshot{
		Health:         status.HealthOK,
		LastErrorCode:  0,
		SecondsInError: 0,
	}

	if err := sw.WriteStatus(okSnap); err != nil {
		t.Fatalf("recovery snapshot write failed: %v", err)
	}

	expectedAddr := plan.Status.BaseSlot*status.SlotsPerDevice + status.SlotSecondsInError

	if cli.lastRegsAddr != expectedAddr {
		t.Fatalf("unexpected write addr: got=%d want=%d", cli.lastRegsAddr, expectedAddr)
	}

	if len(cli.lastRegs) != 1 {
		t.Fatalf("expected 1 register write, got %d", len(cli.lastRegs))
	}

	if cli.lastRegs[0] != 0 {
		t.Fatalf("seconds_in_error not reset: got=%d want=0", cli.lastRegs[0])
	}
}

func TestPartialFailureReassertsFullBlock(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := NewDeviceStatusWriter(statusPlan(), map[string]endpointClient{"status-endpoint": cli})

	_ = sw.WriteStatus(status.Snapshot{Health: status.HealthOK})

	cli.fail = errors.New("broken pipe")
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err == nil {
		t.Fatalf("expected error")
	}

	cli.fail = nil
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cli.lastRegs) != status.SlotsPerDevice {
		t.Fatalf("expected full block re-assert after failure, got %d regs", len(cli.lastRegs))
	}
}

func TestStatusWriter_FollowsSessionStatus(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := NewDeviceStatusWriter(statusPlan(), map[string]endpointClient{"status-endpoint": cli})

	t0 := time.Unix(1000, 0)
	removed := status.FromError(transport.ErrDeviceRemoved)

	// first frame: full assert of the error state
	if err := sw.Write(poller.Frame{At: t0, Status: removed}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if cli.lastRegs[status.SlotHealthCode] != status.HealthError ||
		cli.lastRegs[status.SlotLastErrorCode] != uint16(status.CodeDeviceRemoved) {
		t.Fatalf("unexpected block: %v", cli.lastRegs[:4])
	}

	// sub-second frames change nothing
	n := len(cli.writes)
	_ = sw.Write(poller.Frame{At: t0.Add(100 * time.Millisecond), Status: removed})
	if len(cli.writes) != n {
		t.Fatalf("unchanged status must not be written")
	}

	// one second later: seconds_in_error ticks
	_ = sw.Write(poller.Frame{At: t0.Add(1100 * time.Millisecond), Status: removed})
	if cli.lastRegsAddr != status.SlotSecondsInError || cli.lastRegs[0] != 1 {
		t.Fatalf("expected seconds tick, got addr=%d regs=%v", cli.lastRegsAddr, cli.lastRegs)
	}

	// recovery
	_ = sw.Write(poller.Frame{At: t0.Add(1200 * time.Millisecond), Status: status.Connected()})
	if s := sw.tracker.Snapshot(); s.Health != status.HealthOK || s.SecondsInError != 0 || s.LastErrorCode != 0 {
		t.Fatalf("unexpected snapshot after recovery: %+v", s)
	}
}

func TestStatusWriter_Stale(t *testing.T) {
	cli := &fakeEndpointClient{}
	plan := statusPlan()
	plan.Status.StaleAfter = 5 * time.Second
	sw, _ := NewDeviceStatusWriter(plan, map[string]endpointClient{"status-endpoint": cli})

	t0 := time.Unix(1000, 0)
	st := status.Connected()
	st.Since = t0

	_ = sw.Write(poller.Frame{At: t0, Status: st})
	if sw.tracker.Snapshot().Health != status.HealthOK {
		t.Fatalf("fresh connect must be OK")
	}

	// connected but silent
	_ = sw.Write(poller.Frame{At: t0.Add(6 * time.Second), Status: st})
	if sw.tracker.Snapshot().Health != status.HealthStale {
		t.Fatalf("expected stale, got %+v", sw.tracker.Snapshot())
	}

	// data arrives
	snap := telemetry.Snapshot{UpdatedAt: t0.Add(6500 * time.Millisecond)}
	_ = sw.Write(poller.Frame{At: t0.Add(7 * time.Second), Status: st, Snapshot: snap})
	if sw.tracker.Snapshot().Health != status.HealthOK {
		t.Fatalf("expected OK after data, got %+v", sw.tracker.Snapshot())
	}
}
