// internal/status/snapshot.go
package status

import "time"

// Snapshot represents exactly what a block writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
	ConnState      uint16
}

// Tracker folds Status transitions into a block Snapshot.
// seconds_in_error advances once per whole second while health is not OK
// and resets on recovery. Not safe for concurrent use.
type Tracker struct {
	snap     Snapshot
	lastTick time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		snap: Snapshot{Health: HealthUnknown},
	}
}

func (t *Tracker) Snapshot() Snapshot { return t.snap }

// Observe applies a board status. Returns true if the snapshot changed.
func (t *Tracker) Observe(st Status) bool {
	prev := t.snap
	t.snap.ConnState = uint16(st.Code)

	switch {
	case st.Code == CodeConnected:
		// stale is decided by MarkStale
		if t.snap.Health != HealthStale {
			t.snap.Health = HealthOK
		}
		t.snap.LastErrorCode = 0
		if t.snap.Health == HealthOK {
			t.snap.SecondsInError = 0
		}

	case st.Code.IsError():
		t.snap.Health = HealthError
		t.snap.LastErrorCode = uint16(st.Code)

	case st.Code == CodeDisconnected:
		t.snap.Health = HealthDisabled

	default:
		t.snap.Health = HealthUnknown
	}

	return t.snap != prev
}

// MarkStale flips a connected device between OK and Stale.
func (t *Tracker) MarkStale(stale bool) bool {
	switch {
	case stale && t.snap.Health == HealthOK:
		t.snap.Health = HealthStale
		return true
	case !stale && t.snap.Health == HealthStale:
		t.snap.Health = HealthOK
		t.snap.SecondsInError = 0
		return true
	}
	return false
}

// Advance counts the whole seconds elapsed since the previous call.
func (t *Tracker) Advance(now time.Time) bool {
	if t.lastTick.IsZero() {
		t.lastTick = now
		return false
	}

	secs := int(now.Sub(t.lastTick) / time.Second)
	if secs <= 0 {
		return false
	}
	t.lastTick = t.lastTick.Add(time.Duration(secs) * time.Second)

	if t.snap.Health == HealthOK {
		return false
	}

	next := int(t.snap.SecondsInError) + secs
	if next > SecondsInErrorMax {
		next = SecondsInErrorMax
	}
	if uint16(next) == t.snap.SecondsInError {
		return false
	}
	t.snap.SecondsInError = uint16(next)
	return true
}
