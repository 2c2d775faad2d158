// internal/telemetry/store.go
package telemetry

import (
	"sync/atomic"
	"time"
)

// Store holds the shared snapshot.
//
// Exactly one writer (the session read loop) calls Apply/Set/Reset.
// Any number of readers call ReadAll; readers never block the writer
// because every write publishes a fresh immutable copy.
type Store struct {
	cur atomic.Pointer[Snapshot]
	now func() time.Time
}

// NewStore returns a store holding the all-zero snapshot.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.cur.Store(&Snapshot{})
	return s
}

// ReadAll returns a copy of the current snapshot.
func (s *Store) ReadAll() Snapshot {
	return *s.cur.Load()
}

// Apply merges one line's update into the snapshot and returns the result.
//
// Fields absent from u keep their value. The actuator flag is taken from
// the explicit marker when present, otherwise it is re-derived from the
// (possibly just updated) drive level. Derivation happens on every call.
func (s *Store) Apply(u Update) Snapshot {
	next := *s.cur.Load()

	if u.Temperature != nil {
		next.Temperature = *u.Temperature
	}
	if u.Humidity != nil {
		next.Humidity = *u.Humidity
	}
	if u.SoilMoisture != nil {
		next.SoilMoisture = *u.SoilMoisture
	}
	if u.ServoAngle != nil {
		next.ServoAngle = *u.ServoAngle
	}
	if u.DriveLevel != nil {
		next.DriveLevel = *u.DriveLevel
	}

	if u.ActuatorOn != nil {
		next.ActuatorOn = *u.ActuatorOn
	} else {
		next.ActuatorOn = next.DriveLevel > 0
	}

	if !u.Empty() {
		next.UpdatedAt = s.now()
	}

	s.cur.Store(&next)
	return next
}

// Set writes a single field. Integer fields truncate v; the actuator flag
// is true for any non-zero v. Set does not re-derive the actuator flag.
func (s *Store) Set(f Field, v float64) {
	next := *s.cur.Load()

	switch f {
	case FieldTemperature:
		next.Temperature = v
	case FieldHumidity:
		next.Humidity = v
	case FieldSoilMoisture:
		next.SoilMoisture = int(v)
	case FieldServoAngle:
		next.ServoAngle = int(v)
	case FieldDriveLevel:
		next.DriveLevel = int(v)
	case FieldActuatorOn:
		next.ActuatorOn = v != 0
	default:
		return
	}

	next.UpdatedAt = s.now()
	s.cur.Store(&next)
}

// Reset returns the store to the all-zero snapshot.
func (s *Store) Reset() {
	s.cur.Store(&Snapshot{})
}
