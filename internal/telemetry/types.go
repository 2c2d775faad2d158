// internal/telemetry/types.go
package telemetry

import "time"

// Field names one telemetry quantity carried by device lines.
type Field int

const (
	FieldTemperature Field = iota
	FieldHumidity
	FieldSoilMoisture
	FieldServoAngle
	FieldDriveLevel
	FieldActuatorOn
)

// Fields lists every field in register/display order.
var Fields = []Field{
	FieldTemperature,
	FieldHumidity,
	FieldSoilMoisture,
	FieldServoAngle,
	FieldDriveLevel,
	FieldActuatorOn,
}

func (f Field) String() string {
	switch f {
	case FieldTemperature:
		return "temperature"
	case FieldHumidity:
		return "humidity"
	case FieldSoilMoisture:
		return "soil_moisture"
	case FieldServoAngle:
		return "servo_angle"
	case FieldDriveLevel:
		return "drive_level"
	case FieldActuatorOn:
		return "actuator_on"
	default:
		return "unknown"
	}
}

// Snapshot is the latest known value of every field.
// Values are passed through as parsed: no clamping, no range checks.
type Snapshot struct {
	Temperature  float64   `json:"temperature_c"`
	Humidity     float64   `json:"humidity_pct"`
	SoilMoisture int       `json:"soil_moisture_adc"`
	ServoAngle   int       `json:"servo_deg"`
	DriveLevel   int       `json:"drive_pwm"`
	ActuatorOn   bool      `json:"actuator_on"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Update is the partial result of one line.
// A nil field means "not present on this line" and leaves the stored value alone.
type Update struct {
	Temperature  *float64
	Humidity     *float64
	SoilMoisture *int
	ServoAngle   *int
	DriveLevel   *int

	// ActuatorOn is set only by an explicit status marker.
	// When nil the flag is derived from the drive level.
	ActuatorOn *bool
}

// Empty reports whether the update carries no field at all.
func (u Update) Empty() bool {
	return u.Temperature == nil &&
		u.Humidity == nil &&
		u.SoilMoisture == nil &&
		u.ServoAngle == nil &&
		u.DriveLevel == nil &&
		u.ActuatorOn == nil
}

// Present returns the fields carried by the update.
func (u Update) Present() []Field {
	var out []Field
	if u.Temperature != nil {
		out = append(out, FieldTemperature)
	}
	if u.Humidity != nil {
		out = append(out, FieldHumidity)
	}
	if u.SoilMoisture != nil {
		out = append(out, FieldSoilMoisture)
	}
	if u.ServoAngle != nil {
		out = append(out, FieldServoAngle)
	}
	if u.DriveLevel != nil {
		out = append(out, FieldDriveLevel)
	}
	if u.ActuatorOn != nil {
		out = append(out, FieldActuatorOn)
	}
	return out
}
