// internal/extract/extract.go
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tamzrod/serial-telemetry/internal/telemetry"
)

// Line grammar (case-insensitive, everything else on the line is ignored):
//
//	field   := label sep token
//	label   := "Temp" | "Humidity" | "Pot" | "Servo" | "Motor"
//	sep     := space* [":" | "="] space*
//	token   := run of characters other than space, "|", "," and ";"
//	real    := ["+" | "-"] digit+ ["." digit+]
//	integer := digit+
//	status  := "|" space* ("ON" | "OFF") space* end-of-line
//
// A label may be glued to whatever precedes it ("AirTemp:", "°CHumidity:")
// but must end at a word boundary, so "Temperature" is not "Temp".
// A token must start with a number of the field's kind; the rest of the
// token is a unit suffix ("°", "C", "°C", "%") and is ignored.
// Every occurrence of a label is tried in order and the first one whose
// token parses wins. A field is an anomaly only when no occurrence parses.

var (
	ErrNoNumber = errors.New("no numeric value")
	ErrRange    = errors.New("value out of range")
)

// FieldError reports a label whose value could not be used.
// The field keeps its previous value; other fields on the line still apply.
type FieldError struct {
	Field telemetry.Field
	Token string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("extract: %s: bad value %q: %v", e.Field, e.Token, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

type kind int

const (
	kindReal kind = iota
	kindInt
)

type rule struct {
	field telemetry.Field
	re    *regexp.Regexp
	kind  kind
}

var (
	realPrefix = regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?`)
	intPrefix  = regexp.MustCompile(`^\d+`)
	statusRe   = regexp.MustCompile(`(?i)\|\s*(ON|OFF)\s*$`)
)

func labelRule(label string, f telemetry.Field, k kind) rule {
	return rule{
		field: f,
		re:    regexp.MustCompile(`(?i)` + label + `\b\s*[:=]?\s*([^\s|,;]*)`),
		kind:  k,
	}
}

// Extractor applies the fixed field rules to device lines.
// It holds no per-line state and is safe for concurrent use.
type Extractor struct {
	rules []rule
}

// New returns an extractor for the Temp/Humidity/Pot/Servo/Motor protocol.
func New() *Extractor {
	return &Extractor{
		rules: []rule{
			labelRule("Temp", telemetry.FieldTemperature, kindReal),
			labelRule("Humidity", telemetry.FieldHumidity, kindReal),
			labelRule("Pot", telemetry.FieldSoilMoisture, kindInt),
			labelRule("Servo", telemetry.FieldServoAngle, kindInt),
			labelRule("Motor", telemetry.FieldDriveLevel, kindInt),
		},
	}
}

// Extract returns the fields present on line.
// Every malformed field yields one *FieldError; it never stops the others.
func (e *Extractor) Extract(line string) (telemetry.Update, []error) {
	var (
		u    telemetry.Update
		errs []error
	)

	for _, r := range e.rules {
		if fe := r.apply(&u, line); fe != nil {
			errs = append(errs, fe)
		}
	}

	if m := statusRe.FindStringSubmatch(line); m != nil {
		on := len(m[1]) == 2 // "ON" vs "OFF", any casing
		u.ActuatorOn = &on
	}

	return u, errs
}

// apply sets r's field from the first occurrence on line that parses.
// It returns the first occurrence's error when none do.
func (r rule) apply(u *telemetry.Update, line string) *FieldError {
	var first *FieldError
	for _, m := range r.re.FindAllStringSubmatch(line, -1) {
		token := m[1]

		var err error
		switch r.kind {
		case kindReal:
			var v float64
			if v, err = parseReal(token); err == nil {
				setReal(u, r.field, v)
				return nil
			}
		case kindInt:
			var v int
			if v, err = parseInt(token); err == nil {
				setInt(u, r.field, v)
				return nil
			}
		}
		if first == nil {
			first = &FieldError{Field: r.field, Token: token, Err: err}
		}
	}
	return first
}

// ---- numeric parsing ----

func parseReal(token string) (float64, error) {
	num := realPrefix.FindString(token)
	if num == "" {
		return 0, ErrNoNumber
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, ErrRange
	}
	return v, nil
}

func parseInt(token string) (int, error) {
	num := intPrefix.FindString(token)
	if num == "" {
		return 0, ErrNoNumber
	}
	v, err := strconv.Atoi(num)
	if err != nil {
		return 0, ErrRange
	}
	return v, nil
}

func setReal(u *telemetry.Update, f telemetry.Field, v float64) {
	switch f {
	case telemetry.FieldTemperature:
		u.Temperature = &v
	case telemetry.FieldHumidity:
		u.Humidity = &v
	}
}

func setInt(u *telemetry.Update, f telemetry.Field, v int) {
	switch f {
	case telemetry.FieldSoilMoisture:
		u.SoilMoisture = &v
	case telemetry.FieldServoAngle:
		u.ServoAngle = &v
	case telemetry.FieldDriveLevel:
		u.DriveLevel = &v
	}
}
