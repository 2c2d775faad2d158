// internal/writer/console.go
package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/tamzrod/serial-telemetry/internal/poller"
	"github.com/tamzrod/serial-telemetry/internal/telemetry"
)

// consoleWriter prints the operator readout whenever it changes.
type consoleWriter struct {
	out  io.Writer
	last string
}

func NewConsoleWriter(out io.Writer) Writer {
	return &consoleWriter{out: out}
}

func (w *consoleWriter) Name() string { return "console" }

func (w *consoleWriter) Write(f poller.Frame) error {
	line := f.Status.Text + " | " + strings.Join(Readout(f.Snapshot), " | ")
	if line == w.last {
		return nil
	}
	if _, err := fmt.Fprintln(w.out, line); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	w.last = line
	return nil
}

// Readout renders the snapshot as the operator readout lines, in display order.
func Readout(s telemetry.Snapshot) []string {
	state := "OFF"
	if s.ActuatorOn {
		state = "ON"
	}
	return []string{
		fmt.Sprintf("Temperature: %.1f °C", s.Temperature),
		fmt.Sprintf("Humidity: %.0f %%", s.Humidity),
		fmt.Sprintf("Soil Moisture (ADC): %d ADC", s.SoilMoisture),
		fmt.Sprintf("Servo Angle: %d°", s.ServoAngle),
		fmt.Sprintf("Motor / Pump PWM: %d PWM (%s)", s.DriveLevel, state),
	}
}
