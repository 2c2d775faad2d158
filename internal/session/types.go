// internal/session/types.go
package session

import (
	"log/slog"
	"time"

	"golang.org/x/text/encoding"

	"github.com/tamzrod/serial-telemetry/internal/extract"
	"github.com/tamzrod/serial-telemetry/internal/status"
	"github.com/tamzrod/serial-telemetry/internal/telemetry"
	"github.com/tamzrod/serial-telemetry/internal/transport"
)

// State is the session lifecycle position.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Metrics receives pipeline counters. All methods must be cheap and non-blocking.
type Metrics interface {
	BytesRead(n int)
	LineApplied()
	LinesDropped(n int)
	FieldUpdated(f telemetry.Field)
	FieldAnomaly(f telemetry.Field)
	SessionOpened()
	SessionEnded(kind transport.Kind)
	StateChanged(s State)
}

type nopMetrics struct{}

func (nopMetrics) BytesRead(int)                {}
func (nopMetrics) LineApplied()                 {}
func (nopMetrics) LinesDropped(int)             {}
func (nopMetrics) FieldUpdated(telemetry.Field) {}
func (nopMetrics) FieldAnomaly(telemetry.Field) {}
func (nopMetrics) SessionOpened()               {}
func (nopMetrics) SessionEnded(transport.Kind)  {}
func (nopMetrics) StateChanged(State)           {}

// Options is the immutable session wiring.
type Options struct {
	// Name identifies the device in logs.
	Name string

	Opener    transport.Opener
	Transport transport.Config

	// Encoding is the device's text encoding; nil means UTF-8.
	Encoding encoding.Encoding
	// MaxLine bounds one line in bytes; 0 means framer.DefaultMaxLine.
	MaxLine int

	// FlushPartialOnEOF applies a non-empty trailing fragment as a final
	// line when the stream ends cleanly. Failures always drop it.
	FlushPartialOnEOF bool
	// ResetOnDisconnect zeroes the store when a session ends.
	ResetOnDisconnect bool

	Store     *telemetry.Store
	Board     *status.Board
	Extractor *extract.Extractor
	Logger    *slog.Logger
	Metrics   Metrics

	// ReadBufferSize is the size of one transport read.
	ReadBufferSize int
}

const defaultReadBufferSize = 4096

// DefaultRetryInterval is the supervisor's pause between reopen attempts.
const DefaultRetryInterval = 2 * time.Second
