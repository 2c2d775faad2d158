// internal/status/board.go
package status

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/serial-telemetry/internal/transport"
)

// Code is the operator-visible connection condition.
type Code uint16

const (
	CodeDisconnected Code = iota
	CodeConnecting
	CodeConnected
	CodeNoDevice
	CodeAccessDenied
	CodeDeviceRemoved
	CodeError
	CodeClosing
)

func (c Code) String() string {
	switch c {
	case CodeDisconnected:
		return "disconnected"
	case CodeConnecting:
		return "connecting"
	case CodeConnected:
		return "connected"
	case CodeNoDevice:
		return "no_device"
	case CodeAccessDenied:
		return "access_denied"
	case CodeDeviceRemoved:
		return "device_removed"
	case CodeError:
		return "error"
	case CodeClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// IsError reports whether c describes a failure.
func (c Code) IsError() bool { return c >= CodeNoDevice && c <= CodeError }

// Status is one line of operator-facing text plus its code.
type Status struct {
	Code  Code      `json:"code"`
	Text  string    `json:"text"`
	Since time.Time `json:"since"`
}

const (
	TextConnected     = "Connected"
	TextConnecting    = "Connecting"
	TextClosing       = "Closing"
	TextDisconnected  = "Disconnected"
	TextNoDevice      = "No device selected or detected, check drivers"
	TextAccessDenied  = "Port busy or access denied, close other apps"
	TextDeviceRemoved = "Device removed"
)

// IsConnected reports whether a session currently holds an open handle.
func (s Status) IsConnected() bool { return s.Code == CodeConnected }

func Connected() Status    { return Status{Code: CodeConnected, Text: TextConnected} }
func Connecting() Status   { return Status{Code: CodeConnecting, Text: TextConnecting} }
func Disconnected() Status { return Status{Code: CodeDisconnected, Text: TextDisconnected} }
func Closing() Status      { return Status{Code: CodeClosing, Text: TextClosing} }

// FromError maps a session failure onto operator text.
// A clean end of stream or our own close reads as Disconnected.
func FromError(err error) Status {
	switch transport.Classify(err) {
	case transport.KindNone, transport.KindEOF, transport.KindClosed:
		return Disconnected()
	case transport.KindNoDevice:
		return Status{Code: CodeNoDevice, Text: TextNoDevice}
	case transport.KindAccessDenied:
		return Status{Code: CodeAccessDenied, Text: TextAccessDenied}
	case transport.KindDeviceRemoved:
		return Status{Code: CodeDeviceRemoved, Text: TextDeviceRemoved}
	}

	msg := err.Error()
	// report the innermost cause, drivers prefix their own context
	for u := errors.Unwrap(err); u != nil; u = errors.Unwrap(u) {
		msg = u.Error()
	}
	return Status{Code: CodeError, Text: "Error: " + msg}
}

// ---- board ----

// Board holds the current Status and fans changes out to watchers.
// Watchers see the latest value; intermediate values may be skipped.
type Board struct {
	mu       sync.Mutex
	cur      Status
	watchers []chan Status
	log      *slog.Logger
	now      func() time.Time
}

func NewBoard(log *slog.Logger) *Board {
	if log == nil {
		log = slog.Default()
	}
	b := &Board{
		log: log.With("component", "status"),
		now: time.Now,
	}
	b.cur = Disconnected()
	b.cur.Since = b.now()
	return b
}

// Set publishes s. Repeating the current code and text is a no-op.
func (b *Board) Set(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.Code == b.cur.Code && s.Text == b.cur.Text {
		return
	}
	s.Since = b.now()
	prev := b.cur
	b.cur = s

	if s.Code.IsError() {
		b.log.Warn("status changed", "from", prev.Code.String(), "to", s.Code.String(), "text", s.Text)
	} else {
		b.log.Info("status changed", "from", prev.Code.String(), "to", s.Code.String(), "text", s.Text)
	}

	for _, ch := range b.watchers {
		offer(ch, s)
	}
}

func (b *Board) Get() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur
}

// Watch returns a channel primed with the current status.
func (b *Board) Watch() <-chan Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Status, 1)
	ch <- b.cur
	b.watchers = append(b.watchers, ch)
	return ch
}

// offer replaces any unread value with s.
func offer(ch chan Status, s Status) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
