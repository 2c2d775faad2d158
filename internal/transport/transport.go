// internal/transport/transport.go
package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"syscall"
	"time"
)

// Config is the driver-independent open request.
type Config struct {
	// Port is a device path (/dev/ttyACM0, COM3). Empty asks the driver to discover one.
	Port string
	// Address is host:port for network bridges.
	Address string
	// BaudRate is the fixed link speed.
	BaudRate int
	// ReadTimeout bounds one low-level read; 0 lets the driver pick.
	// It never surfaces as an error: an idle link is healthy.
	ReadTimeout time.Duration
	// VendorIDs restricts discovery to USB devices with these VIDs (hex, e.g. "2341").
	VendorIDs []string
}

// Port is one open transport handle with a single reader.
//
// Read blocks until data arrives, the stream ends (io.EOF) or the port
// fails. Close releases the handle and unblocks an outstanding Read,
// which then returns ErrClosed. Close is safe to call more than once.
type Port interface {
	io.Reader
	io.Closer
}

// Opener opens ports for one driver.
type Opener interface {
	Open(ctx context.Context, cfg Config) (Port, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, cfg Config) (Port, error)

func (f OpenerFunc) Open(ctx context.Context, cfg Config) (Port, error) { return f(ctx, cfg) }

// ---- error taxonomy ----

var (
	ErrNoDevice      = errors.New("transport: no device found")
	ErrAccessDenied  = errors.New("transport: port busy or access denied")
	ErrDeviceRemoved = errors.New("transport: device removed")
	ErrClosed        = errors.New("transport: port closed")
)

// Kind classifies a transport failure.
type Kind int

const (
	KindNone Kind = iota
	KindNoDevice
	KindAccessDenied
	KindDeviceRemoved
	KindIO
	KindClosed
	KindEOF
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNoDevice:
		return "no_device"
	case KindAccessDenied:
		return "access_denied"
	case KindDeviceRemoved:
		return "device_removed"
	case KindIO:
		return "io"
	case KindClosed:
		return "closed"
	case KindEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Classify maps an error from any driver (or the OS) onto Kind.
// Driver sentinels win; raw errno values are mapped as a fallback.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrClosed):
		return KindClosed
	case errors.Is(err, ErrNoDevice):
		return KindNoDevice
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrDeviceRemoved):
		return KindDeviceRemoved
	case errors.Is(err, io.EOF):
		return KindEOF
	case errors.Is(err, os.ErrNotExist):
		return KindNoDevice
	case errors.Is(err, os.ErrPermission),
		errors.Is(err, syscall.EBUSY),
		errors.Is(err, syscall.EACCES):
		return KindAccessDenied
	case errors.Is(err, syscall.ENODEV),
		errors.Is(err, syscall.ENXIO),
		errors.Is(err, syscall.EIO),
		errors.Is(err, io.ErrUnexpectedEOF):
		return KindDeviceRemoved
	default:
		return KindIO
	}
}
