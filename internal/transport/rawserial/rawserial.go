// internal/transport/rawserial/rawserial.go
package rawserial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goburrow/serial"

	"github.com/tamzrod/serial-telemetry/internal/transport"
)

// DefaultPollInterval bounds how long Close waits for an in-flight read.
const DefaultPollInterval = 200 * time.Millisecond

// Opener opens a fixed device path through goburrow/serial.
// It does no discovery: device.port must be set.
type Opener struct {
	open func(c *serial.Config) (serial.Port, error)
}

func New() *Opener {
	return &Opener{open: serial.Open}
}

func (o *Opener) Open(ctx context.Context, cfg transport.Config) (transport.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("rawserial: %w: device.port is required", transport.ErrNoDevice)
	}

	poll := cfg.ReadTimeout
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	p, err := o.open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		// library default is even parity
		Parity:  "N",
		Timeout: poll,
	})
	if err != nil {
		return nil, openError(cfg.Port, err)
	}

	return &port{p: p, name: cfg.Port}, nil
}

func openError(name string, err error) error {
	switch transport.Classify(err) {
	case transport.KindNoDevice:
		return fmt.Errorf("rawserial: open %s: %w: %w", name, transport.ErrNoDevice, err)
	case transport.KindAccessDenied:
		return fmt.Errorf("rawserial: open %s: %w: %w", name, transport.ErrAccessDenied, err)
	default:
		return fmt.Errorf("rawserial: open %s: %w", name, err)
	}
}

// ---- port ----

// port serializes Read and Close: the library closes the descriptor
// without waking a pending select, so Read polls with a timeout and
// Close takes the lock between polls.
type port struct {
	mu     sync.Mutex
	p      serial.Port
	name   string
	closed atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

func (p *port) Read(b []byte) (int, error) {
	for {
		if p.closed.Load() {
			return 0, transport.ErrClosed
		}

		p.mu.Lock()
		if p.closed.Load() {
			p.mu.Unlock()
			return 0, transport.ErrClosed
		}
		n, err := p.p.Read(b)
		p.mu.Unlock()

		switch {
		case errors.Is(err, serial.ErrTimeout):
			continue
		case err != nil:
			return 0, p.readError(err)
		case n == 0:
			// hangup: readable with no data
			return 0, fmt.Errorf("rawserial: read %s: %w", p.name, transport.ErrDeviceRemoved)
		}
		return n, nil
	}
}

func (p *port) readError(err error) error {
	if p.closed.Load() {
		return transport.ErrClosed
	}
	if transport.Classify(err) == transport.KindDeviceRemoved {
		return fmt.Errorf("rawserial: read %s: %w: %w", p.name, transport.ErrDeviceRemoved, err)
	}
	return fmt.Errorf("rawserial: read %s: %w", p.name, err)
}

func (p *port) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.mu.Lock()
		p.closeErr = p.p.Close()
		p.mu.Unlock()
	})
	return p.closeErr
}
