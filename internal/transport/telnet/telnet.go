// internal/transport/telnet/telnet.go
package telnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	ztelnet "github.com/ziutek/telnet"

	"github.com/tamzrod/serial-telemetry/internal/transport"
)

// DefaultDialTimeout applies when the config carries no read timeout.
const DefaultDialTimeout = 5 * time.Second

// Opener reaches a serial device exported over TCP by a serial-to-network
// bridge (ser2net, ESP-Link) in telnet mode. IAC sequences are stripped by
// the telnet layer; the payload is the device's byte stream.
type Opener struct {
	dial func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error)
}

func New() *Opener {
	return &Opener{dial: dialTCP}
}

func dialTCP(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := &net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", addr)
}

func (o *Opener) Open(ctx context.Context, cfg transport.Config) (transport.Port, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("telnet: %w: device.address is required", transport.ErrNoDevice)
	}

	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	conn, err := o.dial(ctx, cfg.Address, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("telnet: dial %s: %w: %w", cfg.Address, transport.ErrNoDevice, err)
	}

	tc, err := ztelnet.NewConn(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("telnet: wrap %s: %w", cfg.Address, err)
	}

	return &port{c: tc, addr: cfg.Address}, nil
}

// ---- port ----

type port struct {
	c    *ztelnet.Conn
	addr string

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (p *port) Read(b []byte) (int, error) {
	n, err := p.c.Read(b)
	if err == nil {
		return n, nil
	}
	if p.closed.Load() {
		return n, transport.ErrClosed
	}
	if errors.Is(err, io.EOF) {
		return n, io.EOF
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return n, fmt.Errorf("telnet: read %s: %w: %w", p.addr, transport.ErrDeviceRemoved, err)
	}
	return n, fmt.Errorf("telnet: read %s: %w", p.addr, err)
}

func (p *port) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.closeErr = p.c.Close()
	})
	return p.closeErr
}
