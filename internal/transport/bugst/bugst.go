// internal/transport/bugst/bugst.go
package bugst

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/tamzrod/serial-telemetry/internal/transport"
)

// Opener opens local serial ports through go.bug.st/serial.
// When no port path is configured it discovers a single USB device
// whose vendor ID is in the configured allow-list.
type Opener struct {
	list func() ([]*enumerator.PortDetails, error)
	open func(name string, mode *serial.Mode) (serial.Port, error)
}

func New() *Opener {
	return &Opener{
		list: enumerator.GetDetailedPortsList,
		open: serial.Open,
	}
}

func (o *Opener) Open(ctx context.Context, cfg transport.Config) (transport.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := cfg.Port
	if name == "" {
		found, err := o.discover(cfg.VendorIDs)
		if err != nil {
			return nil, err
		}
		name = found
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := o.open(name, mode)
	if err != nil {
		return nil, openError(name, err)
	}

	if cfg.ReadTimeout > 0 {
		if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("bugst: %s: set read timeout: %w", name, err)
		}
	}

	return &port{p: p, name: name}, nil
}

func openError(name string, err error) error {
	var pe *serial.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case serial.PortBusy, serial.PermissionDenied:
			return fmt.Errorf("bugst: open %s: %w: %w", name, transport.ErrAccessDenied, err)
		case serial.PortNotFound:
			return fmt.Errorf("bugst: open %s: %w: %w", name, transport.ErrNoDevice, err)
		}
	}
	if transport.Classify(err) == transport.KindNoDevice {
		return fmt.Errorf("bugst: open %s: %w: %w", name, transport.ErrNoDevice, err)
	}
	return fmt.Errorf("bugst: open %s: %w", name, err)
}

// ---- discovery ----

func (o *Opener) discover(vendorIDs []string) (string, error) {
	details, err := o.list()
	if err != nil {
		return "", fmt.Errorf("bugst: enumerate ports: %w", err)
	}

	matches := matchVendors(details, vendorIDs)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("bugst: %w (vendor ids %s)", transport.ErrNoDevice, strings.Join(vendorIDs, ","))
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("bugst: %w: several candidates %s, set device.port", transport.ErrNoDevice, strings.Join(matches, ","))
	}
}

func matchVendors(details []*enumerator.PortDetails, vendorIDs []string) []string {
	var out []string
	for _, d := range details {
		if d == nil || !d.IsUSB {
			continue
		}
		for _, vid := range vendorIDs {
			if strings.EqualFold(d.VID, vid) {
				out = append(out, d.Name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// PortInfo describes one enumerated serial port.
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// ListPorts enumerates the serial ports visible to the OS.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("bugst: enumerate ports: %w", err)
	}

	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		out = append(out, PortInfo{
			Name:    d.Name,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- port ----

type port struct {
	p    serial.Port
	name string

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (p *port) Read(b []byte) (int, error) {
	for {
		if p.closed.Load() {
			return 0, transport.ErrClosed
		}

		n, err := p.p.Read(b)
		if err != nil {
			return n, p.readError(err)
		}
		// read timeout elapsed with no data
		if n == 0 {
			continue
		}
		return n, nil
	}
}

// readError separates our own Close from a device that went away;
// the library reports both as PortClosed.
func (p *port) readError(err error) error {
	if p.closed.Load() {
		return transport.ErrClosed
	}

	var pe *serial.PortError
	if errors.As(err, &pe) && pe.Code() == serial.PortClosed {
		return fmt.Errorf("bugst: read %s: %w: %w", p.name, transport.ErrDeviceRemoved, err)
	}
	if transport.Classify(err) == transport.KindDeviceRemoved {
		return fmt.Errorf("bugst: read %s: %w: %w", p.name, transport.ErrDeviceRemoved, err)
	}
	return fmt.Errorf("bugst: read %s: %w", p.name, err)
}

func (p *port) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.closeErr = p.p.Close()
	})
	return p.closeErr
}
