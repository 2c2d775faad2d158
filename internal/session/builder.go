// internal/session/builder.go
package session

import (
	"fmt"
	"log/slog"

	cfg "github.com/tamzrod/serial-telemetry/internal/config"
	"github.com/tamzrod/serial-telemetry/internal/framer"
	"github.com/tamzrod/serial-telemetry/internal/status"
	"github.com/tamzrod/serial-telemetry/internal/telemetry"
	"github.com/tamzrod/serial-telemetry/internal/transport"
	"github.com/tamzrod/serial-telemetry/internal/transport/bugst"
	"github.com/tamzrod/serial-telemetry/internal/transport/rawserial"
	"github.com/tamzrod/serial-telemetry/internal/transport/telnet"
)

// Openers maps a configured driver name to its transport.
func Openers() map[string]transport.Opener {
	return map[string]transport.Opener{
		cfg.DriverSerial:    bugst.New(),
		cfg.DriverRawSerial: rawserial.New(),
		cfg.DriverTelnet:    telnet.New(),
	}
}

// Build constructs a Session from validated config.
// Nothing is opened here; the caller drives Open or Run.
func Build(c *cfg.Config, store *telemetry.Store, board *status.Board, met Metrics, log *slog.Logger) (*Session, error) {
	return buildWith(Openers(), c, store, board, met, log)
}

func buildWith(openers map[string]transport.Opener, c *cfg.Config, store *telemetry.Store, board *status.Board, met Metrics, log *slog.Logger) (*Session, error) {
	d := c.Device

	opener, ok := openers[d.Driver]
	if !ok {
		return nil, fmt.Errorf("session: unknown driver %q", d.Driver)
	}

	enc, ok := framer.Encoding(d.Encoding)
	if !ok {
		return nil, fmt.Errorf("session: unknown encoding %q", d.Encoding)
	}

	return New(Options{
		Name:   d.ID,
		Opener: opener,
		Transport: transport.Config{
			Port:        d.Port,
			Address:     d.Address,
			BaudRate:    d.BaudRate,
			ReadTimeout: d.ReadTimeout(),
			VendorIDs:   d.USBVendorIDs,
		},
		Encoding:          enc,
		MaxLine:           c.Session.MaxLineBytes,
		FlushPartialOnEOF: c.Session.FlushOnEOF(),
		ResetOnDisconnect: c.Session.ResetOnDisconnect,
		Store:             store,
		Board:             board,
		Logger:            log,
		Metrics:           met,
	})
}
