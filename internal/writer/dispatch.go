// internal/writer/dispatch.go
package writer

import (
	"context"
	"log/slog"

	"github.com/tamzrod/serial-telemetry/internal/poller"
)

// Dispatcher hands every frame to every writer, in order.
// A failing writer never blocks the others.
type Dispatcher struct {
	writers []Writer
	obs     Observer
	log     *slog.Logger

	lastErr map[string]string
}

func NewDispatcher(writers []Writer, obs Observer, log *slog.Logger) *Dispatcher {
	if obs == nil {
		obs = nopObserver{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		writers: writers,
		obs:     obs,
		log:     log.With("component", "writer"),
		lastErr: make(map[string]string),
	}
}

// Run consumes frames until ctx ends or in is closed.
func (d *Dispatcher) Run(ctx context.Context, in <-chan poller.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-in:
			if !ok {
				return
			}
			d.Dispatch(f)
		}
	}
}

// Dispatch writes one frame. Errors are logged once per distinct message
// so a dead endpoint does not flood the log at the poll cadence.
func (d *Dispatcher) Dispatch(f poller.Frame) {
	for _, w := range d.writers {
		name := w.Name()
		err := w.Write(f)
		d.obs.Published(name, err)

		prev, failing := d.lastErr[name]
		switch {
		case err != nil && (!failing || prev != err.Error()):
			d.lastErr[name] = err.Error()
			d.log.Error("write failed", "writer", name, "device", f.DeviceID, "err", err)
		case err == nil && failing:
			delete(d.lastErr, name)
			d.log.Info("writer recovered", "writer", name, "device", f.DeviceID)
		}
	}
}
