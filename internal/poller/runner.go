// internal/poller/runner.go
package poller

import (
	"context"
	"time"

	"github.com/tamzrod/serial-telemetry/internal/status"
)

// Run starts the ticker loop and emits one Frame per tick on out.
// One goroutine per device. No overlap: a slow consumer delays the next
// tick rather than queueing frames. A StatusWatcher source also triggers
// a frame on every status change.
func (p *Poller) Run(ctx context.Context, out chan<- Frame) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var changes <-chan status.Status // nil blocks forever
	if w, ok := p.status.(StatusWatcher); ok {
		changes = w.Watch()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
		case <-ticker.C:
		}

		select {
		case out <- p.PollOnce():
		case <-ctx.Done():
			return
		}
	}
}
