// internal/poller/poller.go
package poller

import (
	"errors"
	"time"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	DeviceID string
	Interval time.Duration
}

// Poller is a dumb, clock-driven reader of the latest snapshot.
// It never blocks ingestion: the store hands out immutable copies.
type Poller struct {
	cfg    Config
	store  SnapshotSource
	status StatusSource
	now    func() time.Time
}

// New creates a poller with immutable config.
func New(cfg Config, store SnapshotSource, st StatusSource) (*Poller, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("poller: device id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if store == nil || st == nil {
		return nil, errors.New("poller: store and status source required")
	}
	return &Poller{cfg: cfg, store: store, status: st, now: time.Now}, nil
}

func (p *Poller) Interval() time.Duration { return p.cfg.Interval }

// PollOnce performs exactly one poll cycle.
func (p *Poller) PollOnce() Frame {
	return Frame{
		DeviceID: p.cfg.DeviceID,
		At:       p.now(),
		Snapshot: p.store.ReadAll(),
		Status:   p.status.Get(),
	}
}
