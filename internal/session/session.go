// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tamzrod/serial-telemetry/internal/extract"
	"github.com/tamzrod/serial-telemetry/internal/framer"
	"github.com/tamzrod/serial-telemetry/internal/status"
	"github.com/tamzrod/serial-telemetry/internal/transport"
)

var ErrAlreadyOpen = errors.New("session: already open")

// Session owns one transport handle at a time and the read loop that
// drives framer -> extractor -> store.
//
// Lifecycle: Closed -> Opening -> Open -> Closing -> Closed, with Errored
// reachable from Opening and Open. Every Open starts a fresh framer; no
// bytes from a previous handle survive into the next.
type Session struct {
	opts Options
	log  *slog.Logger
	met  Metrics

	mu      sync.Mutex
	state   State
	release func() error
	done    chan struct{}
	err     error
	abort   bool

	// cancels the Opener call while Opening
	cancelOpen context.CancelFunc
}

func New(opts Options) (*Session, error) {
	if opts.Opener == nil {
		return nil, errors.New("session: opener required")
	}
	if opts.Store == nil {
		return nil, errors.New("session: store required")
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New()
	}
	if opts.Board == nil {
		opts.Board = status.NewBoard(opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = defaultReadBufferSize
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	// a never-opened session is already done
	done := make(chan struct{})
	close(done)

	return &Session{
		opts:  opts,
		log:   log.With("component", "session", "device", opts.Name),
		met:   opts.Metrics,
		state: StateClosed,
		done:  done,
	}, nil
}

// Open acquires a transport handle and starts the read loop.
// The session also closes when ctx ends.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateOpening, StateOpen, StateClosing:
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	prev := s.done
	s.abort = false
	s.err = nil
	openCtx, cancel := context.WithCancel(ctx)
	s.cancelOpen = cancel
	s.setStateLocked(StateOpening)
	s.mu.Unlock()

	// the previous loop may still be publishing its final status
	<-prev

	s.opts.Board.Set(status.Connecting())

	port, err := s.opts.Opener.Open(openCtx, s.opts.Transport)

	s.mu.Lock()
	s.cancelOpen = nil
	s.mu.Unlock()
	cancel()

	if err != nil {
		return s.openFailed(ctx, err)
	}

	release := sync.OnceValue(port.Close)

	s.mu.Lock()
	if s.abort {
		s.setStateLocked(StateClosed)
		s.mu.Unlock()
		_ = release()
		s.opts.Board.Set(status.Disconnected())
		return fmt.Errorf("session: open: %w", transport.ErrClosed)
	}
	done := make(chan struct{})
	s.release = release
	s.done = done
	s.setStateLocked(StateOpen)
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	fr := framer.New(s.opts.Encoding, s.opts.MaxLine)

	s.met.SessionOpened()
	s.opts.Board.Set(status.Connected())
	s.log.Info("session open", "port", s.opts.Transport.Port, "address", s.opts.Transport.Address)

	go s.readLoop(port, fr, release, done, stop)
	return nil
}

func (s *Session) openFailed(ctx context.Context, err error) error {
	kind := transport.Classify(err)

	s.mu.Lock()
	aborted := s.abort
	if ctx.Err() != nil || aborted {
		s.setStateLocked(StateClosed)
	} else {
		s.err = err
		s.setStateLocked(StateErrored)
	}
	final := s.state
	s.mu.Unlock()

	if final == StateClosed {
		s.opts.Board.Set(status.Disconnected())
		if aborted {
			return fmt.Errorf("session: open: %w", transport.ErrClosed)
		}
		return fmt.Errorf("session: open: %w", err)
	}

	s.met.SessionEnded(kind)
	s.opts.Board.Set(status.FromError(err))
	s.log.Error("open failed", "kind", kind.String(), "err", err)
	return fmt.Errorf("session: open: %w", err)
}

// Close cancels the outstanding read, releases the handle and waits for
// the read loop to finish. Closing a closed session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	switch s.state {
	case StateOpening:
		// Open releases the handle when it returns
		s.abort = true
		cancel := s.cancelOpen
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return nil

	case StateOpen:
		s.setStateLocked(StateClosing)
		release, done := s.release, s.done
		s.mu.Unlock()

		s.opts.Board.Set(status.Closing())
		s.log.Info("closing session")
		err := release()
		<-done
		if err != nil {
			return fmt.Errorf("session: close: %w", err)
		}
		return nil

	case StateClosing:
		done := s.done
		s.mu.Unlock()
		<-done
		return nil

	default:
		s.mu.Unlock()
		return nil
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that ended the last session, or nil after an
// operator close. A clean end of stream reports io.EOF.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the current read loop has exited and its handle is released.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	s.met.StateChanged(st)
}

// ---- read loop ----

func (s *Session) readLoop(port transport.Port, fr *framer.Framer, release func() error, done chan struct{}, stop func() bool) {
	defer close(done)
	defer stop()

	var (
		buf     = make([]byte, s.opts.ReadBufferSize)
		started = time.Now()
		nbytes  uint64
		nlines  uint64
		dropped int
		err     error
	)

	for {
		var n int
		n, err = port.Read(buf)
		if n > 0 {
			nbytes += uint64(n)
			s.met.BytesRead(n)
			nlines += s.dispatch(fr.Feed(buf[:n]))

			if d := fr.Dropped(); d > dropped {
				s.met.LinesDropped(d - dropped)
				s.log.Warn("over-length line dropped", "count", d-dropped)
				dropped = d
			}
		}
		if err != nil {
			break
		}
	}

	kind := transport.Classify(err)

	// Only a clean end of stream may apply the trailing fragment;
	// otherwise it is discarded with the framer.
	if kind == transport.KindEOF && s.opts.FlushPartialOnEOF {
		if tail := fr.Flush(); strings.TrimSpace(tail) != "" {
			nlines += s.dispatch([]string{tail})
		}
	}

	if rerr := release(); rerr != nil {
		s.log.Debug("release failed", "err", rerr)
	}

	s.mu.Lock()
	switch {
	case s.state == StateClosing || kind == transport.KindClosed:
		kind = transport.KindClosed
		s.err = nil
		s.setStateLocked(StateClosed)
	case kind == transport.KindEOF:
		s.err = err
		s.setStateLocked(StateClosed)
	default:
		s.err = err
		s.setStateLocked(StateErrored)
	}
	final := s.state
	s.mu.Unlock()

	if s.opts.ResetOnDisconnect {
		s.opts.Store.Reset()
	}

	s.met.SessionEnded(kind)
	if final == StateErrored {
		s.opts.Board.Set(status.FromError(err))
		s.log.Error("read failed", "kind", kind.String(), "err", err)
	} else {
		s.opts.Board.Set(status.Disconnected())
	}

	s.log.Info("session closed",
		"state", final.String(),
		"lines", humanize.Comma(int64(nlines)),
		"bytes", humanize.Bytes(nbytes),
		"uptime", time.Since(started).Round(time.Millisecond).String(),
	)
}

// dispatch extracts and applies complete lines. Blank lines are skipped.
// Returns the number of lines applied.
func (s *Session) dispatch(lines []string) uint64 {
	var n uint64
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		u, errs := s.opts.Extractor.Extract(line)
		for _, err := range errs {
			var fe *extract.FieldError
			if errors.As(err, &fe) {
				s.met.FieldAnomaly(fe.Field)
			}
			s.log.Warn("field anomaly", "err", err, "line", line)
		}

		present := u.Present()
		for _, f := range present {
			s.met.FieldUpdated(f)
		}

		snap := s.opts.Store.Apply(u)
		s.met.LineApplied()
		n++

		s.log.Debug("line applied", "line", line, "fields", len(present), "actuator_on", snap.ActuatorOn)
	}
	return n
}
