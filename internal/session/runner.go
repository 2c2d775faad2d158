// internal/session/runner.go
package session

import (
	"context"
	"errors"
	"time"

	"github.com/tamzrod/serial-telemetry/internal/transport"
)

// Run keeps s open until ctx ends.
//
// After a failed open, a read failure or a clean end of stream it waits
// retry and opens again. An operator Close ends Run with nil. With
// retry <= 0 Run returns the error that ended the first session.
func Run(ctx context.Context, s *Session, retry time.Duration) error {
	for {
		err := s.Open(ctx)
		if err == nil {
			select {
			case <-ctx.Done():
				_ = s.Close()
				return ctx.Err()
			case <-s.Done():
			}

			err = s.Err()
			if err == nil && s.State() == StateClosed {
				return nil
			}
		} else if errors.Is(err, transport.ErrClosed) {
			// closed while opening
			return nil
		}

		if ctx.Err() != nil {
			_ = s.Close()
			return ctx.Err()
		}
		if retry <= 0 {
			return err
		}

		s.log.Info("reopening session", "in", retry.String(), "last_err", err)
		if !sleepWithContext(ctx, retry) {
			return ctx.Err()
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
