// internal/writer/dispatch_test.go
package writer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tamzrod/serial-telemetry/internal/poller"
)

type scriptedWriter struct {
	name  string
	errs  []error
	calls int
}

func (w *scriptedWriter) Name() string { return w.name }

func (w *scriptedWriter) Write(poller.Frame) error {
	var err error
	if w.calls < len(w.errs) {
		err = w.errs[w.calls]
	}
	w.calls++
	return err
}

type countingObserver struct {
	ok, failed int
}

func (o *countingObserver) Published(_ string, err error) {
	if err != nil {
		o.failed++
		return
	}
	o.ok++
}

func TestDispatch_FailingWriterDoesNotBlockOthers(t *testing.T) {
	bad := &scriptedWriter{name: "bad", errs: []error{errors.New("down")}}
	good := &scriptedWriter{name: "good"}
	obs := &countingObserver{}

	d := NewDispatcher([]Writer{bad, good}, obs, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	d.Dispatch(poller.Frame{})

	if good.calls != 1 {
		t.Fatalf("good writer not called")
	}
	if obs.ok != 1 || obs.failed != 1 {
		t.Fatalf("observer ok=%d failed=%d", obs.ok, obs.failed)
	}
}

func TestDispatch_LogsRepeatedErrorOnce(t *testing.T) {
	var logs bytes.Buffer
	down := errors.New("connection refused")
	w := &scriptedWriter{name: "modbus_image", errs: []error{down, down, down, nil}}

	d := NewDispatcher([]Writer{w}, nil, slog.New(slog.NewTextHandler(&logs, nil)))
	for i := 0; i < 4; i++ {
		d.Dispatch(poller.Frame{DeviceID: "bed-1"})
	}

	if n := strings.Count(logs.String(), "write failed"); n != 1 {
		t.Fatalf("expected 1 failure log, got %d:\n%s", n, logs.String())
	}
	if !strings.Contains(logs.String(), "writer recovered") {
		t.Fatalf("recovery not logged:\n%s", logs.String())
	}
}

func TestRun_StopsOnClosedInput(t *testing.T) {
	w := &scriptedWriter{name: "w"}
	d := NewDispatcher([]Writer{w}, nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	in := make(chan poller.Frame, 2)
	in <- poller.Frame{}
	in <- poller.Frame{}
	close(in)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), in)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("run did not return")
	}
	if w.calls != 2 {
		t.Fatalf("calls=%d want=2", w.calls)
	}
}
