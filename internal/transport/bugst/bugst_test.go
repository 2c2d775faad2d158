// internal/transport/bugst/bugst_test.go
package bugst

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/tamzrod/serial-telemetry/internal/transport"
)

// ---- fake serial port ----

// fakeSerial implements the subset of serial.Port the driver uses.
// Unused methods fall through to the nil embedded interface.
type fakeSerial struct {
	serial.Port

	mu      sync.Mutex
	reads   []readResult
	closed  chan struct{}
	closes  int
	timeout time.Duration
}

type readResult struct {
	data string
	err  error
}

func newFakeSerial(reads ...readResult) *fakeSerial {
	return &fakeSerial{reads: reads, closed: make(chan struct{})}
}

func (f *fakeSerial) Read(b []byte) (int, error) {
	f.mu.Lock()
	if len(f.reads) > 0 {
		r := f.reads[0]
		f.reads = f.reads[1:]
		f.mu.Unlock()
		return copy(b, r.data), r.err
	}
	f.mu.Unlock()

	// block until closed, like a quiet line
	<-f.closed
	return 0, &serial.PortError{}
}

func (f *fakeSerial) SetReadTimeout(t time.Duration) error {
	f.timeout = t
	return nil
}

func (f *fakeSerial) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closes == 1 {
		close(f.closed)
	}
	return nil
}

func testOpener(details []*enumerator.PortDetails, fs *fakeSerial, openErr error) (*Opener, *string) {
	var opened string
	return &Opener{
		list: func() ([]*enumerator.PortDetails, error) { return details, nil },
		open: func(name string, mode *serial.Mode) (serial.Port, error) {
			opened = name
			if openErr != nil {
				return nil, openErr
			}
			return fs, nil
		},
	}, &opened
}

// ---- discovery ----

func TestOpen_DiscoversSingleAllowedVendor(t *testing.T) {
	details := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0", IsUSB: false},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341"},
	}
	o, opened := testOpener(details, newFakeSerial(), nil)

	p, err := o.Open(context.Background(), transport.Config{
		BaudRate:  115200,
		VendorIDs: []string{"2341", "1a86"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer p.Close()

	if *opened != "/dev/ttyACM0" {
		t.Fatalf("opened %q", *opened)
	}
}

func TestOpen_VendorMatchIsCaseInsensitive(t *testing.T) {
	details := []*enumerator.PortDetails{{Name: "/dev/ttyUSB3", IsUSB: true, VID: "1a86"}}
	o, opened := testOpener(details, newFakeSerial(), nil)

	if _, err := o.Open(context.Background(), transport.Config{VendorIDs: []string{"1A86"}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if *opened != "/dev/ttyUSB3" {
		t.Fatalf("opened %q", *opened)
	}
}

func TestOpen_NoCandidate(t *testing.T) {
	o, _ := testOpener(nil, newFakeSerial(), nil)

	_, err := o.Open(context.Background(), transport.Config{VendorIDs: []string{"2341"}})
	if transport.Classify(err) != transport.KindNoDevice {
		t.Fatalf("expected no-device, got %v", err)
	}
}

func TestOpen_SeveralCandidatesNeedExplicitPort(t *testing.T) {
	details := []*enumerator.PortDetails{
		{Name: "/dev/ttyACM1", IsUSB: true, VID: "2341"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341"},
	}
	o, _ := testOpener(details, newFakeSerial(), nil)

	_, err := o.Open(context.Background(), transport.Config{VendorIDs: []string{"2341"}})
	if !errors.Is(err, transport.ErrNoDevice) {
		t.Fatalf("expected no-device, got %v", err)
	}
}

func TestOpen_ExplicitPortSkipsDiscovery(t *testing.T) {
	fs := newFakeSerial()
	o := &Opener{
		list: func() ([]*enumerator.PortDetails, error) {
			t.Fatalf("discovery must not run")
			return nil, nil
		},
		open: func(name string, mode *serial.Mode) (serial.Port, error) {
			if name != "COM7" || mode.BaudRate != 9600 || mode.DataBits != 8 {
				t.Fatalf("unexpected open %q %+v", name, mode)
			}
			return fs, nil
		},
	}

	p, err := o.Open(context.Background(), transport.Config{Port: "COM7", BaudRate: 9600, ReadTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer p.Close()

	if fs.timeout != 50*time.Millisecond {
		t.Fatalf("read timeout not applied: %v", fs.timeout)
	}
}

// ---- open errors ----

func TestOpen_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want transport.Kind
	}{
		{"raw enoent", syscall.ENOENT, transport.KindNoDevice},
		{"generic", errors.New("weird"), transport.KindIO},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, _ := testOpener(nil, nil, tc.err)
			_, err := o.Open(context.Background(), transport.Config{Port: "/dev/ttyACM0"})
			if got := transport.Classify(err); got != tc.want {
				t.Fatalf("kind=%v want=%v (%v)", got, tc.want, err)
			}
		})
	}
}

func TestOpen_CanceledContext(t *testing.T) {
	o, _ := testOpener(nil, newFakeSerial(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := o.Open(ctx, transport.Config{Port: "/dev/ttyACM0"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

// ---- port ----

func TestPort_ReadSkipsTimeoutsAndReturnsData(t *testing.T) {
	fs := newFakeSerial(
		readResult{data: ""},
		readResult{data: ""},
		readResult{data: "Pot: 1\n"},
	)
	p := &port{p: fs, name: "x"}

	buf := make([]byte, 64)
	n, err := p.Read(buf)
	if err != nil || string(buf[:n]) != "Pot: 1\n" {
		t.Fatalf("n=%d err=%v data=%q", n, err, buf[:n])
	}
}

func TestPort_UnplugIsDeviceRemoved(t *testing.T) {
	fs := newFakeSerial(readResult{err: &serial.PortError{}})
	p := &port{p: fs, name: "x"}

	_, err := p.Read(make([]byte, 8))
	// zero-value PortError code is PortBusy; only PortClosed is removal
	if transport.Classify(err) == transport.KindDeviceRemoved {
		t.Fatalf("busy code must not read as removal: %v", err)
	}

	fs = newFakeSerial(readResult{err: syscall.EIO})
	p = &port{p: fs, name: "x"}
	_, err = p.Read(make([]byte, 8))
	if transport.Classify(err) != transport.KindDeviceRemoved {
		t.Fatalf("EIO should read as removal: %v", err)
	}
}

func TestPort_CloseUnblocksReadAsClosed(t *testing.T) {
	fs := newFakeSerial()
	p := &port{p: fs, name: "x"}

	done := make(chan error, 1)
	go func() {
		_, err := p.Read(make([]byte, 8))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, transport.ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("read not unblocked by close")
	}
}

func TestPort_CloseIsIdempotent(t *testing.T) {
	fs := newFakeSerial()
	p := &port{p: fs, name: "x"}

	_ = p.Close()
	_ = p.Close()
	_ = p.Close()

	if fs.closes != 1 {
		t.Fatalf("underlying close called %d times", fs.closes)
	}
	if _, err := p.Read(make([]byte, 1)); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("read after close: %v", err)
	}
}
