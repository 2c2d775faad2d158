// internal/session/builder_test.go
package session

import (
	"context"
	"testing"

	cfg "github.com/tamzrod/serial-telemetry/internal/config"
	"github.com/tamzrod/serial-telemetry/internal/status"
	"github.com/tamzrod/serial-telemetry/internal/telemetry"
	"github.com/tamzrod/serial-telemetry/internal/transport"
)

func TestOpeners_CoverEveryDriver(t *testing.T) {
	o := Openers()
	for _, d := range []string{cfg.DriverSerial, cfg.DriverRawSerial, cfg.DriverTelnet} {
		if o[d] == nil {
			t.Fatalf("no opener for driver %q", d)
		}
	}
}

func TestBuild_WiresTransportConfig(t *testing.T) {
	c := cfg.Default()
	c.Device.Port = "/dev/ttyACM1"
	c.Device.BaudRate = 57600
	c.Device.Encoding = "latin1"
	c.Device.ReadTimeoutMs = 250

	var got transport.Config
	port := newFakePort()
	openers := map[string]transport.Opener{
		cfg.DriverSerial: transport.OpenerFunc(func(ctx context.Context, tc transport.Config) (transport.Port, error) {
			got = tc
			return port, nil
		}),
	}

	store := telemetry.NewStore()
	s, err := buildWith(openers, c, store, status.NewBoard(quietLogger()), nil, quietLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if got.Port != "/dev/ttyACM1" || got.BaudRate != 57600 || got.ReadTimeout.Milliseconds() != 250 {
		t.Fatalf("transport config: %+v", got)
	}
	if len(got.VendorIDs) != len(cfg.DefaultVendorIDs) {
		t.Fatalf("vendor ids: %v", got.VendorIDs)
	}

	// latin-1 degree sign decodes to U+00B0
	port.send("Temp: 21.5\xb0C\n")
	eventually(t, func() bool { return store.ReadAll().Temperature == 21.5 }, "latin-1 line")
}

func TestBuild_UnknownDriver(t *testing.T) {
	c := cfg.Default()
	c.Device.Driver = "carrier-pigeon"

	if _, err := Build(c, telemetry.NewStore(), nil, nil, quietLogger()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBuild_UnknownEncoding(t *testing.T) {
	c := cfg.Default()
	c.Device.Encoding = "ebcdic"

	if _, err := Build(c, telemetry.NewStore(), nil, nil, quietLogger()); err == nil {
		t.Fatalf("expected error")
	}
}
