// cmd/telemetryd/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tamzrod/serial-telemetry/internal/config"
	"github.com/tamzrod/serial-telemetry/internal/logging"
	"github.com/tamzrod/serial-telemetry/internal/metrics"
	"github.com/tamzrod/serial-telemetry/internal/poller"
	"github.com/tamzrod/serial-telemetry/internal/session"
	"github.com/tamzrod/serial-telemetry/internal/status"
	"github.com/tamzrod/serial-telemetry/internal/telemetry"
	"github.com/tamzrod/serial-telemetry/internal/transport/bugst"
	"github.com/tamzrod/serial-telemetry/internal/writer"
)

// set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	driver     string
	port       string
	address    string
	logLevel   string
	listPorts  bool
	version    bool
}

func run(args []string) error {
	var f flags

	fs := pflag.NewFlagSet("telemetryd", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "path to YAML config (defaults apply when empty)")
	fs.StringVar(&f.driver, "driver", "", "transport driver: serial, rawserial or telnet")
	fs.StringVarP(&f.port, "port", "p", "", "serial port (empty: discover by USB vendor id)")
	fs.StringVar(&f.address, "address", "", "host:port of a telnet serial bridge")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&f.listPorts, "list-ports", false, "list serial ports and exit")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if f.version {
		fmt.Println("telemetryd", version)
		return nil
	}
	if f.listPorts {
		return listPorts(os.Stdout)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := loadConfig(f, fs)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log, os.Stderr, version)
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	log = log.With("device", cfg.Device.ID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Build pipeline
	// --------------------

	store := telemetry.NewStore()
	board := status.NewBoard(log)
	met := metrics.New()

	sess, err := session.Build(cfg, store, board, met, log)
	if err != nil {
		return err
	}

	p, err := poller.Build(cfg, store, board)
	if err != nil {
		return err
	}

	writers, closeWriters, err := writer.Build(ctx, cfg, os.Stdout, log)
	if err != nil {
		return err
	}
	defer closeWriters()

	dispatcher := writer.NewDispatcher(writers, met, log)

	var wg sync.WaitGroup

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(met),
			ReadHeaderTimeout: 5 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveMetrics(ctx, srv, log)
		}()
	}

	// ---- poller -> writers ----
	frames := make(chan poller.Frame)
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.Run(ctx, frames)
	}()
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx, frames)
	}()

	log.Info("telemetryd started",
		"version", version,
		"driver", cfg.Device.Driver,
		"port", cfg.Device.Port,
		"interval", cfg.Presentation.Interval().String(),
	)

	// ---- session (blocks until shutdown) ----
	err = session.Run(ctx, sess, cfg.Session.ReconnectInterval())
	stop()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("telemetryd stopped")
	return nil
}

func loadConfig(f flags, fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	// flags win over file and environment
	if fs.Changed("driver") {
		cfg.Device.Driver = strings.ToLower(f.driver)
	}
	if fs.Changed("port") {
		cfg.Device.Port = f.port
	}
	if fs.Changed("address") {
		cfg.Device.Address = f.address
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

func metricsMux(met *metrics.Prom) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func serveMetrics(ctx context.Context, srv *http.Server, log *slog.Logger) {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("metrics listening", "addr", srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "err", err)
		}
	}
}

func listPorts(w io.Writer) error {
	ports, err := bugst.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		if !p.USB {
			fmt.Fprintf(w, "%s\n", p.Name)
			continue
		}
		fmt.Fprintf(w, "%s\tusb vid=%s pid=%s serial=%s %s\n", p.Name, p.VID, p.PID, p.Serial, p.Product)
	}
	return nil
}
