// internal/writer/mqtt/mqtt.go
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"

	"github.com/tamzrod/serial-telemetry/internal/poller"
	"github.com/tamzrod/serial-telemetry/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrNotConnected = errors.New("mqtt: client not connected")

const defaultPublishTimeout = 5 * time.Second

type Config struct {
	Broker      string
	Port        int
	ClientID    string
	TopicPrefix string
	DeviceID    string
	QoS         byte
	Retained    bool

	PublishTimeout time.Duration
}

// Publisher mirrors frames to a broker:
//
//	<prefix>/<device>/telemetry  on every new snapshot
//	<prefix>/<device>/status     retained, on every status change
type Publisher struct {
	client paho.Client
	cfg    Config
	log    *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	// set by the connect handler; the next Write re-asserts the retained status
	resend atomic.Bool

	sentAt     time.Time
	sentStatus string
}

// TelemetryPayload is the body of the telemetry topic.
type TelemetryPayload struct {
	DeviceID string    `json:"device_id"`
	At       time.Time `json:"at"`
	telemetry.Snapshot
}

// StatusPayload is the body of the retained status topic.
type StatusPayload struct {
	DeviceID  string    `json:"device_id"`
	Connected bool      `json:"connected"`
	State     string    `json:"state"`
	Text      string    `json:"text"`
	Since     time.Time `json:"since"`
}

func New(cfg Config, log *slog.Logger) *Publisher {
	p := newPublisher(cfg, log)

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// broker announces us offline if the process dies
	if will, err := json.Marshal(StatusPayload{DeviceID: cfg.DeviceID, State: "offline", Text: "Offline"}); err == nil {
		opts.SetBinaryWill(p.statusTopic(), will, cfg.QoS, true)
	}

	opts.SetOnConnectHandler(func(_ paho.Client) {
		p.setConnected(true)
		p.resend.Store(true)
		p.log.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.setConnected(false)
		p.log.Warn("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	return p
}

func newPublisher(cfg Config, log *slog.Logger) *Publisher {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		cfg:    cfg,
		log:    log.With("component", "mqtt"),
		stopCh: make(chan struct{}),
	}
}

func (p *Publisher) Name() string { return "mqtt" }

func (p *Publisher) telemetryTopic() string {
	return fmt.Sprintf("%s/%s/telemetry", p.cfg.TopicPrefix, p.cfg.DeviceID)
}

func (p *Publisher) statusTopic() string {
	return fmt.Sprintf("%s/%s/status", p.cfg.TopicPrefix, p.cfg.DeviceID)
}

// Connect establishes connection to the MQTT broker.
// It waits for the initial connection, and respects ctx and Close().
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("mqtt: publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	// With ConnectRetry(true), paho may keep retrying internally.
	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return fmt.Errorf("mqtt: publisher stopped")
		default:
		}
	}
}

// Write publishes the status on change and the snapshot when it carries a new update.
func (p *Publisher) Write(f poller.Frame) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	if p.resend.Swap(false) {
		p.sentStatus = ""
	}

	key := f.Status.Code.String() + "|" + f.Status.Text
	if key != p.sentStatus {
		body, err := json.Marshal(StatusPayload{
			DeviceID:  f.DeviceID,
			Connected: f.Connected(),
			State:     f.Status.Code.String(),
			Text:      f.Status.Text,
			Since:     f.Status.Since,
		})
		if err != nil {
			return fmt.Errorf("mqtt: marshal status: %w", err)
		}
		if err := p.publish(p.statusTopic(), true, body); err != nil {
			return err
		}
		p.sentStatus = key
	}

	if f.Snapshot.UpdatedAt.IsZero() || f.Snapshot.UpdatedAt.Equal(p.sentAt) {
		return nil
	}

	body, err := json.Marshal(TelemetryPayload{
		DeviceID: f.DeviceID,
		At:       f.At,
		Snapshot: f.Snapshot,
	})
	if err != nil {
		return fmt.Errorf("mqtt: marshal telemetry: %w", err)
	}
	if err := p.publish(p.telemetryTopic(), p.cfg.Retained, body); err != nil {
		return err
	}
	p.sentAt = f.Snapshot.UpdatedAt

	p.log.Debug("published telemetry", "topic", p.telemetryTopic())
	return nil
}

func (p *Publisher) publish(topic string, retained bool, body []byte) error {
	token := p.client.Publish(topic, p.cfg.QoS, retained, body)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		return fmt.Errorf("mqtt: publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Close stops the publisher and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (p *Publisher) Close() error {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		// paho quiesces in-flight work for the given ms
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.log.Info("mqtt disconnected")
	return nil
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
