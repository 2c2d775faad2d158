// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/serial-telemetry/internal/session"
	"github.com/tamzrod/serial-telemetry/internal/telemetry"
	"github.com/tamzrod/serial-telemetry/internal/transport"
)

const namespace = "telemetry"

// Prom implements session.Metrics and the writer publish hook on a
// private registry.
type Prom struct {
	reg *prometheus.Registry

	bytesRead     prometheus.Counter
	linesApplied  prometheus.Counter
	linesDropped  prometheus.Counter
	fieldUpdates  *prometheus.CounterVec
	fieldAnomaly  *prometheus.CounterVec
	sessionsOpen  prometheus.Counter
	sessionsEnded *prometheus.CounterVec
	state         prometheus.Gauge
	publishes     *prometheus.CounterVec
}

var _ session.Metrics = (*Prom)(nil)

func New() *Prom {
	p := &Prom{
		reg: prometheus.NewRegistry(),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Bytes read from the device transport.",
		}),
		linesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_applied_total",
			Help:      "Non-blank lines applied to the snapshot store.",
		}),
		linesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_dropped_total",
			Help:      "Over-length lines discarded by the framer.",
		}),
		fieldUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_updates_total",
			Help:      "Field values extracted from device lines.",
		}, []string{"field"}),
		fieldAnomaly: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_anomalies_total",
			Help:      "Labelled fields whose value could not be parsed.",
		}, []string{"field"}),
		sessionsOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Transport handles successfully opened.",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions ended or failed to open, by failure kind.",
		}, []string{"kind"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Session lifecycle state (0 closed, 1 opening, 2 open, 3 closing, 4 errored).",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Presentation writes by writer and result.",
		}, []string{"writer", "result"}),
	}

	p.reg.MustRegister(
		p.bytesRead,
		p.linesApplied,
		p.linesDropped,
		p.fieldUpdates,
		p.fieldAnomaly,
		p.sessionsOpen,
		p.sessionsEnded,
		p.state,
		p.publishes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry exposes the private registry for tests and extra collectors.
func (p *Prom) Registry() *prometheus.Registry { return p.reg }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}

// ---- session.Metrics ----

func (p *Prom) BytesRead(n int)    { p.bytesRead.Add(float64(n)) }
func (p *Prom) LineApplied()       { p.linesApplied.Inc() }
func (p *Prom) LinesDropped(n int) { p.linesDropped.Add(float64(n)) }
func (p *Prom) SessionOpened()     { p.sessionsOpen.Inc() }

func (p *Prom) FieldUpdated(f telemetry.Field) {
	p.fieldUpdates.WithLabelValues(f.String()).Inc()
}

func (p *Prom) FieldAnomaly(f telemetry.Field) {
	p.fieldAnomaly.WithLabelValues(f.String()).Inc()
}

func (p *Prom) SessionEnded(kind transport.Kind) {
	p.sessionsEnded.WithLabelValues(kind.String()).Inc()
}

func (p *Prom) StateChanged(s session.State) {
	p.state.Set(float64(s))
}

// ---- writers ----

// Published counts one presentation write.
func (p *Prom) Published(writer string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.publishes.WithLabelValues(writer, result).Inc()
}
