// Package metrics instruments package-manager executions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records engine activity.
type Metrics interface {
	ObserveExecution(op, status string, durationSeconds float64)
	IncRejected(op, reason string)
	IncParseFailure(op, stage string)
	SetInFlight(n int)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) ObserveExecution(string, string, float64) {}
func (Noop) IncRejected(string, string)               {}
func (Noop) IncParseFailure(string, string)           {}
func (Noop) SetInFlight(int)                          {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	executions    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	rejected      *prometheus.CounterVec
	parseFailures *prometheus.CounterVec
	inFlight      prometheus.Gauge
}

// NewProm registers the collectors with reg, or with the default
// registerer when reg is nil.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prom{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Package manager executions by operation and status",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Package manager execution latency by operation",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"operation"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Arguments rejected before execution by operation and reason",
		}, []string{"operation", "reason"}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Output that could not be parsed by operation and stage",
		}, []string{"operation", "stage"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_in_flight",
			Help:      "Package manager processes currently running",
		}),
	}
	reg.MustRegister(p.executions, p.duration, p.rejected, p.parseFailures, p.inFlight)
	return p
}

func (p *Prom) ObserveExecution(op, status string, durationSeconds float64) {
	p.executions.WithLabelValues(op, status).Inc()
	p.duration.WithLabelValues(op).Observe(durationSeconds)
}

func (p *Prom) IncRejected(op, reason string) {
	p.rejected.WithLabelValues(op, reason).Inc()
}

func (p *Prom) IncParseFailure(op, stage string) {
	p.parseFailures.WithLabelValues(op, stage).Inc()
}

func (p *Prom) SetInFlight(n int) {
	p.inFlight.Set(float64(n))
}

// Handler returns an HTTP handler for /metrics served from g, or from the
// default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
