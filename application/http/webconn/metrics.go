package webconn

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors shared by connections.
// A nil *Metrics records nothing.
type Metrics struct {
	BytesSent     *prometheus.CounterVec
	BytesReceived *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	Failures      *prometheus.CounterVec
	Boundaries    *prometheus.CounterVec
}

// NewMetrics registers the collectors to reg, or to the default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "webconn"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		BytesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sent_bytes_total",
				Help:      "Bytes written to connections",
			},
			[]string{"op"},
		),
		BytesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "received_bytes_total",
				Help:      "Decoded bytes handed to body sinks",
			},
			[]string{"op"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of header and body operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Failed operations by kind",
			},
			[]string{"op", "kind"},
		),
		Boundaries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "boundaries_total",
				Help:      "Multipart boundaries reached",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) sent(op string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.BytesSent.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) received(op string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.BytesReceived.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) took(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) failed(op string, kind error) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(op, kindLabel(kind)).Inc()
}

func (m *Metrics) reached(b Boundary) {
	if m == nil || b == NoBoundary {
		return
	}
	m.Boundaries.WithLabelValues(b.String()).Inc()
}
