package pgasync

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the collectors shared by every Conn registered on the same
// Registerer. A nil *metrics records nothing.
type metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queued     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}

	operations, err := registerCollector(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgasync_operations_total",
			Help: "Total number of operations executed by outcome",
		},
		[]string{"operation", "outcome"},
	))
	if err != nil {
		return nil, err
	}
	duration, err := registerCollector(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgasync_operation_duration_seconds",
			Help:    "Time spent executing an operation on the driver",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	))
	if err != nil {
		return nil, err
	}
	queued, err := registerCollector(reg, prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgasync_queued_operations",
			Help: "Operations waiting for their connection",
		},
	))
	if err != nil {
		return nil, err
	}

	return &metrics{operations: operations, duration: duration, queued: queued}, nil
}

// registerCollector registers c, reusing an identical collector that is
// already registered.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) enqueued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

func (m *metrics) dequeued(n int) {
	if m == nil {
		return
	}
	m.queued.Sub(float64(n))
}

func (m *metrics) observe(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = ClassifyError(err).String()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	if elapsed > 0 {
		m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
}
