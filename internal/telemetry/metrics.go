package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
)

// Metrics holds the Prometheus collectors for facade operations.
type Metrics struct {
	Operations      *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	CachedEntities  prometheus.Gauge
	PersistFailures prometheus.Counter
}

// NewMetrics registers a fresh collector set with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dnasigil_operations_total",
			Help: "Facade operations by operation and outcome",
		}, []string{"op", "outcome"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dnasigil_operation_duration_seconds",
			Help:    "Facade operation latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),
		CachedEntities: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dnasigil_cached_entities",
			Help: "Encoded entities currently held in the facade cache",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dnasigil_persistence_failures_total",
			Help: "Writes that failed after an engine operation succeeded",
		}),
	}
}

// WriteTextfile dumps everything g gathers to path in the Prometheus text
// format. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// Observe records one finished operation.
func (m *Metrics) Observe(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.Duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) SetCached(n int) {
	if m == nil {
		return
	}
	m.CachedEntities.Set(float64(n))
}
