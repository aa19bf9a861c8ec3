package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "loadtest_telemetry"

// forwarderMetrics are the forwarder's own metrics.
// They are only exported when a registerer is configured.
type forwarderMetrics struct {
	recorded      prometheus.Counter
	sent          prometheus.Counter
	dropped       prometheus.Counter
	flushes       *prometheus.CounterVec
	flushDuration prometheus.Histogram
}

func newForwarderMetrics(registerer prometheus.Registerer) *forwarderMetrics {
	factory := promauto.With(registerer)

	return &forwarderMetrics{
		recorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "observations_recorded_total",
			Help:      "Number of observations recorded by the forwarder",
		}),
		sent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "observations_sent_total",
			Help:      "Number of observations delivered to the sink",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "observations_dropped_total",
			Help:      "Number of observations lost with failed batches",
		}),
		flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "flushes_total",
			Help:      "Number of batches sent to the sink by result",
		}, []string{"result"}),
		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "flush_duration_seconds",
			Help:      "Time taken to send a batch to the sink",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *forwarderMetrics) observeRecord() {
	m.recorded.Inc()
}

func (m *forwarderMetrics) observeFlush(size int, took time.Duration, err error) {
	m.flushDuration.Observe(took.Seconds())

	if err != nil {
		m.flushes.WithLabelValues("failure").Inc()
		m.dropped.Add(float64(size))
	} else {
		m.flushes.WithLabelValues("success").Inc()
		m.sent.Add(float64(size))
	}
}
