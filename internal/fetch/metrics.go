package fetch

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	bytes    prometheus.Counter
	failures prometheus.Counter
}

// NewMetrics creates the engine counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jrefetch",
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Transfers finished, partitioned by result.",
		}, []string{"result"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jrefetch",
			Subsystem: "fetch",
			Name:      "bytes_total",
			Help:      "Payload bytes received by successful transfers.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jrefetch",
			Subsystem: "fetch",
			Name:      "attempt_failures_total",
			Help:      "Transfer attempts that failed and were eligible for retry.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.bytes, m.failures} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register fetch metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(err error, n int64) {
	if m == nil {
		return
	}
	if err != nil {
		m.requests.WithLabelValues("error").Inc()
		return
	}
	m.requests.WithLabelValues("ok").Inc()
	m.bytes.Add(float64(n))
}

func (m *Metrics) attemptFailed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
