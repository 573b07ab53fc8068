package inference

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator collectors
type Metrics struct {
	Calls       *prometheus.CounterVec
	CacheHits   *prometheus.CounterVec
	Throttles   prometheus.Counter
	Latency     prometheus.Histogram
	CircuitOpen prometheus.Gauge
}

// NewMetrics registers the orchestrator collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entail_inference_calls_total",
			Help: "External inference calls by kind and final status",
		}, []string{"kind", "status"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entail_inference_cache_hits_total",
			Help: "Inference requests served from cache",
		}, []string{"kind"}),
		Throttles: factory.NewCounter(prometheus.CounterOpts{
			Name: "entail_inference_throttles_total",
			Help: "Throttled provider responses, including per-call timeouts",
		}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "entail_inference_latency_seconds",
			Help:    "Latency of external inference calls including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		CircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "entail_circuit_open",
			Help: "1 while the inference circuit breaker is open or half-open",
		}),
	}
}

func (m *Metrics) recordCall(kind, status string, seconds float64) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(kind, status).Inc()
	m.Latency.Observe(seconds)
}

func (m *Metrics) recordCacheHit(kind string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordThrottle() {
	if m == nil {
		return
	}
	m.Throttles.Inc()
}

func (m *Metrics) setCircuit(state string) {
	if m == nil {
		return
	}
	if state == CircuitClosed {
		m.CircuitOpen.Set(0)
		return
	}
	m.CircuitOpen.Set(1)
}
