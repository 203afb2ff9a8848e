package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docqa"

// Metrics holds the service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Uploads          *prometheus.CounterVec
	Questions        *prometheus.CounterVec
	EmbeddingBatches prometheus.Counter
	ChunksIndexed    prometheus.Counter
	LiveSessions     prometheus.Gauge
	Evictions        *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Document uploads by outcome.",
		}, []string{"result"}),
		Questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions answered by outcome.",
		}, []string{"result"}),
		EmbeddingBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_batches_total",
			Help:      "Embedding requests sent while indexing.",
		}),
		ChunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks embedded into session indexes.",
		}),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Sessions dropped from memory by reason.",
		}, []string{"reason"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Uploads,
		m.Questions,
		m.EmbeddingBatches,
		m.ChunksIndexed,
		m.LiveSessions,
		m.Evictions,
		m.RequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Result labels
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Eviction reasons
const (
	ReasonExpired  = "expired"
	ReasonCapacity = "capacity"
	ReasonDeleted  = "deleted"
)

// Outcome returns the result label for err
func Outcome(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
