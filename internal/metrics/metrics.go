package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline activity. Label values are kept low-cardinality:
// no api ids or urls.
type Collector interface {
	ProbeCompleted(status string, latencyMS int64)
	HealthCheckRun(outcome string)
	EventPublished(topic, outcome string)
	HistoryRecorded(kind, outcome string)
	CacheLookup(query, result string)

	// Handler serves the /metrics endpoint.
	Handler() http.Handler
}

type PrometheusCollector struct {
	reg *prometheus.Registry

	probes       *prometheus.CounterVec
	probeLatency prometheus.Histogram
	runs         *prometheus.CounterVec
	published    *prometheus.CounterVec
	history      *prometheus.CounterVec
	cache        *prometheus.CounterVec
}

// NewPrometheusCollector registers on its own registry so several collectors
// can coexist (tests, multiple servers in one process).
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &PrometheusCollector{
		reg: reg,
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apiwatcher_probes_total",
			Help: "Probes executed, by derived health status",
		}, []string{"status"}),
		probeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "apiwatcher_probe_latency_ms",
			Help:    "Latency of probes that received a response",
			Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apiwatcher_health_check_runs_total",
			Help: "Scheduled or manual health-check runs",
		}, []string{"outcome"}),
		published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apiwatcher_events_published_total",
			Help: "Domain events handed to the broker, by completion outcome",
		}, []string{"topic", "outcome"}),
		history: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apiwatcher_history_records_total",
			Help: "History records written by the consumer",
		}, []string{"kind", "outcome"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "apiwatcher_registry_cache_total",
			Help: "Registry cache lookups by query shape",
		}, []string{"query", "result"}),
	}
}

func (c *PrometheusCollector) ProbeCompleted(status string, latencyMS int64) {
	c.probes.WithLabelValues(status).Inc()
	if latencyMS > 0 {
		c.probeLatency.Observe(float64(latencyMS))
	}
}

func (c *PrometheusCollector) HealthCheckRun(outcome string) {
	c.runs.WithLabelValues(outcome).Inc()
}

func (c *PrometheusCollector) EventPublished(topic, outcome string) {
	c.published.WithLabelValues(topic, outcome).Inc()
}

func (c *PrometheusCollector) HistoryRecorded(kind, outcome string) {
	c.history.WithLabelValues(kind, outcome).Inc()
}

func (c *PrometheusCollector) CacheLookup(query, result string) {
	c.cache.WithLabelValues(query, result).Inc()
}

func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ProbeCompleted(string, int64) {}
func (Nop) HealthCheckRun(string) {}
func (Nop) EventPublished(string, string) {}
func (Nop) HistoryRecorded(string, string) {}
func (Nop) CacheLookup(string, string) {}
func (Nop) Handler() http.Handler { return http.NotFoundHandler() }

var (
	_ Collector = (*PrometheusCollector)(nil)
	_ Collector = Nop{}
)
