// Package metrics holds the Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for IngestRuns.
const (
	OutcomeOK        = "ok"
	OutcomeForbidden = "forbidden"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// Metrics is a private registry with the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	IngestRuns     *prometheus.CounterVec
	IngestDuration prometheus.Histogram
	LinksCreated   prometheus.Counter
	TagsDegraded   prometheus.Counter
	QueueDropped   prometheus.Counter
}

// New creates and registers every collector, plus the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_ingest_runs_total",
			Help: "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mnemo_ingest_duration_seconds",
			Help:    "Wall time of successful ingestion runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		LinksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mnemo_ingest_links_total",
			Help: "Similarity edges written by ingestion.",
		}),
		TagsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mnemo_ingest_tags_degraded_total",
			Help: "Runs whose tag output could not be parsed.",
		}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mnemo_ingest_queue_dropped_total",
			Help: "Background ingestion jobs rejected because the queue was full.",
		}),
	}
	m.registry.MustRegister(
		m.IngestRuns,
		m.IngestDuration,
		m.LinksCreated,
		m.TagsDegraded,
		m.QueueDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
