// Package metrics exposes Prometheus instrumentation for the triage pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecordsTotal counts classified records by outcome (skipped, clean, flagged).
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectriage_records_total",
			Help: "Total number of records processed, by outcome",
		},
		[]string{"outcome"},
	)

	// FindingsTotal counts findings by the base tier of their event id.
	FindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectriage_findings_total",
			Help: "Total number of suspicious findings, by base risk tier",
		},
		[]string{"tier"},
	)

	FindingScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sectriage_finding_score",
			Help:    "Distribution of suspicious scores",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	OutputErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectriage_output_errors_total",
			Help: "Total number of failed output writes, by output",
		},
		[]string{"output"},
	)

	// OutputDropped counts findings discarded by a full drop-on-full buffer.
	OutputDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectriage_output_dropped_total",
			Help: "Total number of findings dropped by full async buffers, by output",
		},
		[]string{"output"},
	)

	ConnectorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectriage_connector_events_total",
			Help: "Total number of raw events read, by connector",
		},
		[]string{"connector"},
	)
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
