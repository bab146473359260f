// Package metrics exposes Prometheus instruments for model calls, enrichment
// runs, chat turns and the HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	// Model call latency per operation (complete, complete_json) and outcome.
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_llm_call_duration_seconds",
			Help:    "Model call latency in seconds, retries included",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"operation", "status"},
	)

	LLMRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_llm_retries_total",
			Help: "Retried model call attempts",
		},
		[]string{"operation"},
	)

	EnrichmentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_enrichment_runs_total",
			Help: "Enrichment runs by outcome (committed, failed, busy)",
		},
		[]string{"outcome"},
	)

	EnrichmentRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inbox_enrichment_run_duration_seconds",
			Help:    "Duration of committed enrichment runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17m
		},
	)

	EmailsEnriched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_emails_enriched_total",
			Help: "Committed enriched emails by category",
		},
		[]string{"category"},
	)

	AgentTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_agent_turns_total",
			Help: "Agent turns by outcome",
		},
		[]string{"status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
		},
		[]string{"method", "route", "status"},
	)
)

func RecordLLMCall(operation, status string, d time.Duration) {
	LLMCallDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

func IncrementLLMRetry(operation string) {
	LLMRetries.WithLabelValues(operation).Inc()
}

func IncrementEnrichmentRun(outcome string) {
	EnrichmentRuns.WithLabelValues(outcome).Inc()
}

func RecordEnrichmentRun(d time.Duration) {
	EnrichmentRunDuration.Observe(d.Seconds())
}

func IncrementEmailEnriched(category string) {
	EmailsEnriched.WithLabelValues(category).Inc()
}

func IncrementAgentTurn(status string) {
	AgentTurns.WithLabelValues(status).Inc()
}

func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
