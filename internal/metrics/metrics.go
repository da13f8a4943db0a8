// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperFetchesTotal        *prometheus.CounterVec
	scraperFetchRetriesTotal   *prometheus.CounterVec
	scraperCandidatesTotal     *prometheus.CounterVec
	scraperParseFailuresTotal  *prometheus.CounterVec
	scraperRejectionsTotal     *prometheus.CounterVec
	scraperWritesTotal         *prometheus.CounterVec
	scraperRunsTotal           *prometheus.CounterVec
	scraperRunDurationSeconds  prometheus.Histogram
	scraperInFlightFetches     prometheus.Gauge
	scraperFetchDurationSecond *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		scraperFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetches_total",
				Help: "Total HTTP fetches, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		scraperFetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetch_retries_total",
				Help: "Total fetch retries, labeled by source.",
			},
			[]string{"source"},
		)

		scraperCandidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_candidates_total",
				Help: "Candidates emitted by adapters, labeled by source.",
			},
			[]string{"source"},
		)

		scraperParseFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_parse_failures_total",
				Help: "Fetched postings that could not be parsed, labeled by source.",
			},
			[]string{"source"},
		)

		scraperRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_rejections_total",
				Help: "Candidates rejected by validation, labeled by source and reason.",
			},
			[]string{"source", "reason"},
		)

		scraperWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_writes_total",
				Help: "Store writes, labeled by source and result (inserted/updated/unchanged/failed).",
			},
			[]string{"source", "result"},
		)

		scraperRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_runs_total",
				Help: "Completed ingestion runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scraperRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_run_duration_seconds",
				Help:    "Histogram of full run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		scraperInFlightFetches = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_in_flight_fetches",
				Help: "Number of HTTP fetches currently in flight.",
			},
		)

		scraperFetchDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_duration_seconds",
				Help:    "Histogram of single fetch latencies, labeled by source.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one finished fetch attempt chain.
func ObserveFetch(source string, outcome string, duration time.Duration) {
	scraperFetchesTotal.WithLabelValues(source, outcome).Inc()
	scraperFetchDurationSecond.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveFetchRetry counts one retry for the source.
func ObserveFetchRetry(source string) {
	scraperFetchRetriesTotal.WithLabelValues(source).Inc()
}

// ObserveCandidate counts one candidate emitted by an adapter.
func ObserveCandidate(source string) {
	scraperCandidatesTotal.WithLabelValues(source).Inc()
}

// ObserveParseFailure counts one posting skipped as unparseable.
func ObserveParseFailure(source string) {
	scraperParseFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveRejection counts one validation rejection.
func ObserveRejection(source string, reason string) {
	scraperRejectionsTotal.WithLabelValues(source, reason).Inc()
}

// ObserveWrite counts one store write outcome.
func ObserveWrite(source string, result string) {
	scraperWritesTotal.WithLabelValues(source, result).Inc()
}

// ObserveRun records a completed run.
func ObserveRun(outcome string, duration time.Duration) {
	scraperRunsTotal.WithLabelValues(outcome).Inc()
	scraperRunDurationSeconds.Observe(duration.Seconds())
}

// IncInFlightFetches increments the in-flight fetch gauge.
func IncInFlightFetches() {
	scraperInFlightFetches.Inc()
}

// DecInFlightFetches decrements the in-flight fetch gauge.
func DecInFlightFetches() {
	scraperInFlightFetches.Dec()
}
