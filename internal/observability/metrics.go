// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Poller metrics
	PollsTotal          prometheus.Counter
	PollNotFound        prometheus.Counter
	PollTransportErrors prometheus.Counter
	PollDuration        prometheus.Histogram
	TrackingLost        prometheus.Counter
	PollersArmed        prometheus.Gauge

	// Download outcome metrics
	DownloadsCompleted prometheus.Counter
	DownloadsFailed    prometheus.Counter
	RetriesIssued      prometheus.Counter

	// Submission metrics
	SubmissionsTotal *prometheus.CounterVec
	SkippedURLs      prometheus.Counter

	// Registry metrics
	ActiveRecords prometheus.Gauge
}

// New creates all application metrics and registers them with the default
// registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all application metrics against the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PollsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtrack",
			Subsystem: "poller",
			Name:      "polls_total",
			Help:      "Total number of progress polls issued",
		}),
		PollNotFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtrack",
			Subsystem: "poller",
			Name:      "not_found_total",
			Help:      "Total number of polls answered with the not-found startup race",
		}),
		PollTransportErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtrack",
			Subsystem: "poller",
			Name:      "transport_errors_total",
			Help:      "Total number of polls that failed at the transport level",
		}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vidtrack",
			Subsystem: "poller",
			Name:      "poll_duration_seconds",
			Help:      "Histogram of progress request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TrackingLost: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtrack",
			Subsystem: "poller",
			Name:      "tracking_lost_total",
			Help:      "Total number of downloads abandoned after exhausting not-found retries",
		}),
		PollersArmed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidtrack",
			Subsystem: "poller",
			Name:      "armed",
			Help:      "Number of pollers currently armed",
		}),
		DownloadsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtrack",
			Subsystem: "downloads",
			Name:      "completed_total",
			Help:      "Total number of downloads observed reaching completed",
		}),
		DownloadsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtrack",
			Subsystem: "downloads",
			Name:      "failed_total",
			Help:      "Total number of downloads observed reaching error",
		}),
		RetriesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtrack",
			Subsystem: "downloads",
			Name:      "retries_total",
			Help:      "Total number of retry commands accepted by the backend",
		}),
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidtrack",
			Subsystem: "submissions",
			Name:      "total",
			Help:      "Total number of download submissions",
		}, []string{"mode"}),
		SkippedURLs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtrack",
			Subsystem: "submissions",
			Name:      "skipped_urls_total",
			Help:      "Total number of malformed batch lines skipped",
		}),
		ActiveRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidtrack",
			Subsystem: "registry",
			Name:      "records",
			Help:      "Number of download records currently in view",
		}),
	}
}

// Handler returns the Prometheus HTTP handler for the default registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// PollTimer returns a function to record one poll's duration.
func (m *Metrics) PollTimer() func() {
	start := time.Now()

	return func() {
		m.PollDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordSubmission increments the submission counter for a mode
// (single, playlist, batch, redownload).
func (m *Metrics) RecordSubmission(mode string) {
	m.SubmissionsTotal.WithLabelValues(mode).Inc()
}

// RecordPollerArmed tracks a poller starting.
func (m *Metrics) RecordPollerArmed() {
	m.PollersArmed.Inc()
}

// RecordPollerDisarmed tracks a poller stopping.
func (m *Metrics) RecordPollerDisarmed() {
	m.PollersArmed.Dec()
}
