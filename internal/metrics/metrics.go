// Package metrics exposes Prometheus instrumentation for the sync engines.
//
// Outbound API calls, pipeline throttling and breaker activity, push queue
// outcomes, image downloads and sync runs are all recorded here and served
// by the /metrics route in serve mode.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remote API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmc_api_requests_total",
			Help: "Total number of outbound catalog API requests",
		},
		[]string{"method", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mmc_api_request_duration_seconds",
			Help:    "Outbound catalog API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)

	// Pipeline Metrics
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mmc_pipeline_retries_total",
			Help: "Total number of retried requests",
		},
	)

	ThrottleSleepSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmc_pipeline_throttle_sleep_seconds_total",
			Help: "Seconds spent sleeping to respect the remote rate limit",
		},
		[]string{"reason"}, // "budget", "429", "backoff"
	)

	RateLimitRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mmc_rate_limit_remaining",
			Help: "Last reported remaining requests in the rate window",
		},
	)

	BreakerTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mmc_breaker_trips_total",
			Help: "Total number of times an auth failure disabled sync",
		},
	)

	BreakerRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mmc_breaker_rejections_total",
			Help: "Requests refused because sync is disabled",
		},
	)

	// Push Queue Metrics
	PushJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmc_push_jobs_total",
			Help: "Push queue job attempts by action and outcome",
		},
		[]string{"action", "outcome"}, // outcome: "done", "retry", "failed"
	)

	// Image Cache Metrics
	ImageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmc_image_fetches_total",
			Help: "Image download attempts by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "quota"
	)

	ImageBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mmc_image_bytes_total",
			Help: "Total bytes of images written to disk",
		},
	)

	// Sync Run Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mmc_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"run"},
	)

	SyncItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmc_sync_items_total",
			Help: "Items written by sync runs",
		},
		[]string{"run"}, // "import", "refresh", "wantlist", "enrich"
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmc_sync_errors_total",
			Help: "Sync runs that ended in an error",
		},
		[]string{"run"},
	)
)

// RecordAPIRequest records one transport call. A transport error is recorded
// with status_code "error".
func RecordAPIRequest(method string, statusCode int, duration time.Duration, err error) {
	code := "error"
	if err == nil {
		code = strconv.Itoa(statusCode)
	}
	APIRequestsTotal.WithLabelValues(method, code).Inc()
	APIRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle records time spent sleeping in the pipeline.
func RecordThrottle(reason string, d time.Duration) {
	ThrottleSleepSeconds.WithLabelValues(reason).Add(d.Seconds())
}

// RecordPushJob records the outcome of one push attempt.
func RecordPushJob(action, outcome string) {
	PushJobsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordImageFetch records an image download attempt.
func RecordImageFetch(outcome string, bytes int) {
	ImageFetchesTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		ImageBytesTotal.Add(float64(bytes))
	}
}

// RecordSyncRun records a completed (or failed) sync run.
func RecordSyncRun(run string, duration time.Duration, items int, err error) {
	SyncDuration.WithLabelValues(run).Observe(duration.Seconds())
	SyncItemsTotal.WithLabelValues(run).Add(float64(items))
	if err != nil {
		SyncErrors.WithLabelValues(run).Inc()
	}
}
