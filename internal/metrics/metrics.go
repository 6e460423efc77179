package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crexpress",
			Subsystem: "forms",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crexpress",
			Subsystem: "forms",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "route"},
	)

	// Submissions by form type and outcome
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crexpress",
			Subsystem: "forms",
			Name:      "submissions_total",
			Help:      "Form submissions by form type and outcome",
		},
		[]string{"form_type", "status"},
	)

	// Artifact downloads by outcome (ok, malformed, expired, bad_signature, not_found, error)
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crexpress",
			Subsystem: "forms",
			Name:      "downloads_total",
			Help:      "Artifact download attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Signed links issued by artifact kind
	LinksIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crexpress",
			Subsystem: "forms",
			Name:      "links_issued_total",
			Help:      "Signed download links issued",
		},
		[]string{"kind"},
	)

	// Outbound emails
	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crexpress",
			Subsystem: "forms",
			Name:      "emails_total",
			Help:      "Emails sent through the provider",
		},
		[]string{"form_type", "status"},
	)

	// Automation webhook forwards
	ForwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crexpress",
			Subsystem: "forms",
			Name:      "automation_forwards_total",
			Help:      "Automation webhook deliveries",
		},
		[]string{"status"},
	)

	// Rate-limited requests
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crexpress",
			Subsystem: "forms",
			Name:      "rate_limited_total",
			Help:      "Submissions rejected by the rate limiter",
		},
	)

	// Storage operations counter
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crexpress",
			Subsystem: "forms",
			Name:      "storage_operations_total",
			Help:      "Blob storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Storage operation duration
	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crexpress",
			Subsystem: "forms",
			Name:      "storage_duration_seconds",
			Help:      "Blob storage operation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"backend", "operation"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordSubmission records a form submission outcome
func RecordSubmission(formType, status string) {
	SubmissionsTotal.WithLabelValues(formType, status).Inc()
}

// RecordDownload records an artifact download outcome
func RecordDownload(outcome string) {
	DownloadsTotal.WithLabelValues(outcome).Inc()
}

// RecordLinkIssued records a signed link issuance
func RecordLinkIssued(kind string) {
	LinksIssuedTotal.WithLabelValues(kind).Inc()
}

// RecordEmail records an email send
func RecordEmail(formType, status string) {
	EmailsTotal.WithLabelValues(formType, status).Inc()
}

// RecordForward records an automation webhook delivery
func RecordForward(status string) {
	ForwardsTotal.WithLabelValues(status).Inc()
}

// RecordRateLimited records a rejected request
func RecordRateLimited() {
	RateLimitedTotal.Inc()
}

// RecordStorageOperation records a blob storage operation
func RecordStorageOperation(backend, operation, status string, durationSec float64) {
	StorageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	StorageDuration.WithLabelValues(backend, operation).Observe(durationSec)
}
