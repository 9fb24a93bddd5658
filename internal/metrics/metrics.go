package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AutoscanFiringsTotal counts autoscan alarm firings by outcome (dispatched, idle, load_error, dispatch_error).
	AutoscanFiringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoscan_firings_total",
			Help: "Total number of autoscan alarm firings by outcome",
		},
		[]string{"outcome"},
	)

	// AutoscanPagesDispatched counts pages handed to the scan engine by the autoscan scheduler.
	AutoscanPagesDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autoscan_pages_dispatched_total",
			Help: "Total number of due pages dispatched by the autoscan scheduler",
		},
	)

	// PageScansTotal counts page scans by trigger and resulting state.
	PageScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_scans_total",
			Help: "Total number of page scans by trigger and state",
		},
		[]string{"trigger", "state"},
	)

	// ScanJobsRunning is the number of page scans currently in flight.
	ScanJobsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scan_jobs_running",
			Help: "Number of page scans currently running",
		},
	)
)

var (
	pageIDPathSegment = regexp.MustCompile(`/([0-9a-f]{24}|[0-9]+)(/|$)`)
	initOnce          sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestDuration,
			RequestTotal,
			AutoscanFiringsTotal,
			AutoscanPagesDispatched,
			PageScansTotal,
			ScanJobsRunning,
		)
	})
}

// NormalizePath reduces cardinality by replacing ID path segments with {id}.
// E.g. /api/v1/pages/65f0c0ffee0000000000abcd/html -> /api/v1/pages/{id}/html.
func NormalizePath(path string) string {
	return pageIDPathSegment.ReplaceAllString(path, "/{id}$2")
}

// RecordRequest records duration and count for an HTTP request.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordFiring counts one autoscan firing with the given outcome.
func RecordFiring(outcome string) {
	AutoscanFiringsTotal.WithLabelValues(outcome).Inc()
}

// AddPagesDispatched adds n to the dispatched page counter.
func AddPagesDispatched(n int) {
	AutoscanPagesDispatched.Add(float64(n))
}

// RecordPageScan counts one finished page scan.
func RecordPageScan(trigger, state string) {
	PageScansTotal.WithLabelValues(trigger, state).Inc()
}

// IncScanJobsRunning increments the running scans gauge (call when a page scan starts).
func IncScanJobsRunning() {
	ScanJobsRunning.Inc()
}

// DecScanJobsRunning decrements the running scans gauge (call when a page scan finishes).
func DecScanJobsRunning() {
	ScanJobsRunning.Dec()
}

// RegisterScanQueueLength exposes the scan worker queue length as a gauge.
func RegisterScanQueueLength(length func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "scan_queue_length",
			Help: "Number of page scans waiting in the worker queue",
		},
		func() float64 { return float64(length()) },
	))
}
