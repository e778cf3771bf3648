// Package metrics defines custom Prometheus metrics for Invoicedeck.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// sizeBuckets are exponential buckets for request/response size histograms (bytes).
var sizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864}

// HTTP metrics (RED: Rate, Errors, Duration).
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoicedeck_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoicedeck_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRequestSize observes request body size in bytes.
	HTTPRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoicedeck_http_request_size_bytes",
			Help:    "Request body size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"method", "path"},
	)
)

// Coordinator metrics.
var (
	// ProjectOperationsTotal counts coordinator operations by type and status.
	ProjectOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoicedeck_project_operations_total",
			Help: "Project coordinator operations",
		},
		[]string{"operation", "status"},
	)

	// BlobUploadsTotal counts image blobs uploaded to the object store.
	BlobUploadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invoicedeck_blob_uploads_total",
			Help: "Total image blobs uploaded",
		},
	)

	// BlobVersionsPurgedTotal counts object versions deleted via
	// enumerate-then-purge.
	BlobVersionsPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invoicedeck_blob_versions_purged_total",
			Help: "Total blob versions purged",
		},
	)

	// CompensationsTotal counts saga compensation runs by operation.
	CompensationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoicedeck_saga_compensations_total",
			Help: "Saga compensation runs",
		},
		[]string{"operation"},
	)

	// CleanupWarningsTotal counts best-effort blob cleanups that failed after
	// a successful metadata batch.
	CleanupWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invoicedeck_cleanup_warnings_total",
			Help: "Best-effort blob cleanup failures",
		},
	)
)

// Register registers all Prometheus collectors with the default registry.
// This must be called explicitly (typically from main) so that metrics
// registration can be made conditional on configuration. It is safe to call
// multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			HTTPRequestSize,
			ProjectOperationsTotal,
			BlobUploadsTotal,
			BlobVersionsPurgedTotal,
			CompensationsTotal,
			CleanupWarningsTotal,
		)
		// Initialize ProjectOperationsTotal so it appears in /metrics output
		// before any operations have run.
		ProjectOperationsTotal.WithLabelValues("create", "success")
	})
}

// NormalizePath maps actual request paths to normalized path templates
// suitable for use as Prometheus metric labels. This avoids high-cardinality
// labels from blob keys and query parameters.
func NormalizePath(path string) string {
	switch path {
	case "/api/health", "/metrics", "/docs", "/openapi.json", "/", "":
		if path == "" {
			return "/"
		}
		return path
	}
	if strings.HasPrefix(path, "/docs") {
		return "/docs"
	}
	if strings.HasPrefix(path, "/api/image/") {
		return "/api/image/{key}"
	}
	if strings.HasPrefix(path, "/api/client/") {
		return "/api/client/{id}"
	}
	if strings.HasPrefix(path, "/api/client-invoices/") {
		return "/api/client-invoices/{clientId}"
	}
	return path
}
