package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jifmaker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jifmaker_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Pipeline Metrics
	PipelineStagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jifmaker_pipeline_stages_total",
			Help: "Total number of pipeline stages executed",
		},
		[]string{"stage", "status"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jifmaker_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5 minutes
		},
		[]string{"stage"},
	)

	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jifmaker_conversions_total",
			Help: "Total number of conversions by output format and result",
		},
		[]string{"format", "status"},
	)

	OutputSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jifmaker_output_size_bytes",
			Help:    "Size of finished outputs in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 14), // 16KB to 128MB
		},
		[]string{"format"},
	)

	EstimateRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jifmaker_estimate_ratio",
			Help:    "Actual output size divided by the size estimate",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 10},
		},
	)

	// Probe Metrics
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jifmaker_probes_total",
			Help: "Total number of source probes",
		},
		[]string{"status"},
	)

	// Job Metrics
	JobsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jifmaker_jobs_submitted_total",
			Help: "Total number of queued conversion jobs",
		},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jifmaker_jobs_in_progress",
			Help: "Number of jobs currently being processed",
		},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jifmaker_queue_depth",
			Help: "Messages waiting in a queue",
		},
		[]string{"queue"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jifmaker_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jifmaker_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jifmaker_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jifmaker_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordPipelineStage records one executed stage
func RecordPipelineStage(stage, status string, duration float64) {
	PipelineStagesTotal.WithLabelValues(stage, status).Inc()
	PipelineStageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordConversion records a finished conversion. Size and ratio are only
// observed for successful runs.
func RecordConversion(format, status string, outputBytes int64, estimatedBytes float64) {
	ConversionsTotal.WithLabelValues(format, status).Inc()
	if status != "completed" {
		return
	}
	OutputSizeBytes.WithLabelValues(format).Observe(float64(outputBytes))
	if estimatedBytes > 0 {
		EstimateRatio.Observe(float64(outputBytes) / estimatedBytes)
	}
}

// RecordProbe records a probe outcome
func RecordProbe(status string) {
	ProbesTotal.WithLabelValues(status).Inc()
}

// SetQueueDepth records the number of messages waiting in queue
func SetQueueDepth(queue string, depth int) {
	QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	CacheHitsTotal.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// RecordStorageOperation records an object storage call
func RecordStorageOperation(operation, status string) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
