package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adpipeline",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "adpipeline",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	JobsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "adpipeline",
		Name:      "jobs_active",
		Help:      "Number of jobs currently being processed.",
	})

	JobsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "adpipeline",
		Name:      "jobs_submitted_total",
		Help:      "Total number of jobs submitted.",
	})

	JobsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "adpipeline",
		Name:      "jobs_completed_total",
		Help:      "Total number of jobs completed successfully.",
	})

	JobsFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adpipeline",
		Name:      "jobs_failed_total",
		Help:      "Total number of jobs that failed, by error kind.",
	}, []string{"kind"})

	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "adpipeline",
		Name:      "job_duration_seconds",
		Help:      "End-to-end duration of a completed job in seconds.",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	})

	HLSSegmentDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "adpipeline",
		Name:      "hls_segment_duration_seconds",
		Help:      "Duration of the ffmpeg HLS segmentation step in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120},
	})

	OracleCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adpipeline",
		Name:      "oracle_calls_total",
		Help:      "Total placement-oracle calls by task and outcome.",
	}, []string{"task", "outcome"})

	OracleCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adpipeline",
		Name:      "oracle_cache_hits_total",
		Help:      "Total oracle response cache hits by task.",
	}, []string{"task"})

	OracleLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "adpipeline",
		Name:      "oracle_request_duration_seconds",
		Help:      "Placement-oracle HTTP round-trip latency in seconds, by task.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"task"})

	GenerationUploadFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adpipeline",
		Name:      "generation_upload_failures_total",
		Help:      "Total upload-host failures by host name.",
	}, []string{"host"})

	GenerationPollLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "adpipeline",
		Name:      "generation_poll_duration_seconds",
		Help:      "Time spent polling the AI generation provider until completion.",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
	})

	AnalyticsEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adpipeline",
		Name:      "analytics_events_total",
		Help:      "Total analytics events accepted, by kind.",
	}, []string{"kind"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		JobsActive,
		JobsSubmittedTotal,
		JobsCompletedTotal,
		JobsFailedTotal,
		JobDuration,
		HLSSegmentDuration,
		OracleCallsTotal,
		OracleCacheHitsTotal,
		OracleLatency,
		GenerationUploadFailuresTotal,
		GenerationPollLatency,
		AnalyticsEventsTotal,
	)
}
