// Package apihttp implements the playlist/segment server, the analytics
// event HTTP surface, authentication, and the job submission/status API,
// wiring them onto a single functional-options Server.
package apihttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"adpipeline/internal/domain"
	"adpipeline/internal/domain/ports"
)

// JobSubmitter is the subset of pipeline.Controller the HTTP layer drives:
// job submission and cancellation. The pipeline's own execution and
// persistence are reached only through ports.JobRepository from here on.
type JobSubmitter interface {
	Submit(ctx context.Context, input domain.SubmitVideoInput) (domain.Job, error)
	Cancel(jobID string) error
}

type Server struct {
	controller JobSubmitter
	repo       ports.JobRepository
	subtitles  ports.SubtitleParser
	oracle     ports.Oracle
	events     ports.EventSink

	outputDir      string
	minGapSeconds  float64
	apiPrefix      string
	corsOrigins    []string
	rateLimitRPS   float64
	rateLimitBurst int

	wsHub   *wsHub
	logger  *slog.Logger
	handler http.Handler
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func WithOutputDir(dir string) ServerOption {
	return func(s *Server) { s.outputDir = dir }
}

func WithMinGapSeconds(v float64) ServerOption {
	return func(s *Server) { s.minGapSeconds = v }
}

func WithSubtitles(p ports.SubtitleParser) ServerOption {
	return func(s *Server) { s.subtitles = p }
}

func WithOracle(o ports.Oracle) ServerOption {
	return func(s *Server) { s.oracle = o }
}

func WithEventSink(sink ports.EventSink) ServerOption {
	return func(s *Server) { s.events = sink }
}

func WithCORSAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.corsOrigins = origins }
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimitRPS = rps
		s.rateLimitBurst = burst
	}
}

// NewServer wires the job submitter, job repository, and every handler
// group onto one mux, then layers the middleware chain around it with
// recovery outermost, then rate limit, then metrics, then CORS, then
// otel/logging, then the mux.
func NewServer(controller JobSubmitter, repo ports.JobRepository, opts ...ServerOption) *Server {
	s := &Server{
		controller:     controller,
		repo:           repo,
		apiPrefix:      "/api/v1",
		rateLimitRPS:   50,
		rateLimitBurst: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.minGapSeconds <= 0 {
		s.minGapSeconds = 1.5
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	prefix := s.apiPrefix
	mux.HandleFunc(prefix+"/videos/process", requireAuth(s.handleSubmit))
	mux.HandleFunc(prefix+"/videos/analyze-gaps", requireAuth(s.handleAnalyzeGaps))
	mux.HandleFunc(prefix+"/videos/status/", requireAuth(s.handleStatus))
	mux.HandleFunc(prefix+"/videos/playlist/", requireAuth(s.handlePlaylist))
	mux.HandleFunc(prefix+"/videos/segments/", requireAuth(s.handleSegment))
	mux.HandleFunc(prefix+"/profile/analyze", requireAuth(s.handleProfileAnalyze))
	mux.HandleFunc(prefix+"/analytics/impressions", optionalAuth(s.handleAnalytics(domain.AnalyticsEventImpression)))
	mux.HandleFunc(prefix+"/analytics/clicks", optionalAuth(s.handleAnalytics(domain.AnalyticsEventClick)))
	mux.HandleFunc(prefix+"/analytics/views", optionalAuth(s.handleAnalytics(domain.AnalyticsEventView)))
	mux.HandleFunc(prefix+"/analytics/conversions", optionalAuth(s.handleAnalytics(domain.AnalyticsEventConversion)))
	mux.HandleFunc(prefix+"/analytics/dismissals", optionalAuth(s.handleAnalytics(domain.AnalyticsEventDismissal)))
	mux.HandleFunc("/ws/jobs/", requireAuth(s.handleWSJobProgress))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "adpipeline",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/healthz"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst,
		metricsMiddleware(corsMiddleware(s.corsOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
