package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"adpipeline/internal/analytics"
	apihttp "adpipeline/internal/api/http"
	"adpipeline/internal/app"
	"adpipeline/internal/domain/ports"
	"adpipeline/internal/generation"
	"adpipeline/internal/media"
	"adpipeline/internal/metrics"
	"adpipeline/internal/oracle"
	"adpipeline/internal/oraclecache"
	"adpipeline/internal/pipeline"
	"adpipeline/internal/repository/memjob"
	"adpipeline/internal/repository/mongojob"
	"adpipeline/internal/subtitle"
	"adpipeline/internal/telemetry"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "adpipeline")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "adpipeline"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("outputDir", cfg.OutputDir),
		slog.Bool("useMongo", cfg.UseMongo),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo := buildJobRepository(rootCtx, cfg, logger)
	defer closeRepo()

	mediaOperator := media.NewOperator(cfg.FFMPEGPath, cfg.FFProbePath)
	subtitleParser := subtitle.New()

	var oracleImpl ports.Oracle = oracle.New(cfg.OracleAPIKey,
		oracle.WithBaseURL(cfg.OracleBaseURL),
		oracle.WithChatModel(cfg.OracleAnalyzeModel),
		oracle.WithVisionModel(cfg.OracleVisionModel),
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ttl := time.Duration(cfg.OracleCacheTTLHours) * time.Hour
		oracleImpl = oraclecache.New(oracleImpl, redisClient, ttl)
		logger.Info("oracle response cache enabled", slog.String("redisAddr", cfg.RedisAddr), slog.Duration("ttl", ttl))
	}

	generationClient := generation.New(cfg.GenerationAPIKey,
		generation.WithBaseURL(cfg.GenerationBaseURL),
		generation.WithPollInterval(time.Duration(cfg.GenerationPollInterval)*time.Second),
		generation.WithTimeout(time.Duration(cfg.GenerationTimeout)*time.Second),
	)
	uploader := generation.NewFallbackUploader(
		generation.NewCatboxHost(nil),
		generation.NewZeroXZeroHost(nil),
		generation.NewFileIOHost(nil),
	)
	promptBuilder := generation.NewPromptBuilder(cfg.GenerationPromptPath)

	controller := &pipeline.Controller{
		Subtitles:            subtitleParser,
		Media:                mediaOperator,
		Oracle:               oracleImpl,
		Generation:           generationClient,
		Uploader:             uploader,
		Prompts:              promptBuilder,
		Repo:                 repo,
		Logger:               logger,
		OutputDir:            cfg.OutputDir,
		MinGapSeconds:        cfg.MinGapSeconds,
		TranscriptMaxEntries: cfg.TranscriptMaxLines,
		NumCandidates:        cfg.OracleNumCandidates,
		MaxConcurrentJobs:    cfg.MaxConcurrentJobs,
	}

	eventSink := analytics.New(logger)

	handler := apihttp.NewServer(controller, repo,
		apihttp.WithLogger(logger),
		apihttp.WithOutputDir(cfg.OutputDir),
		apihttp.WithMinGapSeconds(cfg.MinGapSeconds),
		apihttp.WithSubtitles(subtitleParser),
		apihttp.WithOracle(oracleImpl),
		apihttp.WithEventSink(eventSink),
		apihttp.WithCORSAllowedOrigins(cfg.CORSAllowedOrigins),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// buildJobRepository returns the in-process memjob registry by default, or
// a durable Mongo-backed one when USE_MONGO is set. The returned closer is
// a no-op in the default case.
func buildJobRepository(ctx context.Context, cfg app.Config, logger *slog.Logger) (ports.JobRepository, func()) {
	if !cfg.UseMongo {
		return memjob.New(), func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoOpts := otelmongo.NewMonitor()
	client, err := mongojob.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(mongoOpts))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repo := mongojob.NewRepository(client, cfg.MongoDatabase, cfg.MongoCollection)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}

	return repo, func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
