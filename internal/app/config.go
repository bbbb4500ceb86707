package app

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr        string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	RedisAddr       string
	UseMongo        bool

	LogLevel  string
	LogFormat string

	OutputDir   string
	FFMPEGPath  string
	FFProbePath string

	HLSSegmentDuration float64
	MinGapSeconds      float64
	TranscriptMaxLines int
	MaxConcurrentJobs  int64
	DefaultBufferBefore float64
	DefaultBufferAfter  float64

	OracleAPIKey        string
	OracleBaseURL       string
	OracleAnalyzeModel  string
	OracleVisionModel   string
	OracleNumCandidates int
	OracleCacheTTLHours int

	GenerationAPIKey       string
	GenerationBaseURL      string
	GenerationPromptPath   string
	GenerationPollInterval int // seconds
	GenerationTimeout      int // seconds

	JWTIssuer string

	CORSAllowedOrigins []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DB", "adpipeline"),
		MongoCollection: getEnv("MONGO_COLLECTION", "jobs"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		UseMongo:        getEnvBool("USE_MONGO", false),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		OutputDir:   getEnv("OUTPUT_DIR", "data"),
		FFMPEGPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath: getEnv("FFPROBE_PATH", "ffprobe"),

		HLSSegmentDuration:  getEnvFloat("HLS_SEGMENT_DURATION", 10.0),
		MinGapSeconds:       getEnvFloat("MIN_GAP_SECONDS", 1.5),
		TranscriptMaxLines:  int(getEnvInt64("TRANSCRIPT_MAX_LINES", 100)),
		MaxConcurrentJobs:   getEnvInt64("MAX_CONCURRENT_JOBS", 4),
		DefaultBufferBefore: getEnvFloat("DEFAULT_BUFFER_BEFORE", 10.0),
		DefaultBufferAfter:  getEnvFloat("DEFAULT_BUFFER_AFTER", 3.0),

		OracleAPIKey:        getEnv("ORACLE_API_KEY", ""),
		OracleBaseURL:       getEnv("ORACLE_BASE_URL", "https://api.openai.com/v1"),
		OracleAnalyzeModel:  getEnv("ORACLE_ANALYZE_MODEL", "gpt-4o"),
		OracleVisionModel:   getEnv("ORACLE_VISION_MODEL", "gpt-4o"),
		OracleNumCandidates: int(getEnvInt64("ORACLE_NUM_CANDIDATES", 5)),
		OracleCacheTTLHours: int(getEnvInt64("ORACLE_CACHE_TTL_HOURS", 24)),

		GenerationAPIKey:       getEnv("GENERATION_API_KEY", ""),
		GenerationBaseURL:      getEnv("GENERATION_BASE_URL", "https://api.wavespeed.ai/api/v3"),
		GenerationPromptPath:   getEnv("GENERATION_PROMPT_PATH", ""),
		GenerationPollInterval: int(getEnvInt64("GENERATION_POLL_INTERVAL_SECONDS", 5)),
		GenerationTimeout:      int(getEnvInt64("GENERATION_TIMEOUT_SECONDS", 600)),

		JWTIssuer: getEnv("JWT_ISSUER", ""),

		CORSAllowedOrigins: parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

func parseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	if parsed <= 0 {
		return fallback
	}
	return parsed
}
