package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/markdave123-py/contexta-ingest/internal/logger"
)

// EmbeddingDimension is the only vector size the knowledge_chunks.embedding column accepts.
const EmbeddingDimension = 1536

type Config struct {
	Environment string
	Port        string
	CorsOrigins []string

	DatabaseURL string
	SslCertPath string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	S3Endpoint   string

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	EmbedModel      string
	EmbedDim        int
	EmbedBatchSize  int
	EmbedRPS        float64
	EmbedMaxRetries int

	VisionAPIKey   string
	VisionEndpoint string

	GeminiAPIKey   string
	GenModel       string
	OCRLLMFallback bool

	ChunkSize         int
	MinNativePDFChars int

	WorkerEnabled   bool
	PollInterval    time.Duration
	DownloadTimeout time.Duration
	OCRTimeout      time.Duration
	EmbedTimeout    time.Duration
	ProcessTimeout  time.Duration
}

// LoadConfig loads the environment variables (and an optional .env file) and returns config.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		CorsOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "contexta-docs"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:        getEnvInt("EMBED_DIM", EmbeddingDimension),
		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 512),
		EmbedRPS:        getEnvFloat("EMBED_RPS", 5),
		EmbedMaxRetries: getEnvInt("EMBED_MAX_RETRIES", 3),

		VisionAPIKey:   getEnv("GOOGLE_VISION_API_KEY", ""),
		VisionEndpoint: getEnv("VISION_ENDPOINT", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GenModel:       getEnv("GEN_MODEL", "gemini-1.5-flash"),
		OCRLLMFallback: getEnvBool("OCR_LLM_FALLBACK", false),

		ChunkSize:         getEnvInt("CHUNK_SIZE", 1000),
		MinNativePDFChars: getEnvInt("MIN_NATIVE_PDF_CHARS", 500),

		WorkerEnabled:   getEnvBool("WORKER_ENABLED", true),
		PollInterval:    getEnvDuration("POLL_INTERVAL", 10*time.Second),
		DownloadTimeout: getEnvDuration("DOWNLOAD_TIMEOUT", 2*time.Minute),
		OCRTimeout:      getEnvDuration("OCR_TIMEOUT", 2*time.Minute),
		EmbedTimeout:    getEnvDuration("EMBED_TIMEOUT", 3*time.Minute),
		ProcessTimeout:  getEnvDuration("PROCESS_TIMEOUT", 15*time.Minute),
	}
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY not set"))
	}
	if c.EmbedDim != EmbeddingDimension {
		errs = append(errs, fmt.Errorf("EMBED_DIM must be %d to match the schema, got %d", EmbeddingDimension, c.EmbedDim))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("CHUNK_SIZE must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// GeminiFallbackEnabled reports whether the LLM transcription strategy should join the OCR chain.
func (c *Config) GeminiFallbackEnabled() bool {
	return c.OCRLLMFallback && c.GeminiAPIKey != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("env value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("env value is not a number, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("env value is not a bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("env value is not a duration, using default", "key", key, "value", v, "default", def.String())
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
