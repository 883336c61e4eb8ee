package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/dgallion1/quizgest/internal/chunker"
)

var ErrMissingRequired = errors.New("missing required configuration")

// Generation providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Config struct {
	Port string `envconfig:"PORT" default:"8090"`

	// Auth
	APIKey string `envconfig:"QUIZGEST_API_KEY"`

	// Generation provider
	Provider        string `envconfig:"GENERATION_PROVIDER" default:"anthropic"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-5-20250929"`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	GeminiModel     string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	// Worker pool
	WorkerCount        int           `envconfig:"WORKER_COUNT" default:"4"`
	MaxQueueSize       int           `envconfig:"MAX_QUEUE_SIZE" default:"100"`
	MaxConcurrentUnits int           `envconfig:"MAX_CONCURRENT_UNITS" default:"5"`
	GenerationRate     float64       `envconfig:"GENERATION_RATE_PER_SEC" default:"2"`
	GenerationBurst    int           `envconfig:"GENERATION_BURST" default:"4"`
	UnitTimeout        time.Duration `envconfig:"UNIT_TIMEOUT" default:"90s"`
	UnitMaxRetries     int           `envconfig:"UNIT_MAX_RETRIES" default:"3"`
	RetryBaseDelay     time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
	RetryMaxDelay      time.Duration `envconfig:"RETRY_MAX_DELAY" default:"30s"`

	// Upload limits
	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"` // 50MB

	// Chunking defaults
	DefaultMaxTokensPerChunk int    `envconfig:"DEFAULT_MAX_TOKENS_PER_CHUNK" default:"1500"`
	DefaultMinTokensPerChunk int    `envconfig:"DEFAULT_MIN_TOKENS_PER_CHUNK" default:"100"`
	DefaultChunkMethod       string `envconfig:"DEFAULT_CHUNK_METHOD" default:"by_heading"`

	// Job state
	JobTTL time.Duration `envconfig:"JOB_TTL" default:"1h"`

	// Persistence; empty keeps everything in memory.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Retrieval; empty host disables augmentation.
	WeaviateHost   string `envconfig:"WEAVIATE_HOST"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	WeaviateClass  string `envconfig:"WEAVIATE_CLASS" default:"MaterialChunk"`
	RetrievalTopK  int    `envconfig:"RETRIEVAL_TOP_K" default:"3"`

	// PDF
	PDFFallbackPdftotext bool `envconfig:"PDF_FALLBACK_PDFTOTEXT" default:"true"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	// Env vars might be set in the shell.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: QUIZGEST_API_KEY", ErrMissingRequired)
	}
	switch c.Provider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY", ErrMissingRequired)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("GENERATION_PROVIDER must be %q or %q, got %q", ProviderAnthropic, ProviderGemini, c.Provider)
	}
	if c.WorkerCount <= 0 || c.MaxQueueSize <= 0 || c.MaxConcurrentUnits <= 0 {
		return fmt.Errorf("WORKER_COUNT, MAX_QUEUE_SIZE and MAX_CONCURRENT_UNITS must be positive")
	}
	if c.GenerationRate <= 0 || c.GenerationBurst <= 0 {
		return fmt.Errorf("GENERATION_RATE_PER_SEC and GENERATION_BURST must be positive")
	}
	if c.UnitTimeout <= 0 {
		return fmt.Errorf("UNIT_TIMEOUT must be positive")
	}
	if c.UnitMaxRetries < 1 {
		return fmt.Errorf("UNIT_MAX_RETRIES must be at least 1")
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("RETRY_BASE_DELAY must be positive and no more than RETRY_MAX_DELAY")
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if err := c.DefaultChunking().Validate(); err != nil {
		return fmt.Errorf("chunking defaults: %w", err)
	}
	return nil
}

// DefaultChunking is the chunker config applied to fields a request leaves zero.
func (c Config) DefaultChunking() chunker.Config {
	return chunker.Config{
		MaxTokens: c.DefaultMaxTokensPerChunk,
		MinTokens: c.DefaultMinTokensPerChunk,
		Method:    chunker.Method(c.DefaultChunkMethod),
	}
}
