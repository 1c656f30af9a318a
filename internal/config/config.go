package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process-level configuration, resolved from the environment.
type Config struct {
	Port string

	// Auth for the HTTP service. Empty disables auth.
	ServerAPIKey string

	// Completion backend
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Concurrency int
	MaxRetries  int

	// Summarization defaults
	ContextWindow int
	PromptsFile   string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Where the service also writes job artifacts. Empty keeps them in memory only.
	JobOutputDir string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		ServerAPIKey: os.Getenv("RECAP_API_KEY_SERVER"),

		BaseURL:     envOr("RECAP_BASE_URL", DefaultBaseURL),
		Model:       envOr("RECAP_MODEL", DefaultModel),
		APIKey:      os.Getenv("RECAP_API_KEY"),
		Timeout:     envDuration("RECAP_TIMEOUT", DefaultTimeout),
		Concurrency: envInt("RECAP_CONCURRENCY", 1),
		MaxRetries:  envInt("RECAP_RETRIES", DefaultMaxRetries),

		ContextWindow: envInt("RECAP_CONTEXT", DefaultContextWindow),
		PromptsFile:   os.Getenv("RECAP_PROMPTS_FILE"),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		JobOutputDir: os.Getenv("JOB_OUTPUT_DIR"),
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Run derives the per-run configuration for the given detail level and
// keep-intermediate flag, using the process defaults for everything else.
func (c Config) Run(detail int, keep bool) RunConfig {
	return RunConfig{
		ContextWindow:    c.ContextWindow,
		Detail:           detail,
		KeepIntermediate: keep,
		BaseURL:          c.BaseURL,
		Model:            c.Model,
		APIKey:           c.APIKey,
		Timeout:          c.Timeout,
		Concurrency:      c.Concurrency,
		MaxRetries:       c.MaxRetries,
		Polish:           true,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
