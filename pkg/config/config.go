// Package config loads and validates the pipeline's environment-driven
// configuration into an immutable object constructed once at startup, per
// spec.md §9 ("no ambient mutable state").
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ModelRate is the per-model cost rate used by the LLM Gateway to compute
// estimated cost from token counts. Units are USD per token.
type ModelRate struct {
	InputPerToken  float64
	OutputPerToken float64
}

// Config is the umbrella, immutable configuration object passed explicitly
// to every component that needs it (spec.md §9 "Global configuration").
type Config struct {
	// Persistence selector (spec.md §6).
	DatabaseURL   string
	JSONDBPath    string

	// LLM credentials; if empty, POST /run fails fast with CredentialMissing.
	LLMAPIKey string
	// LLMEndpointURL is the HTTP endpoint the production Backend posts
	// (template_id, variables, json_mode, model) requests to. The vendor
	// itself is an external collaborator (spec.md §1); this is a plain
	// JSON-over-HTTP seam any OpenAI-compatible chat-completions endpoint
	// can sit behind.
	LLMEndpointURL string

	// Novelty auditor thresholds (spec.md §4.7, §6).
	NoveltySimilarityThreshold float64
	NoveltySkip                bool
	NoveltyHardFail            bool

	// Fair-play feedback-loop cost ceiling (spec.md §4.11 item 3).
	FairPlayCostCeiling float64

	// LLM Gateway behavior.
	LLMCallTimeout     time.Duration
	LLMMaxConcurrency  int
	ModelRates         map[string]ModelRate
	DefaultModel       string

	// Logging.
	LogLevel     string
	LogToFile    bool
	LogPath      string
	LogToConsole bool

	// HTTP server.
	HTTPPort string
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// defaultModelRates seeds a small rate table; deployments override via
// future config-file support, but env-only configuration is sufficient for
// the scope of this spec.
func defaultModelRates() map[string]ModelRate {
	return map[string]ModelRate{
		"default": {InputPerToken: 0.000003, OutputPerToken: 0.000015},
	}
}

// Load reads configuration from the process environment (after any .env
// file has already been merged into it by the caller, mirroring the
// teacher's cmd/tarsy/main.go godotenv.Load-then-read-env ordering).
func Load() *Config {
	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JSONDBPath:  getEnv("CML_JSON_DB_PATH", "./data/cml-pipeline.json"),

		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMEndpointURL: getEnv("LLM_ENDPOINT_URL", "https://api.openai.com/v1/chat/completions"),

		NoveltySimilarityThreshold: getEnvFloat("NOVELTY_SIMILARITY_THRESHOLD", 0.9),
		NoveltySkip:                getEnvBool("NOVELTY_SKIP", false),
		NoveltyHardFail:            getEnvBool("NOVELTY_HARD_FAIL", false),

		FairPlayCostCeiling: getEnvFloat("FAIR_PLAY_COST_CEILING", 0.15),

		LLMCallTimeout:    time.Duration(getEnvInt("LLM_CALL_TIMEOUT_SECONDS", 120)) * time.Second,
		LLMMaxConcurrency: getEnvInt("LLM_MAX_CONCURRENCY", 4),
		ModelRates:        defaultModelRates(),
		DefaultModel:      getEnv("LLM_DEFAULT_MODEL", "default"),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogToFile:    getEnvBool("LOG_TO_FILE", false),
		LogPath:      getEnv("LOG_PATH", "./logs/pipeline.log"),
		LogToConsole: getEnvBool("LOG_TO_CONSOLE", true),

		HTTPPort: getEnv("HTTP_PORT", "8080"),
	}
}

// Validate performs fail-fast validation of the loaded configuration,
// mirroring the teacher's Validator.ValidateAll ordering (cheapest/most
// foundational checks first).
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.JSONDBPath == "" {
		return fmt.Errorf("one of DATABASE_URL or CML_JSON_DB_PATH must be set")
	}
	if c.NoveltySimilarityThreshold < 0 {
		return fmt.Errorf("NOVELTY_SIMILARITY_THRESHOLD must be non-negative, got %v", c.NoveltySimilarityThreshold)
	}
	if c.FairPlayCostCeiling <= 0 {
		return fmt.Errorf("FAIR_PLAY_COST_CEILING must be positive, got %v", c.FairPlayCostCeiling)
	}
	if c.LLMCallTimeout <= 0 {
		return fmt.Errorf("LLM_CALL_TIMEOUT_SECONDS must be positive")
	}
	if c.LLMMaxConcurrency < 1 {
		return fmt.Errorf("LLM_MAX_CONCURRENCY must be at least 1, got %d", c.LLMMaxConcurrency)
	}
	if _, ok := c.ModelRates[c.DefaultModel]; !ok {
		return fmt.Errorf("no rate entry for default model %q", c.DefaultModel)
	}
	return nil
}

// NoveltyBypassed reports whether the novelty audit should short-circuit to
// a pass, per spec.md §4.7 ("Threshold ≥ 1 or skip-flag bypasses the check").
func (c *Config) NoveltyBypassed() bool {
	return c.NoveltySkip || c.NoveltySimilarityThreshold >= 1
}
