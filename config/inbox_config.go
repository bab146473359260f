package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"inbox_server/pkg/apperr"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Snapshot documents
	DataDir       string
	InboxFile     string
	ProcessedFile string
	PromptsFile   string
	DraftsFile    string

	// LLM (any OpenAI-compatible endpoint)
	OpenAIAPIKey             string
	LLMBaseURL               string
	LLMModel                 string
	LLMCategorizeModel       string
	LLMMaxTokens             int
	LLMTemperature           float64
	LLMCategorizeTemperature float64
	LLMTimeoutSec            int
	LLMMaxRetries            int
	LLMRequestsPerSec        float64
	LLMBurst                 int

	// Enrichment
	EnrichConcurrency int
	AutoReplyDrafts   bool

	// Redis (optional cross-process writer lock)
	RedisURL        string
	RedisLockTTLSec int

	// Chat sessions
	SessionTTLMin   int
	SessionMaxTurns int

	// Requests per client IP per minute on model-backed endpoints
	ModelRateLimitPerMin int

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DataDir:       getEnv("DATA_DIR", "sources"),
		InboxFile:     getEnv("INBOX_FILE", "inbox.json"),
		ProcessedFile: getEnv("PROCESSED_FILE", "processed_inbox.json"),
		PromptsFile:   getEnv("PROMPTS_FILE", "prompts.json"),
		DraftsFile:    getEnv("DRAFTS_FILE", "drafts.json"),

		OpenAIAPIKey:             getEnv("OPENAI_API_KEY", ""),
		LLMBaseURL:               getEnv("LLM_BASE_URL", ""),
		LLMModel:                 getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMCategorizeModel:       getEnv("LLM_CATEGORIZE_MODEL", ""),
		LLMMaxTokens:             getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature:           getEnvFloat("LLM_TEMPERATURE", 0.3),
		LLMCategorizeTemperature: getEnvFloat("LLM_CATEGORIZE_TEMPERATURE", 0),
		LLMTimeoutSec:            getEnvInt("LLM_TIMEOUT_SEC", 60),
		LLMMaxRetries:            getEnvInt("LLM_MAX_RETRIES", 2),
		LLMRequestsPerSec:        getEnvFloat("LLM_REQUESTS_PER_SEC", 0),
		LLMBurst:                 getEnvInt("LLM_BURST", 1),

		EnrichConcurrency: getEnvInt("ENRICH_CONCURRENCY", 4),
		AutoReplyDrafts:   getEnvBool("AUTO_REPLY_DRAFTS", true),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisLockTTLSec: getEnvInt("REDIS_LOCK_TTL_SEC", 600),

		SessionTTLMin:   getEnvInt("SESSION_TTL_MIN", 30),
		SessionMaxTurns: getEnvInt("SESSION_MAX_TURNS", 40),

		ModelRateLimitPerMin: getEnvInt("MODEL_RATE_LIMIT_PER_MIN", 20),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	if cfg.LLMCategorizeModel == "" {
		cfg.LLMCategorizeModel = cfg.LLMModel
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return apperr.ConfigError("OPENAI_API_KEY is required")
	}
	positive := map[string]int{
		"LLM_MAX_TOKENS":           c.LLMMaxTokens,
		"LLM_TIMEOUT_SEC":          c.LLMTimeoutSec,
		"LLM_MAX_RETRIES":          c.LLMMaxRetries,
		"ENRICH_CONCURRENCY":       c.EnrichConcurrency,
		"REDIS_LOCK_TTL_SEC":       c.RedisLockTTLSec,
		"MODEL_RATE_LIMIT_PER_MIN": c.ModelRateLimitPerMin,
	}
	for _, key := range []string{"LLM_MAX_TOKENS", "LLM_TIMEOUT_SEC", "LLM_MAX_RETRIES", "ENRICH_CONCURRENCY", "REDIS_LOCK_TTL_SEC", "MODEL_RATE_LIMIT_PER_MIN"} {
		if positive[key] <= 0 {
			return apperr.ConfigError(fmt.Sprintf("%s must be positive, got %d", key, positive[key]))
		}
	}
	if c.LLMRequestsPerSec < 0 {
		return apperr.ConfigError(fmt.Sprintf("LLM_REQUESTS_PER_SEC must not be negative, got %g", c.LLMRequestsPerSec))
	}
	for key, t := range map[string]float64{
		"LLM_TEMPERATURE":            c.LLMTemperature,
		"LLM_CATEGORIZE_TEMPERATURE": c.LLMCategorizeTemperature,
	} {
		if t < 0 || t > 2 {
			return apperr.ConfigError(fmt.Sprintf("%s must be within [0, 2], got %g", key, t))
		}
	}
	return nil
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

func (c *Config) RedisLockTTL() time.Duration {
	return time.Duration(c.RedisLockTTLSec) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
